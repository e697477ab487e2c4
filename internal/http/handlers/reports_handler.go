// Report HTTP handlers.
//
//   - POST /reports
//   - GET  /admin/reports
//   - PUT  /admin/reports/{id}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/services"
)

// CreateReportRequest is the JSON payload for reporting an item or a user.
type CreateReportRequest struct {
	TargetType  string `json:"target_type" example:"listing" enums:"listing,user"`
	TargetID    string `json:"target_id"   example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Reason      string `json:"reason"      example:"scam" enums:"spam,inappropriate,scam,other"`
	Description string `json:"description" example:"Asks for payment up front by wire."`
}

// ResolveReportRequest moves a report out of pending.
type ResolveReportRequest struct {
	Status string `json:"status" example:"resolved" enums:"reviewed,resolved,dismissed"`
}

// ListReportsResponse wraps a page of reports.
type ListReportsResponse = PageResponse[domain.Report]

// CreateReport godoc
// @ID          createReport
// @Summary     Report an item or user
// @Tags        Reports
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateReportRequest  true  "Report"
// @Success     201   {object}  domain.Report
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404   {object}  handlers.ErrorResponse  "Target not found"
// @Router      /reports [post]
func (h *Handlers) CreateReport(c *gin.Context) {
	var req CreateReportRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.reports.File(c.Request.Context(), actor(c), services.ReportInput{
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}

// ListReports godoc
// @ID          listReports
// @Summary     List reports
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       status     query  string  false  "Status"  Enums(pending, reviewed, resolved, dismissed)
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListReportsResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Admin only"
// @Router      /admin/reports [get]
func (h *Handlers) ListReports(c *gin.Context) {
	page, pageSize := clampPagination(c)
	res, err := h.reports.List(c.Request.Context(), c.Query("status"), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, pageResponse(res))
}

// ResolveReport godoc
// @ID          resolveReport
// @Summary     Triage a report
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                         true  "Report ID (UUID)"  format(uuid)
// @Param       body  body      handlers.ResolveReportRequest  true  "New status"
// @Success     200   {object}  domain.Report
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404   {object}  handlers.ErrorResponse  "Report not found"
// @Router      /admin/reports/{id} [put]
func (h *Handlers) ResolveReport(c *gin.Context) {
	var req ResolveReportRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.reports.Resolve(c.Request.Context(), actor(c), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}
