// Moderation HTTP handlers. Every route here sits behind RequireAdmin.
//
//   - GET    /admin/stats
//   - GET    /admin/users
//   - PUT    /admin/users/{id}/suspend
//   - PUT    /admin/users/{id}/verify
//   - DELETE /admin/users/{id}                 (cascade; 207 on partial failure)
//   - GET    /admin/items
//   - PUT    /admin/items/{id}/hide
//   - PUT    /admin/items/{id}/availability
//   - DELETE /admin/items/{id}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/repo"
	"github.com/tbourn/campus-market/internal/services"
	"github.com/tbourn/campus-market/internal/utils"
)

// SuspendRequest sets or clears a user's suspended flag.
type SuspendRequest struct {
	Suspended *bool `json:"suspended" binding:"required" example:"true"`
}

// VerifyRequest sets or clears a user's verified badge.
type VerifyRequest struct {
	Verified *bool `json:"verified" binding:"required" example:"true"`
}

// HideRequest sets or clears a listing's moderation visibility flag.
type HideRequest struct {
	Hidden *bool `json:"hidden" binding:"required" example:"true"`
}

// AvailabilityRequest sets a listing's market availability.
type AvailabilityRequest struct {
	Available *bool `json:"available" binding:"required" example:"false"`
}

// ListUsersResponse wraps a page of users.
type ListUsersResponse = PageResponse[domain.User]

// AdminStats godoc
// @ID          adminStats
// @Summary     Platform statistics
// @Description Counts of users, active items, completed transactions and pending reports, with month-over-month deltas.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  services.PlatformStats
// @Failure     403  {object}  handlers.ErrorResponse  "Admin only"
// @Router      /admin/stats [get]
func (h *Handlers) AdminStats(c *gin.Context) {
	st, err := h.mod.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// AdminListUsers godoc
// @ID          adminListUsers
// @Summary     List users
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       q          query  string  false  "Name or email contains"
// @Param       role       query  string  false  "Role"  Enums(student, admin)
// @Param       suspended  query  bool    false  "Suspended flag"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListUsersResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     403  {object}  handlers.ErrorResponse  "Admin only"
// @Router      /admin/users [get]
func (h *Handlers) AdminListUsers(c *gin.Context) {
	susp, err := utils.OptionalBool(c.Query("suspended"))
	if err != nil {
		writeError(c, &services.ValidationError{Fields: []services.FieldError{
			{Field: "suspended", Message: "suspended must be true or false"},
		}})
		return
	}
	page, pageSize := clampPagination(c)
	res, err := h.mod.ListUsers(c.Request.Context(), repo.UserFilter{
		Query:     c.Query("q"),
		Role:      c.Query("role"),
		Suspended: susp,
	}, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, pageResponse(res))
}

// SuspendUser godoc
// @ID          suspendUser
// @Summary     Suspend or reinstate a user
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                   true  "User ID (UUID)"  format(uuid)
// @Param       body  body      handlers.SuspendRequest  true  "Flag"
// @Success     200   {object}  domain.User
// @Failure     404   {object}  handlers.ErrorResponse  "User not found"
// @Router      /admin/users/{id}/suspend [put]
func (h *Handlers) SuspendUser(c *gin.Context) {
	var req SuspendRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.mod.SuspendUser(c.Request.Context(), actor(c), c.Param("id"), *req.Suspended)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// VerifyUser godoc
// @ID          verifyUser
// @Summary     Set a user's verified badge
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                  true  "User ID (UUID)"  format(uuid)
// @Param       body  body      handlers.VerifyRequest  true  "Flag"
// @Success     200   {object}  domain.User
// @Failure     404   {object}  handlers.ErrorResponse  "User not found"
// @Router      /admin/users/{id}/verify [put]
func (h *Handlers) VerifyUser(c *gin.Context) {
	var req VerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.mod.VerifyUser(c.Request.Context(), c.Param("id"), *req.Verified)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// DeleteUser godoc
// @ID          deleteUser
// @Summary     Delete a user and their items
// @Description Deletes every item the user owns, then the user. Item failures do not stop the cascade; they are listed and the user is kept (207) so the call can be retried.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "User ID (UUID)"  format(uuid)
// @Success     200  {object}  services.CascadeResult
// @Success     207  {object}  services.CascadeResult  "Some items could not be deleted"
// @Failure     400  {object}  handlers.ErrorResponse  "Cannot delete yourself"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Router      /admin/users/{id} [delete]
func (h *Handlers) DeleteUser(c *gin.Context) {
	res, err := h.mod.DeleteUser(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if len(res.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	ok(c, status, res)
}

// AdminListItems godoc
// @ID          adminListItems
// @Summary     List all items
// @Description Same filters as GET /items, hidden items included.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       q          query  string  false  "Text filter"
// @Param       department query  string  false  "Department code"
// @Param       type       query  string  false  "Disposition"
// @Param       available  query  bool    false  "Availability"
// @Param       seller_id  query  string  false  "Seller"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListItemsResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Admin only"
// @Router      /admin/items [get]
func (h *Handlers) AdminListItems(c *gin.Context) {
	f, err := listingFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	f.SellerID = c.Query("seller_id")
	f.IncludeHidden = true
	page, pageSize := clampPagination(c)
	res, err := h.listings.ListPage(c.Request.Context(), f, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, pageResponse(res))
}

// HideItem godoc
// @ID          hideItem
// @Summary     Hide or unhide an item
// @Description Moderation visibility; independent of availability.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                true  "Item ID (UUID)"  format(uuid)
// @Param       body  body      handlers.HideRequest  true  "Flag"
// @Success     200   {object}  domain.Listing
// @Failure     404   {object}  handlers.ErrorResponse  "Item not found"
// @Router      /admin/items/{id}/hide [put]
func (h *Handlers) HideItem(c *gin.Context) {
	var req HideRequest
	if !bindJSON(c, &req) {
		return
	}
	l, err := h.mod.SetListingHidden(c.Request.Context(), c.Param("id"), *req.Hidden)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, l)
}

// SetItemAvailability godoc
// @ID          setItemAvailability
// @Summary     Set an item's availability
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                        true  "Item ID (UUID)"  format(uuid)
// @Param       body  body      handlers.AvailabilityRequest  true  "Flag"
// @Success     200   {object}  domain.Listing
// @Failure     404   {object}  handlers.ErrorResponse  "Item not found"
// @Router      /admin/items/{id}/availability [put]
func (h *Handlers) SetItemAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if !bindJSON(c, &req) {
		return
	}
	l, err := h.mod.SetListingAvailability(c.Request.Context(), c.Param("id"), *req.Available)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, l)
}

// AdminDeleteItem godoc
// @ID          adminDeleteItem
// @Summary     Delete any item
// @Tags        Admin
// @Security    BearerAuth
// @Param       id   path      string  true  "Item ID (UUID)"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Item not found"
// @Router      /admin/items/{id} [delete]
func (h *Handlers) AdminDeleteItem(c *gin.Context) {
	if err := h.mod.DeleteListing(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}
