// Review HTTP handlers.
//
//   - POST /reviews                 (submit, Idempotency-Key aware)
//   - GET  /reviews/user/{id}       (reviews received, paginated)
//   - GET  /reviews/user/{id}/stats (histogram and category averages)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/http/middleware"
	"github.com/tbourn/campus-market/internal/services"
)

// CreateReviewRequest is the JSON payload for reviewing the counterparty of
// a completed transaction. Sub-ratings are optional.
type CreateReviewRequest struct {
	TransactionID string `json:"transaction_id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Rating        int    `json:"rating"         example:"5" minimum:"1" maximum:"5"`
	Comment       string `json:"comment"        example:"Quick handover, book as described."`
	Communication *int   `json:"communication,omitempty"  example:"5"`
	ItemCondition *int   `json:"item_condition,omitempty" example:"4"`
	Punctuality   *int   `json:"punctuality,omitempty"    example:"5"`
}

// ListReviewsResponse wraps a page of reviews.
type ListReviewsResponse = PageResponse[domain.Review]

// CreateReview godoc
// @ID          createReview
// @Summary     Review a transaction
// @Description Stores a review of the other party and recomputes their rating. One review per transaction and reviewer.
// @Tags        Reviews
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Idempotency key"
// @Param       body  body      handlers.CreateReviewRequest  true  "Review"
// @Success     201   {object}  domain.Review
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     403   {object}  handlers.ErrorResponse  "Not a party"
// @Failure     404   {object}  handlers.ErrorResponse  "Transaction not found"
// @Failure     409   {object}  handlers.ErrorResponse  "Already reviewed or not completed"
// @Router      /reviews [post]
func (h *Handlers) CreateReview(c *gin.Context) {
	ctx := c.Request.Context()
	if rec, hit := middleware.Replay(c); hit {
		r, err := h.reviews.Get(ctx, rec.ResourceID)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, rec.Status, r)
		return
	}

	var req CreateReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.reviews.Submit(ctx, actor(c), services.ReviewInput{
		TransactionID: req.TransactionID,
		Rating:        req.Rating,
		Comment:       req.Comment,
		Communication: req.Communication,
		ItemCondition: req.ItemCondition,
		Punctuality:   req.Punctuality,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.rememberIdempotent(c, r.ID, http.StatusCreated)
	ok(c, http.StatusCreated, r)
}

// UserReviews godoc
// @ID          userReviews
// @Summary     Reviews received by a user
// @Tags        Reviews
// @Produce     json
// @Param       id         path   string  true   "User ID (UUID)"  format(uuid)
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListReviewsResponse
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Router      /reviews/user/{id} [get]
func (h *Handlers) UserReviews(c *gin.Context) {
	page, pageSize := clampPagination(c)
	res, err := h.reviews.ListFor(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, pageResponse(res))
}

// UserReviewStats godoc
// @ID          userReviewStats
// @Summary     Review statistics for a user
// @Description Average, count, a 1..5 histogram and sub-rating averages. Users without reviews get zeroed stats.
// @Tags        Reviews
// @Produce     json
// @Param       id   path      string  true  "User ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.ReviewStats
// @Router      /reviews/user/{id}/stats [get]
func (h *Handlers) UserReviewStats(c *gin.Context) {
	st, err := h.reviews.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}
