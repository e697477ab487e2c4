// Transaction HTTP handlers.
//
//   - POST /transactions                  (create, Idempotency-Key aware)
//   - PUT  /transactions/{id}/complete
//   - PUT  /transactions/{id}/cancel
//   - GET  /transactions/my-transactions
//   - GET  /transactions/{id}
//   - GET  /transactions                  (admin, filtered)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/http/middleware"
	"github.com/tbourn/campus-market/internal/services"
)

// CreateTransactionRequest is the JSON payload for buying a listing.
type CreateTransactionRequest struct {
	ListingID string `json:"listing_id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	SellerID  string `json:"seller_id"  example:"0f9a6c2e-3c1f-4a8e-9f7d-2b8c1e5d4a10"`
	// Amount defaults to the listing price.
	Amount *float64 `json:"amount,omitempty" example:"450"`
}

// ListTransactionsResponse wraps a page of transactions.
type ListTransactionsResponse = PageResponse[domain.Transaction]

// CreateTransaction godoc
// @ID          createTransaction
// @Summary     Start a transaction
// @Description Opens a pending transaction over an available listing. The listing stays available until completion. With Idempotency-Key, a retry returns the original transaction.
// @Tags        Transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Idempotency key"  example(tx-2f1c-01)
// @Param       body  body      handlers.CreateTransactionRequest  true  "Transaction"
// @Success     201   {object}  domain.Transaction
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed or self-purchase"
// @Failure     404   {object}  handlers.ErrorResponse  "Item not found"
// @Failure     409   {object}  handlers.ErrorResponse  "Item is no longer available"
// @Router      /transactions [post]
func (h *Handlers) CreateTransaction(c *gin.Context) {
	ctx := c.Request.Context()
	if rec, hit := middleware.Replay(c); hit {
		t, err := h.txs.Get(ctx, actor(c), rec.ResourceID)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, rec.Status, t)
		return
	}

	var req CreateTransactionRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.txs.Create(ctx, actor(c), services.CreateTransactionInput{
		ListingID: req.ListingID,
		SellerID:  req.SellerID,
		Amount:    req.Amount,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.rememberIdempotent(c, t.ID, http.StatusCreated)
	ok(c, http.StatusCreated, t)
}

// CompleteTransaction godoc
// @ID          completeTransaction
// @Summary     Complete a transaction
// @Description Marks a pending transaction completed and the listing unavailable, atomically. Buyer or seller only.
// @Tags        Transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Transaction ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.Transaction
// @Failure     403  {object}  handlers.ErrorResponse  "Not a party"
// @Failure     404  {object}  handlers.ErrorResponse  "Transaction not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already completed or cancelled"
// @Router      /transactions/{id}/complete [put]
func (h *Handlers) CompleteTransaction(c *gin.Context) {
	t, err := h.txs.Complete(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// CancelTransaction godoc
// @ID          cancelTransaction
// @Summary     Cancel a transaction
// @Description Cancels a pending transaction. Listing availability is not touched.
// @Tags        Transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Transaction ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.Transaction
// @Failure     403  {object}  handlers.ErrorResponse  "Not a party"
// @Failure     404  {object}  handlers.ErrorResponse  "Transaction not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already completed or cancelled"
// @Router      /transactions/{id}/cancel [put]
func (h *Handlers) CancelTransaction(c *gin.Context) {
	t, err := h.txs.Cancel(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// GetTransaction godoc
// @ID          getTransaction
// @Summary     Transaction detail
// @Tags        Transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Transaction ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.Transaction
// @Failure     403  {object}  handlers.ErrorResponse  "Not a party"
// @Failure     404  {object}  handlers.ErrorResponse  "Transaction not found"
// @Router      /transactions/{id} [get]
func (h *Handlers) GetTransaction(c *gin.Context) {
	t, err := h.txs.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// MyTransactions godoc
// @ID          myTransactions
// @Summary     Caller's transactions
// @Tags        Transactions
// @Produce     json
// @Security    BearerAuth
// @Param       role       query  string  false  "Side"    Enums(buyer, seller)
// @Param       status     query  string  false  "Status"  Enums(pending, completed, cancelled)
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListTransactionsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /transactions/my-transactions [get]
func (h *Handlers) MyTransactions(c *gin.Context) {
	page, pageSize := clampPagination(c)
	res, err := h.txs.ListMine(c.Request.Context(), actor(c), c.Query("role"), c.Query("status"), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, pageResponse(res))
}

// ListTransactions godoc
// @ID          listTransactions
// @Summary     All transactions (admin)
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       buyer_id   query  string  false  "Buyer"
// @Param       seller_id  query  string  false  "Seller"
// @Param       listing_id query  string  false  "Listing"
// @Param       status     query  string  false  "Status"  Enums(pending, completed, cancelled)
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListTransactionsResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Admin only"
// @Router      /transactions [get]
func (h *Handlers) ListTransactions(c *gin.Context) {
	page, pageSize := clampPagination(c)
	res, err := h.txs.List(c.Request.Context(), domain.TransactionFilter{
		BuyerID:   c.Query("buyer_id"),
		SellerID:  c.Query("seller_id"),
		ListingID: c.Query("listing_id"),
		Status:    c.Query("status"),
	}, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, pageResponse(res))
}
