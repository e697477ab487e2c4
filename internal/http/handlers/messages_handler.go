// Message HTTP handlers.
//
//   - POST /messages
//   - GET  /messages/conversations
//   - GET  /messages/conversation/{id}       (key or other user's id)
//   - PUT  /messages/conversation/{id}/read
//   - GET  /messages/unread/count
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/services"
)

// SendMessageRequest is the JSON payload for sending a message.
type SendMessageRequest struct {
	ReceiverID string  `json:"receiver_id" example:"0f9a6c2e-3c1f-4a8e-9f7d-2b8c1e5d4a10"`
	Content    string  `json:"content"     example:"Is the calculator still available?"`
	ListingID  *string `json:"listing_id,omitempty" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// ConversationsResponse lists the caller's conversations.
type ConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
}

// ListMessagesResponse wraps a page of one conversation.
type ListMessagesResponse = PageResponse[domain.Message]

// CountResponse carries a single count.
type CountResponse struct {
	Count int64 `json:"count" example:"3"`
}

// MarkedReadResponse reports how many messages changed.
type MarkedReadResponse struct {
	Updated int64 `json:"updated" example:"2"`
}

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a message
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.SendMessageRequest  true  "Message"
// @Success     201   {object}  domain.Message
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404   {object}  handlers.ErrorResponse  "Receiver or item not found"
// @Router      /messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.msgs.Send(c.Request.Context(), actor(c), services.SendMessageInput{
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		ListingID:  req.ListingID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// Conversations godoc
// @ID          conversations
// @Summary     Caller's conversations
// @Description Latest message, other participant, referenced item and unread count per conversation, most recent first.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ConversationsResponse
// @Router      /messages/conversations [get]
func (h *Handlers) Conversations(c *gin.Context) {
	convs, err := h.msgs.Conversations(c.Request.Context(), actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ConversationsResponse{Conversations: convs})
}

// Conversation godoc
// @ID          conversation
// @Summary     Messages in a conversation
// @Description Oldest first. The id is a conversation key or the other participant's user id.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       id         path   string  true   "Conversation key or user ID"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Router      /messages/conversation/{id} [get]
func (h *Handlers) Conversation(c *gin.Context) {
	page, pageSize := clampPagination(c)
	res, err := h.msgs.Conversation(c.Request.Context(), actor(c), c.Param("id"), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, pageResponse(res))
}

// MarkConversationRead godoc
// @ID          markConversationRead
// @Summary     Mark a conversation read
// @Description Flags every message addressed to the caller in the conversation as read.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Conversation key or user ID"
// @Success     200  {object}  handlers.MarkedReadResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Router      /messages/conversation/{id}/read [put]
func (h *Handlers) MarkConversationRead(c *gin.Context) {
	n, err := h.msgs.MarkRead(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, MarkedReadResponse{Updated: n})
}

// UnreadCount godoc
// @ID          unreadCount
// @Summary     Unread message count
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.CountResponse
// @Router      /messages/unread/count [get]
func (h *Handlers) UnreadCount(c *gin.Context) {
	n, err := h.msgs.UnreadCount(c.Request.Context(), actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}
