package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/campus-market/internal/http/middleware"
)

// rememberIdempotent records the outcome of a keyed create so a retry with
// the same Idempotency-Key replays it. Failures are logged, never surfaced:
// the resource already exists and the client deserves its response.
func (h *Handlers) rememberIdempotent(c *gin.Context, resourceID string, status int) {
	if h.idem == nil {
		return
	}
	key, scope, ok := middleware.GetIdempotencyKey(c)
	if !ok {
		return
	}
	if err := h.idem.Remember(c.Request.Context(), middleware.UserID(c), scope, key, resourceID, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency remember failed")
	}
}
