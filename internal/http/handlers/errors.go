// Package handlers defines the HTTP-layer error codes used across all API
// endpoints and the single place where service errors become responses.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "error": "validation_failed",
//	  "message": "validation failed",
//	  "errors": [{"field": "price", "message": "price must be greater than 0 for sale items"}]
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/campus-market/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeTooLarge         = "payload_too_large"
	ErrCodeUnsupportedMedia = "unsupported_media_type"
	ErrCodeInternal         = "internal_error"
)

// writeError maps a service error onto the error envelope:
//
//	*services.ValidationError -> 400 validation_failed (with field errors)
//	services.ErrUnauthorized  -> 401
//	services.ErrForbidden     -> 403
//	services.ErrNotFound      -> 404
//	services.ErrConflict      -> 409
//	anything else             -> 500 (message hidden, error logged)
func writeError(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		failFields(c, http.StatusBadRequest, ErrCodeValidation, "validation failed", ve.Fields)
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
