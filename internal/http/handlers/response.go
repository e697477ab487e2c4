// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by every endpoint: the error
// envelope, JSON success writers, request binding and pagination metadata.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/campus-market/internal/http/middleware"
	"github.com/tbourn/campus-market/internal/services"
	"github.com/tbourn/campus-market/internal/utils"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Error string `json:"error" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message,omitempty" example:"item not found"`
	// Every violated field, for validation failures
	Errors []services.FieldError `json:"errors,omitempty"`
}

// fail aborts the request with the error envelope. 5xx responses are logged
// through the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	failFields(c, status, code, msg, nil)
}

func failFields(c *gin.Context, status int, code, msg string, fields []services.FieldError) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().Int("status", status).Str("code", code)
		if len(c.Errors) > 0 {
			ev = ev.Str("cause", c.Errors.Last().Error())
		}
		ev.Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.GetRequestID(c),
		Error:     code,
		Message:   msg,
		Errors:    fields,
	})
}

// Fail is the exported variant of fail, for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// bindJSON decodes the request body into dst, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// PageResponse is a page of items plus its pagination metadata.
type PageResponse[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

func pageResponse[T any](p services.Page[T]) PageResponse[T] {
	totalPages := 0
	if p.PageSize > 0 {
		totalPages = int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	items := p.Items
	if items == nil {
		items = []T{}
	}
	return PageResponse[T]{
		Items: items,
		Pagination: Pagination{
			Page:       p.Page,
			PageSize:   p.PageSize,
			Total:      p.Total,
			TotalPages: totalPages,
			HasNext:    p.Page < totalPages,
		},
	}
}

// clampPagination parses and bounds the page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = max(utils.AtoiDefault(c.Query("page"), defaultPage), 1)
	pageSize = min(max(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1), maxPageSize)
	return page, pageSize
}

// actor returns the authenticated caller set by middleware.Authenticate.
// Anonymous requests yield a zero Actor.
func actor(c *gin.Context) services.Actor {
	return services.Actor{ID: middleware.UserID(c), Role: middleware.Role(c)}
}
