package services

import "github.com/tbourn/campus-market/internal/domain"

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role string
}

// IsAdmin reports whether the actor may bypass ownership checks.
func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// Page is a slice of results plus the total number of matches.
type Page[T any] struct {
	Items    []T
	Total    int64
	Page     int
	PageSize int
}

// normalizePage applies the default page and size used by every list call.
func normalizePage(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize, (page - 1) * pageSize
}
