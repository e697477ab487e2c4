package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/campus-market/internal/services"
)

func TestWriteError_Taxonomy(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"validation", &services.ValidationError{Fields: []services.FieldError{
			{Field: "title", Message: "title is required"},
			{Field: "price", Message: "price must be greater than 0 for sale items"},
		}}, http.StatusBadRequest, ErrCodeValidation, "validation failed"},
		{"not found", services.ErrListingNotFound, http.StatusNotFound, ErrCodeNotFound, "item not found"},
		{"forbidden", services.ErrNotListingOwner, http.StatusForbidden, ErrCodeForbidden, "you can only modify your own items"},
		{"conflict", services.ErrListingUnavailable, http.StatusConflict, ErrCodeConflict, "item is no longer available"},
		{"wrapped conflict", fmt.Errorf("submit: %w", services.ErrAlreadyReviewed), http.StatusConflict, ErrCodeConflict, "submit: you have already reviewed this transaction"},
		{"unauthorized", services.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid email or password"},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) { writeError(c, tc.err) })
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			expectStatus(t, w, tc.status)
			var er ErrorResponse
			decodeInto(t, w, &er)
			if er.Error != tc.code || er.Message != tc.msg {
				t.Fatalf("got (%q, %q) want (%q, %q)", er.Error, er.Message, tc.code, tc.msg)
			}
			if tc.status == http.StatusBadRequest && len(er.Errors) != 2 {
				t.Fatalf("want both field errors, got %+v", er.Errors)
			}
			if tc.status != http.StatusBadRequest && er.Errors != nil {
				t.Fatalf("unexpected field errors: %+v", er.Errors)
			}
		})
	}
}

func TestPageResponse(t *testing.T) {
	p := pageResponse(services.Page[int]{Items: []int{1, 2}, Total: 5, Page: 2, PageSize: 2})
	want := Pagination{Page: 2, PageSize: 2, Total: 5, TotalPages: 3, HasNext: true}
	if p.Pagination != want {
		t.Fatalf("pagination=%+v want %+v", p.Pagination, want)
	}

	empty := pageResponse(services.Page[int]{Page: 1, PageSize: 20})
	if empty.Items == nil || len(empty.Items) != 0 || empty.Pagination.HasNext {
		t.Fatalf("empty page=%+v", empty)
	}
}

func TestClampPagination(t *testing.T) {
	cases := []struct {
		query          string
		page, pageSize int
	}{
		{"", 1, 20},
		{"?page=3&page_size=50", 3, 50},
		{"?page=0&page_size=0", 1, 1},
		{"?page=-2&page_size=1000", 1, 100},
		{"?page=x&page_size=y", 1, 20},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/"+tc.query, nil)
		p, ps := clampPagination(c)
		if p != tc.page || ps != tc.pageSize {
			t.Fatalf("%q: got (%d,%d) want (%d,%d)", tc.query, p, ps, tc.page, tc.pageSize)
		}
	}
}

func TestBindJSON_Malformed(t *testing.T) {
	e := newEnv(t)
	s := e.signup(t, "bind@campus.edu")
	req := httptest.NewRequest(http.MethodPost, "/api/items", stringsReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Token)
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	expectError(t, w, http.StatusBadRequest, ErrCodeBadRequest)
}
