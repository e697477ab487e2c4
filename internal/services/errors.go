// Package services defines the business logic of the marketplace: listings,
// transactions, reviews, conversations, moderation, reports and accounts.
// This file centralizes the service-level error taxonomy so that service
// methods return typed outcomes and handlers translate them in one place.
//
// Every specific error wraps exactly one category (ErrNotFound, ErrForbidden,
// ErrConflict, ErrUnauthorized) and matches it with errors.Is. Input problems
// are reported as *ValidationError carrying every violated field.
package services

import (
	"errors"
	"strings"
)

// Categories.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// kindError is a human-readable error that belongs to a category.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

func newKind(kind error, msg string) error { return &kindError{kind: kind, msg: msg} }

// Not found.
var (
	ErrUserNotFound        = newKind(ErrNotFound, "user not found")
	ErrListingNotFound     = newKind(ErrNotFound, "item not found")
	ErrTransactionNotFound = newKind(ErrNotFound, "transaction not found")
	ErrReportNotFound      = newKind(ErrNotFound, "report not found")
	ErrReviewNotFound      = newKind(ErrNotFound, "review not found")
)

// Forbidden.
var (
	ErrNotListingOwner   = newKind(ErrForbidden, "you can only modify your own items")
	ErrNotParticipant    = newKind(ErrForbidden, "you are not a party to this transaction")
	ErrNotInConversation = newKind(ErrForbidden, "you are not a participant in this conversation")
	ErrAccountSuspended  = newKind(ErrForbidden, "account is suspended")
	ErrAdminOnly         = newKind(ErrForbidden, "admin access required")
)

// Conflict.
var (
	ErrListingUnavailable      = newKind(ErrConflict, "item is no longer available")
	ErrTransactionTerminal     = newKind(ErrConflict, "transaction is already completed or cancelled")
	ErrTransactionNotCompleted = newKind(ErrConflict, "only completed transactions can be reviewed")
	ErrAlreadyReviewed         = newKind(ErrConflict, "you have already reviewed this transaction")
	ErrEmailTaken              = newKind(ErrConflict, "email is already registered")
)

// Unauthorized.
var (
	ErrInvalidCredentials = newKind(ErrUnauthorized, "invalid email or password")
	ErrInvalidToken       = newKind(ErrUnauthorized, "invalid or expired token")
)

// FieldError is one violated input rule.
type FieldError struct {
	Field   string `json:"field"   example:"price"`
	Message string `json:"message" example:"price must be greater than 0 for sale items"`
}

// ValidationError reports every field that failed validation, not just the
// first one found.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a violation.
func (e *ValidationError) Add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// Has reports whether field already has a violation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Err returns e when it holds violations and nil otherwise.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// invalid is shorthand for a single-field validation failure.
func invalid(field, msg string) error {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}
