// Package services – ModerationService
//
// This file implements administrative operations that bypass ownership
// checks: suspending, verifying and deleting users, hiding and deleting
// listings, and the dashboard statistics.
//
// Deleting a user is a two-step saga: every listing of the user is deleted
// first (a failure does not stop the remaining deletions), then the user row
// is removed only if no listing deletion failed. The result reports which
// deletions succeeded and which failed; calling DeleteUser again retries the
// failures and converges.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/repo"
)

// ListingDeleter is the part of the listing store the cascade needs.
type ListingDeleter interface {
	// ListingIDsBySeller returns the ids of every listing owned by sellerID.
	ListingIDsBySeller(ctx context.Context, db *gorm.DB, sellerID string) ([]string, error)
	// DeleteListing removes one listing; repo.ErrNotFound means it is gone.
	DeleteListing(ctx context.Context, db *gorm.DB, id string) error
}

// CascadeFailure is one listing that could not be deleted.
type CascadeFailure struct {
	ListingID string `json:"listing_id"`
	Error     string `json:"error"`
}

// CascadeResult reports the outcome of a user deletion.
type CascadeResult struct {
	UserID      string           `json:"user_id"`
	Deleted     []string         `json:"deleted_listings"`
	Failed      []CascadeFailure `json:"failed_listings"`
	UserDeleted bool             `json:"user_deleted"`
}

// MonthDelta compares a count for the current calendar month with the
// previous one. ChangePercent is nil when last month was zero.
type MonthDelta struct {
	ThisMonth     int64    `json:"this_month"`
	LastMonth     int64    `json:"last_month"`
	ChangePercent *float64 `json:"change_percent"`
}

// PlatformStats is the admin dashboard projection.
type PlatformStats struct {
	Users                 int64      `json:"users"`
	ActiveListings        int64      `json:"active_listings"`
	CompletedTransactions int64      `json:"completed_transactions"`
	PendingReports        int64      `json:"pending_reports"`
	UsersGrowth           MonthDelta `json:"users_growth"`
	ListingsGrowth        MonthDelta `json:"listings_growth"`
	TransactionsGrowth    MonthDelta `json:"transactions_growth"`
}

// ModerationService implements admin use-cases.
type ModerationService struct {
	DB       *gorm.DB
	Listings ListingDeleter

	// Now is overridable in tests.
	Now func() time.Time
}

// DeleteUser deletes every listing owned by userID and then the user. It
// never stops at the first failed listing. An error is returned only when
// the user is unknown, the listing lookup fails or the final user delete
// fails; listing failures are reported in the result.
func (s *ModerationService) DeleteUser(ctx context.Context, admin Actor, userID string) (CascadeResult, error) {
	ctx, span := otel.Tracer("services/ModerationService").Start(ctx, "DeleteUser")
	span.SetAttributes(attribute.String("target.user.id", userID))
	defer span.End()

	res := CascadeResult{UserID: userID, Deleted: []string{}, Failed: []CascadeFailure{}}
	if userID == admin.ID {
		return res, invalid("id", "you cannot delete your own account")
	}

	ids, err := s.Listings.ListingIDsBySeller(ctx, s.DB, userID)
	if err != nil {
		return res, err
	}
	if _, err := repo.GetUser(ctx, s.DB, userID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return res, err
		}
		if len(ids) == 0 {
			return res, ErrUserNotFound
		}
	}

	lg := log.Ctx(ctx)
	for _, id := range ids {
		err := s.Listings.DeleteListing(ctx, s.DB, id)
		if err == nil || errors.Is(err, repo.ErrNotFound) {
			res.Deleted = append(res.Deleted, id)
			continue
		}
		cascadeFailures.Inc()
		lg.Warn().Err(err).Str("user_id", userID).Str("listing_id", id).Msg("cascade delete: listing delete failed")
		res.Failed = append(res.Failed, CascadeFailure{ListingID: id, Error: err.Error()})
	}
	span.SetAttributes(
		attribute.Int("cascade.deleted", len(res.Deleted)),
		attribute.Int("cascade.failed", len(res.Failed)),
	)
	if len(res.Failed) > 0 {
		return res, nil
	}

	if err := repo.DeleteUser(ctx, s.DB, userID); err != nil {
		return res, err
	}
	res.UserDeleted = true
	lg.Info().Str("user_id", userID).Int("listings", len(res.Deleted)).Msg("user deleted")
	return res, nil
}

// SuspendUser sets or clears the suspended flag. It does not cascade.
func (s *ModerationService) SuspendUser(ctx context.Context, admin Actor, userID string, suspended bool) (*domain.User, error) {
	if userID == admin.ID && suspended {
		return nil, invalid("id", "you cannot suspend your own account")
	}
	return s.setUserFlag(ctx, userID, "is_suspended", suspended)
}

// VerifyUser sets or clears the verified badge.
func (s *ModerationService) VerifyUser(ctx context.Context, userID string, verified bool) (*domain.User, error) {
	return s.setUserFlag(ctx, userID, "is_verified", verified)
}

func (s *ModerationService) setUserFlag(ctx context.Context, userID, column string, v bool) (*domain.User, error) {
	if err := repo.UpdateUserFields(ctx, s.DB, userID, map[string]any{column: v}); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// SetListingAvailability overrides a listing's market state.
func (s *ModerationService) SetListingAvailability(ctx context.Context, listingID string, available bool) (*domain.Listing, error) {
	return s.setListingFlag(ctx, listingID, "is_available", available)
}

// SetListingHidden hides or reveals a listing in public views. Availability
// is not affected.
func (s *ModerationService) SetListingHidden(ctx context.Context, listingID string, hidden bool) (*domain.Listing, error) {
	return s.setListingFlag(ctx, listingID, "is_hidden", hidden)
}

func (s *ModerationService) setListingFlag(ctx context.Context, listingID, column string, v bool) (*domain.Listing, error) {
	if err := repo.UpdateListingFields(ctx, s.DB, listingID, map[string]any{column: v}); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	l, err := repo.GetListing(ctx, s.DB, listingID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return l, nil
}

// DeleteListing removes any listing regardless of owner.
func (s *ModerationService) DeleteListing(ctx context.Context, listingID string) error {
	if err := s.Listings.DeleteListing(ctx, s.DB, listingID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrListingNotFound
		}
		return err
	}
	return nil
}

// ListUsers returns users matching f, newest first.
func (s *ModerationService) ListUsers(ctx context.Context, f repo.UserFilter, page, pageSize int) (Page[domain.User], error) {
	page, pageSize, offset := normalizePage(page, pageSize)
	out := Page[domain.User]{Items: []domain.User{}, Page: page, PageSize: pageSize}
	total, err := repo.CountUsers(ctx, s.DB, f)
	if err != nil {
		return out, err
	}
	out.Total = total
	if total == 0 {
		return out, nil
	}
	items, err := repo.ListUsersPage(ctx, s.DB, f, offset, pageSize)
	if err != nil {
		return out, err
	}
	out.Items = items
	return out, nil
}

// Stats computes platform totals and month-over-month growth.
func (s *ModerationService) Stats(ctx context.Context) (PlatformStats, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	var out PlatformStats
	total, err := repo.CountPlatform(ctx, s.DB, repo.Window{})
	if err != nil {
		return out, err
	}
	cur, err := repo.CountPlatform(ctx, s.DB, repo.Window{From: thisMonth})
	if err != nil {
		return out, err
	}
	prev, err := repo.CountPlatform(ctx, s.DB, repo.Window{From: lastMonth, To: thisMonth})
	if err != nil {
		return out, err
	}
	pending, err := repo.CountReports(ctx, s.DB, domain.ReportPending)
	if err != nil {
		return out, err
	}

	out.Users = total.Users
	out.ActiveListings = total.ActiveListings
	out.CompletedTransactions = total.CompletedTransactions
	out.PendingReports = pending
	out.UsersGrowth = delta(cur.Users, prev.Users)
	out.ListingsGrowth = delta(cur.ActiveListings, prev.ActiveListings)
	out.TransactionsGrowth = delta(cur.CompletedTransactions, prev.CompletedTransactions)
	return out, nil
}

func delta(cur, prev int64) MonthDelta {
	d := MonthDelta{ThisMonth: cur, LastMonth: prev}
	if prev > 0 {
		pct := float64(cur-prev) / float64(prev) * 100
		d.ChangePercent = &pct
	}
	return d
}
