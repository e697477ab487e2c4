// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) and the admin dashboard.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
)

// ListingsStats returns the number of listings matching f, their summed
// view counters and the greatest UpdatedAt among them. Views are included
// because view bumps do not touch updated_at. MaxUpdatedAt is nil when
// nothing matches.
func ListingsStats(ctx context.Context, db *gorm.DB, f domain.ListingFilter) (domain.ListingSetStats, error) {
	var out domain.ListingSetStats
	var agg struct {
		Count int64
		Views int64
	}
	q := applyListingFilter(db.WithContext(ctx).Model(&domain.Listing{}), f)
	if err := q.Select("COUNT(*) AS count, COALESCE(SUM(views), 0) AS views").Scan(&agg).Error; err != nil {
		return out, err
	}
	if agg.Count == 0 {
		return out, nil
	}
	out.Count, out.Views = agg.Count, agg.Views

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	q = applyListingFilter(db.WithContext(ctx).Model(&domain.Listing{}), f)
	if err := q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return domain.ListingSetStats{}, err
	}
	out.MaxUpdatedAt = &row.UpdatedAt
	return out, nil
}

// Window bounds a counting query to [From, To). Zero bounds are open.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) apply(q *gorm.DB, column string) *gorm.DB {
	if !w.From.IsZero() {
		q = q.Where(column+" >= ?", w.From)
	}
	if !w.To.IsZero() {
		q = q.Where(column+" < ?", w.To)
	}
	return q
}

// PlatformCounts is the raw material of the admin dashboard.
type PlatformCounts struct {
	Users                 int64
	ActiveListings        int64
	CompletedTransactions int64
}

// CountPlatform counts users and active listings created within w and
// transactions completed within w.
func CountPlatform(ctx context.Context, db *gorm.DB, w Window) (PlatformCounts, error) {
	var out PlatformCounts

	q := w.apply(db.WithContext(ctx).Model(&domain.User{}), "created_at")
	if err := q.Count(&out.Users).Error; err != nil {
		return out, err
	}

	q = w.apply(db.WithContext(ctx).Model(&domain.Listing{}), "created_at").
		Where("is_available = ? AND is_hidden = ?", true, false)
	if err := q.Count(&out.ActiveListings).Error; err != nil {
		return out, err
	}

	q = w.apply(db.WithContext(ctx).Model(&domain.Transaction{}), "completed_at").
		Where("status = ?", domain.TxCompleted)
	if err := q.Count(&out.CompletedTransactions).Error; err != nil {
		return out, err
	}
	return out, nil
}
