// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Listing
// model.
//
// Listing queries never join users; seller summaries are attached by the
// service layer so that listings survive a missing seller row.
package repo

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
)

// CreateListing inserts l, assigning a UUID and UTC timestamps when unset.
func CreateListing(ctx context.Context, db *gorm.DB, l *domain.Listing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	if l.Images == nil {
		l.Images = []string{}
	}
	l.SearchText = domain.ListingSearchText(l.Title, l.Description)
	return db.WithContext(ctx).Create(l).Error
}

// GetListing fetches a listing by ID.
func GetListing(ctx context.Context, db *gorm.DB, id string) (*domain.Listing, error) {
	var l domain.Listing
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// IncrementListingViews bumps the view counter of listing id. It returns
// ErrNotFound when the listing does not exist.
func IncrementListingViews(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateListingFields applies a column → value patch to listing id and bumps
// updated_at. It returns ErrNotFound when no row matched.
func UpdateListingFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.Listing{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkListingSold flips an available listing to unavailable. It returns
// ErrUnavailable when the listing exists but was already unavailable; a
// listing that no longer exists is left alone.
func MarkListingSold(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("id = ? AND is_available = ?", id, true).
		Updates(map[string]any{"is_available": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Listing{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrUnavailable
	}
	return nil
}

// backfillListingSearchText fills search_text on rows stored before the
// column existed.
func backfillListingSearchText(db *gorm.DB) error {
	type row struct{ ID, Title, Description string }
	var rows []row
	if err := db.Model(&domain.Listing{}).
		Where("search_text = ''").
		Select("id", "title", "description").
		Find(&rows).Error; err != nil {
		return err
	}
	for _, r := range rows {
		if err := db.Model(&domain.Listing{}).
			Where("id = ?", r.ID).
			UpdateColumn("search_text", domain.ListingSearchText(r.Title, r.Description)).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteListing removes listing id and returns ErrNotFound if it was absent.
func DeleteListing(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Listing{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListingIDsBySeller returns the ids of every listing owned by sellerID.
func ListingIDsBySeller(ctx context.Context, db *gorm.DB, sellerID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("seller_id = ?", sellerID).
		Order("created_at asc, id asc").
		Pluck("id", &ids).Error
	return ids, err
}

// applyListingFilter ANDs every non-empty field of f onto q. f.Query is
// case-folded and matched as a substring of the stored search_text.
func applyListingFilter(q *gorm.DB, f domain.ListingFilter) *gorm.DB {
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + escapeLike(domain.FoldText(s)) + "%"
		q = q.Where("search_text LIKE ? ESCAPE '\\'", like)
	}
	if f.Department != "" {
		q = q.Where("department = ?", f.Department)
	}
	if f.Semester != nil {
		q = q.Where("semester = ?", *f.Semester)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Condition != "" {
		q = q.Where("condition = ?", f.Condition)
	}
	if f.SellerID != "" {
		q = q.Where("seller_id = ?", f.SellerID)
	}
	if f.IsAvailable != nil {
		q = q.Where("is_available = ?", *f.IsAvailable)
	}
	if !f.IncludeHidden {
		q = q.Where("is_hidden = ?", false)
	}
	return q
}

// CountListings returns the number of listings matching f.
func CountListings(ctx context.Context, db *gorm.DB, f domain.ListingFilter) (int64, error) {
	var total int64
	err := applyListingFilter(db.WithContext(ctx).Model(&domain.Listing{}), f).Count(&total).Error
	return total, err
}

// ListListingsPage returns a page of listings matching f, newest first.
// Ties on created_at are broken by id so pages are stable.
func ListListingsPage(ctx context.Context, db *gorm.DB, f domain.ListingFilter, offset, limit int) ([]domain.Listing, error) {
	var out []domain.Listing
	err := applyListingFilter(db.WithContext(ctx), f).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// IterateListings yields every listing matching f, newest first, loading
// batchSize rows at a time. Each call starts a fresh query; nothing is
// retained between calls. A query error is yielded once as the last pair.
func IterateListings(ctx context.Context, db *gorm.DB, f domain.ListingFilter, batchSize int) iter.Seq2[domain.Listing, error] {
	if batchSize <= 0 {
		batchSize = 100
	}
	return func(yield func(domain.Listing, error) bool) {
		offset := 0
		for {
			page, err := ListListingsPage(ctx, db, f, offset, batchSize)
			if err != nil {
				yield(domain.Listing{}, err)
				return
			}
			for _, l := range page {
				if !yield(l, nil) {
					return
				}
			}
			if len(page) < batchSize {
				return
			}
			offset += batchSize
		}
	}
}
