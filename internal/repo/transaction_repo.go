// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Transaction ledger. Rows are never deleted.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
)

// CreateTransaction inserts t, assigning a UUID and UTC timestamps when unset.
func CreateTransaction(ctx context.Context, db *gorm.DB, t *domain.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = domain.TxPending
	}
	return db.WithContext(ctx).Create(t).Error
}

// GetTransaction fetches a transaction by ID.
func GetTransaction(ctx context.Context, db *gorm.DB, id string) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// TransitionTransaction moves transaction id from status `from` to `to`,
// setting completed_at when provided. The status predicate makes the write
// a compare-and-swap: it returns false when the row was not in `from`
// (already transitioned by a concurrent caller, or missing).
func TransitionTransaction(ctx context.Context, db *gorm.DB, id, from, to string, completedAt *time.Time) (bool, error) {
	fields := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if completedAt != nil {
		fields["completed_at"] = *completedAt
	}
	res := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func applyTransactionFilter(q *gorm.DB, f domain.TransactionFilter) *gorm.DB {
	if f.BuyerID != "" {
		q = q.Where("buyer_id = ?", f.BuyerID)
	}
	if f.SellerID != "" {
		q = q.Where("seller_id = ?", f.SellerID)
	}
	if f.Participant != "" {
		q = q.Where("(buyer_id = ? OR seller_id = ?)", f.Participant, f.Participant)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ListingID != "" {
		q = q.Where("listing_id = ?", f.ListingID)
	}
	return q
}

// CountTransactions returns the number of ledger rows matching f.
func CountTransactions(ctx context.Context, db *gorm.DB, f domain.TransactionFilter) (int64, error) {
	var total int64
	err := applyTransactionFilter(db.WithContext(ctx).Model(&domain.Transaction{}), f).Count(&total).Error
	return total, err
}

// ListTransactionsPage returns a page of ledger rows matching f, newest first.
func ListTransactionsPage(ctx context.Context, db *gorm.DB, f domain.TransactionFilter, offset, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := applyTransactionFilter(db.WithContext(ctx), f).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
