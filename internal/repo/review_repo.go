// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Review
// model.
//
// Error semantics:
//   - A second review for the same (transaction_id, reviewer_id) is rejected
//     by the ux_reviews_tx_reviewer unique index and surfaces as ErrDuplicate.
//     There is deliberately no existence pre-check.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
)

// CreateReview inserts r and maps unique violations to ErrDuplicate.
func CreateReview(ctx context.Context, db *gorm.DB, r *domain.Review) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetReview fetches a review by ID.
func GetReview(ctx context.Context, db *gorm.DB, id string) (*domain.Review, error) {
	var r domain.Review
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CountReviewsFor returns how many reviews revieweeID received.
func CountReviewsFor(ctx context.Context, db *gorm.DB, revieweeID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Review{}).
		Where("reviewee_id = ?", revieweeID).
		Count(&total).Error
	return total, err
}

// ListReviewsForPage returns reviews received by revieweeID, newest first.
func ListReviewsForPage(ctx context.Context, db *gorm.DB, revieweeID string, offset, limit int) ([]domain.Review, error) {
	var out []domain.Review
	err := db.WithContext(ctx).
		Where("reviewee_id = ?", revieweeID).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ReviewsByTransaction returns every review written for a transaction.
func ReviewsByTransaction(ctx context.Context, db *gorm.DB, transactionID string) ([]domain.Review, error) {
	var out []domain.Review
	err := db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// RatingAggregate computes the mean and count of every rating revieweeID
// has received, straight from the review table.
func RatingAggregate(ctx context.Context, db *gorm.DB, revieweeID string) (domain.Rating, error) {
	var row struct {
		Total int64
		Count int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Review{}).
		Select("COALESCE(SUM(rating), 0) AS total, COUNT(*) AS count").
		Where("reviewee_id = ?", revieweeID).
		Scan(&row).Error
	if err != nil {
		return domain.Rating{}, err
	}
	if row.Count == 0 {
		return domain.Rating{}, nil
	}
	return domain.Rating{
		Average: float64(row.Total) / float64(row.Count),
		Count:   int(row.Count),
	}, nil
}

// ReviewStats builds the 1..5 histogram and sub-rating averages for
// revieweeID. Users without reviews get domain.EmptyReviewStats.
func ReviewStats(ctx context.Context, db *gorm.DB, revieweeID string) (domain.ReviewStats, error) {
	stats := domain.EmptyReviewStats()

	var buckets []struct {
		Rating int
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Review{}).
		Select("rating, COUNT(*) AS n").
		Where("reviewee_id = ?", revieweeID).
		Group("rating").
		Scan(&buckets).Error
	if err != nil {
		return stats, err
	}
	var sum int64
	for _, b := range buckets {
		stats.Histogram[b.Rating] = b.N
		stats.Count += b.N
		sum += int64(b.Rating) * b.N
	}
	if stats.Count == 0 {
		return stats, nil
	}
	stats.Average = float64(sum) / float64(stats.Count)

	var cat struct {
		CommSum  int64
		CommN    int64
		CondSum  int64
		CondN    int64
		PunctSum int64
		PunctN   int64
	}
	err = db.WithContext(ctx).
		Model(&domain.Review{}).
		Select(`COALESCE(SUM(communication), 0) AS comm_sum, COUNT(communication) AS comm_n,
			COALESCE(SUM(item_condition), 0) AS cond_sum, COUNT(item_condition) AS cond_n,
			COALESCE(SUM(punctuality), 0) AS punct_sum, COUNT(punctuality) AS punct_n`).
		Where("reviewee_id = ?", revieweeID).
		Scan(&cat).Error
	if err != nil {
		return stats, err
	}
	stats.Categories = domain.CategoryAverage{
		Communication: mean(cat.CommSum, cat.CommN),
		ItemCondition: mean(cat.CondSum, cat.CondN),
		Punctuality:   mean(cat.PunctSum, cat.PunctN),
	}
	return stats, nil
}

func mean(sum, n int64) *float64 {
	if n == 0 {
		return nil
	}
	v := float64(sum) / float64(n)
	return &v
}
