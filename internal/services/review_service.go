// Package services – ReviewService
//
// This file implements review submission and the rating aggregate. A review
// insert and the recomputation of the reviewee's rating run in one database
// transaction, and writers for the same reviewee are serialized in-process,
// so concurrent reviews cannot lose updates. Duplicate reviews are rejected
// by the (transaction_id, reviewer_id) unique index alone.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/repo"
)

const maxCommentRunes = 2000

// ReviewInput is a review of the counterparty of a completed transaction.
type ReviewInput struct {
	TransactionID string
	Rating        int
	Comment       string
	Communication *int
	ItemCondition *int
	Punctuality   *int
}

// ReviewService implements review use-cases.
type ReviewService struct {
	DB *gorm.DB

	locks keyedMutex
}

// Submit stores a review by reviewer and recomputes the reviewee's rating
// from every review they have received.
func (s *ReviewService) Submit(ctx context.Context, reviewer Actor, in ReviewInput) (*domain.Review, error) {
	ctx, span := otel.Tracer("services/ReviewService").Start(ctx, "Submit", trace.WithAttributes(
		attribute.String("user.id", reviewer.ID),
		attribute.String("transaction.id", in.TransactionID),
	))
	defer span.End()

	in.Comment = strings.TrimSpace(in.Comment)
	v := &ValidationError{}
	if in.TransactionID == "" {
		v.Add("transaction_id", "transaction_id is required")
	}
	if in.Rating < 1 || in.Rating > 5 {
		v.Add("rating", "rating must be between 1 and 5")
	}
	checkRequiredText(v, "comment", in.Comment, maxCommentRunes)
	checkSubRating(v, "communication", in.Communication)
	checkSubRating(v, "item_condition", in.ItemCondition)
	checkSubRating(v, "punctuality", in.Punctuality)
	if err := v.Err(); err != nil {
		return nil, err
	}

	t, err := repo.GetTransaction(ctx, s.DB, in.TransactionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if !t.Involves(reviewer.ID) {
		return nil, ErrNotParticipant
	}
	if t.Status != domain.TxCompleted {
		return nil, ErrTransactionNotCompleted
	}
	revieweeID := t.Counterparty(reviewer.ID)

	unlock := s.locks.Lock(revieweeID)
	defer unlock()

	r := &domain.Review{
		TransactionID: t.ID,
		ReviewerID:    reviewer.ID,
		RevieweeID:    revieweeID,
		Rating:        in.Rating,
		Comment:       in.Comment,
		Communication: in.Communication,
		ItemCondition: in.ItemCondition,
		Punctuality:   in.Punctuality,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateReview(ctx, tx, r); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrAlreadyReviewed
			}
			return err
		}
		agg, err := repo.RatingAggregate(ctx, tx, revieweeID)
		if err != nil {
			return err
		}
		// A deleted reviewee has no row to update; the review still stands.
		if err := repo.SetUserRating(ctx, tx, revieweeID, agg); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	reviewsSubmitted.Inc()
	return r, nil
}

// Get returns review id. Reviews are public.
func (s *ReviewService) Get(ctx context.Context, id string) (*domain.Review, error) {
	r, err := repo.GetReview(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return r, nil
}

// ListFor returns reviews received by userID, newest first, with reviewer
// summaries attached.
func (s *ReviewService) ListFor(ctx context.Context, userID string, page, pageSize int) (Page[domain.Review], error) {
	page, pageSize, offset := normalizePage(page, pageSize)
	out := Page[domain.Review]{Items: []domain.Review{}, Page: page, PageSize: pageSize}

	total, err := repo.CountReviewsFor(ctx, s.DB, userID)
	if err != nil {
		return out, err
	}
	out.Total = total
	if total == 0 {
		return out, nil
	}
	items, err := repo.ListReviewsForPage(ctx, s.DB, userID, offset, pageSize)
	if err != nil {
		return out, err
	}
	ids := make([]string, 0, len(items))
	for _, r := range items {
		ids = append(ids, r.ReviewerID)
	}
	sums, err := repo.GetUserSummaries(ctx, s.DB, ids)
	if err != nil {
		return out, err
	}
	for i := range items {
		if sum, ok := sums[items[i].ReviewerID]; ok {
			items[i].Reviewer = &sum
		}
	}
	out.Items = items
	return out, nil
}

// Stats returns the rating histogram and sub-rating averages of userID.
// Users without reviews get a zeroed result, not an error.
func (s *ReviewService) Stats(ctx context.Context, userID string) (domain.ReviewStats, error) {
	return repo.ReviewStats(ctx, s.DB, userID)
}

func checkSubRating(v *ValidationError, field string, r *int) {
	if r != nil && (*r < 1 || *r > 5) {
		v.Add(field, field+" must be between 1 and 5")
	}
}
