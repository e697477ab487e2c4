package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/campus-market/internal/domain"
)

func intPtr(i int) *int { return &i }

func TestReview_DuplicateMapsToErrDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	r := &domain.Review{TransactionID: "t1", ReviewerID: "u1", RevieweeID: "u2", Rating: 5, Comment: "great"}
	if err := CreateReview(ctx, db, r); err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	dup := &domain.Review{TransactionID: "t1", ReviewerID: "u1", RevieweeID: "u2", Rating: 1, Comment: "again"}
	if err := CreateReview(ctx, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	// The counterparty may still review the same transaction.
	other := &domain.Review{TransactionID: "t1", ReviewerID: "u2", RevieweeID: "u1", Rating: 4, Comment: "ok"}
	if err := CreateReview(ctx, db, other); err != nil {
		t.Fatalf("counterparty review: %v", err)
	}
}

func TestRatingAggregate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	got, err := RatingAggregate(ctx, db, "u2")
	if err != nil || got.Count != 0 || got.Average != 0 {
		t.Fatalf("empty aggregate=%+v err=%v", got, err)
	}
	for i, rating := range []int{5, 4, 2} {
		r := &domain.Review{TransactionID: string(rune('a' + i)), ReviewerID: "u1", RevieweeID: "u2", Rating: rating, Comment: "c"}
		if err := CreateReview(ctx, db, r); err != nil {
			t.Fatalf("CreateReview: %v", err)
		}
	}
	got, err = RatingAggregate(ctx, db, "u2")
	if err != nil {
		t.Fatalf("RatingAggregate: %v", err)
	}
	if got.Count != 3 || got.Average != 11.0/3.0 {
		t.Fatalf("aggregate=%+v", got)
	}
}

func TestReviewStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	empty, err := ReviewStats(ctx, db, "nobody")
	if err != nil {
		t.Fatalf("ReviewStats empty: %v", err)
	}
	if empty.Count != 0 || len(empty.Histogram) != 5 || empty.Categories.Communication != nil {
		t.Fatalf("unexpected empty stats: %+v", empty)
	}

	seed := []domain.Review{
		{TransactionID: "t1", ReviewerID: "a", RevieweeID: "u", Rating: 5, Comment: "x", Communication: intPtr(5)},
		{TransactionID: "t2", ReviewerID: "a", RevieweeID: "u", Rating: 5, Comment: "x", Communication: intPtr(3), Punctuality: intPtr(4)},
		{TransactionID: "t3", ReviewerID: "a", RevieweeID: "u", Rating: 2, Comment: "x"},
	}
	for i := range seed {
		if err := CreateReview(ctx, db, &seed[i]); err != nil {
			t.Fatalf("CreateReview: %v", err)
		}
	}
	st, err := ReviewStats(ctx, db, "u")
	if err != nil {
		t.Fatalf("ReviewStats: %v", err)
	}
	if st.Count != 3 || st.Histogram[5] != 2 || st.Histogram[2] != 1 || st.Histogram[1] != 0 {
		t.Fatalf("histogram=%v count=%d", st.Histogram, st.Count)
	}
	if st.Average != 4 {
		t.Fatalf("average=%v want 4", st.Average)
	}
	if st.Categories.Communication == nil || *st.Categories.Communication != 4 {
		t.Fatalf("communication=%v want 4", st.Categories.Communication)
	}
	if st.Categories.Punctuality == nil || *st.Categories.Punctuality != 4 {
		t.Fatalf("punctuality=%v want 4", st.Categories.Punctuality)
	}
	if st.Categories.ItemCondition != nil {
		t.Fatalf("item_condition should be nil when never rated")
	}

	page, err := ListReviewsForPage(ctx, db, "u", 0, 2)
	if err != nil || len(page) != 2 {
		t.Fatalf("ListReviewsForPage len=%d err=%v", len(page), err)
	}
	if n, _ := CountReviewsFor(ctx, db, "u"); n != 3 {
		t.Fatalf("CountReviewsFor=%d", n)
	}
}
