package domain

import "time"

// Review is left by one party of a completed transaction about the other.
// At most one review exists per (transaction, reviewer); the unique index
// ux_reviews_tx_reviewer enforces it.
type Review struct {
	ID            string    `json:"id"                       gorm:"type:char(36);primaryKey"`
	TransactionID string    `json:"transaction_id"           gorm:"type:char(36);not null;uniqueIndex:ux_reviews_tx_reviewer,priority:1"`
	ReviewerID    string    `json:"reviewer_id"              gorm:"type:char(36);not null;uniqueIndex:ux_reviews_tx_reviewer,priority:2"`
	RevieweeID    string    `json:"reviewee_id"              gorm:"type:char(36);not null;index"`
	Rating        int       `json:"rating"                   gorm:"not null;check:rating BETWEEN 1 AND 5"`
	Comment       string    `json:"comment"                  gorm:"type:text;not null"`
	Communication *int      `json:"communication,omitempty"  gorm:"check:communication IS NULL OR communication BETWEEN 1 AND 5"`
	ItemCondition *int      `json:"item_condition,omitempty" gorm:"check:item_condition IS NULL OR item_condition BETWEEN 1 AND 5"`
	Punctuality   *int      `json:"punctuality,omitempty"    gorm:"check:punctuality IS NULL OR punctuality BETWEEN 1 AND 5"`
	CreatedAt     time.Time `json:"created_at"               gorm:"index"`

	Reviewer *UserSummary `json:"reviewer,omitempty" gorm:"-"`
}

// TableName returns the database table name for Review.
func (Review) TableName() string { return "reviews" }

// ReviewStats summarizes all reviews received by a user. The zero value is a
// valid result for users with no reviews.
type ReviewStats struct {
	Average    float64         `json:"average"`
	Count      int64           `json:"count"`
	Histogram  map[int]int64   `json:"histogram"`
	Categories CategoryAverage `json:"categories"`
}

// CategoryAverage holds the mean of each optional sub-rating. A nil field
// means no review supplied that sub-rating.
type CategoryAverage struct {
	Communication *float64 `json:"communication"`
	ItemCondition *float64 `json:"item_condition"`
	Punctuality   *float64 `json:"punctuality"`
}

// EmptyReviewStats returns stats with a zeroed 1..5 histogram.
func EmptyReviewStats() ReviewStats {
	return ReviewStats{Histogram: map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
}
