package domain

import "time"

// Report targets.
const (
	ReportTargetListing = "listing"
	ReportTargetUser    = "user"
)

// Report statuses.
const (
	ReportPending   = "pending"
	ReportReviewed  = "reviewed"
	ReportResolved  = "resolved"
	ReportDismissed = "dismissed"
)

// Report is a user complaint about a listing or another user, triaged by
// admins.
type Report struct {
	ID          string     `json:"id"                    gorm:"type:char(36);primaryKey"`
	ReporterID  string     `json:"reporter_id"           gorm:"type:char(36);not null;index"`
	TargetType  string     `json:"target_type"           gorm:"type:varchar(16);not null;check:target_type IN ('listing','user')"`
	TargetID    string     `json:"target_id"             gorm:"type:char(36);not null;index"`
	Reason      string     `json:"reason"                gorm:"type:varchar(32);not null"`
	Description string     `json:"description"           gorm:"type:text"`
	Status      string     `json:"status"                gorm:"type:varchar(16);not null;default:'pending';index"`
	ResolvedBy  *string    `json:"resolved_by,omitempty" gorm:"type:char(36)"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"            gorm:"index"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Report.
func (Report) TableName() string { return "reports" }
