// Package domain defines the core persistence models for the marketplace.
// These types are mapped with GORM and shared across the repository,
// service and HTTP layers.
package domain

import "time"

// User roles.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Rating is the aggregate of all reviews received by a user. It is written
// only by the review aggregator and always recomputed from the review table.
type Rating struct {
	Average float64 `json:"average" gorm:"not null;default:0"`
	Count   int     `json:"count"   gorm:"not null;default:0"`
}

// User is a marketplace identity.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Email: unique, stored lower-cased.
//   - PasswordHash: bcrypt hash; never serialized.
//   - Role: "student" or "admin" (enforced by DB constraint).
//   - Semester: academic semester (1..12).
//   - Rating: aggregate rating, columns rating_average / rating_count.
//   - IsVerified / IsSuspended: moderation flags.
type User struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	Name         string    `json:"name"          gorm:"type:varchar(120);not null"`
	Email        string    `json:"email"         gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"             gorm:"type:varchar(255);not null"`
	Role         string    `json:"role"          gorm:"type:varchar(16);not null;default:'student';check:role IN ('student','admin')"`
	Department   string    `json:"department"    gorm:"type:varchar(64);not null;index"`
	Semester     int       `json:"semester"      gorm:"not null"`
	RollNumber   string    `json:"roll_number"   gorm:"type:varchar(64);not null"`
	Phone        string    `json:"phone"         gorm:"type:varchar(32);not null"`
	Hostel       *string   `json:"hostel,omitempty"`
	Avatar       *string   `json:"avatar,omitempty"`
	Rating       Rating    `json:"rating"        gorm:"embedded;embeddedPrefix:rating_"`
	IsVerified   bool      `json:"is_verified"   gorm:"not null;default:false"`
	IsSuspended  bool      `json:"is_suspended"  gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"    gorm:"index"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Summary returns the public, denormalized view of a user shown next to
// listings, messages and reviews.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Name:       u.Name,
		Department: u.Department,
		Avatar:     u.Avatar,
		Rating:     u.Rating,
		IsVerified: u.IsVerified,
	}
}

// UserSummary is the public profile of a user.
type UserSummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Department string  `json:"department"`
	Avatar     *string `json:"avatar,omitempty"`
	Rating     Rating  `json:"rating"`
	IsVerified bool    `json:"is_verified"`
}
