package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Listing dispositions.
const (
	TypeSale = "sale"
	TypeRent = "rent"
	TypeFree = "free"
)

// Listing categories.
const (
	CategoryTextbook     = "textbook"
	CategoryLabEquipment = "lab-equipment"
	CategoryStationery   = "stationery"
	CategoryOther        = "other"
)

// Listing conditions.
const (
	ConditionNew     = "new"
	ConditionLikeNew = "like-new"
	ConditionGood    = "good"
	ConditionFair    = "fair"
)

// Image bounds per listing.
const (
	MinListingImages = 1
	MaxListingImages = 5
)

var (
	listingTypes      = []string{TypeSale, TypeRent, TypeFree}
	listingCategories = []string{CategoryTextbook, CategoryLabEquipment, CategoryStationery, CategoryOther}
	listingConditions = []string{ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair}
)

// ValidListingType reports whether t is a known disposition.
func ValidListingType(t string) bool { return slices.Contains(listingTypes, t) }

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool { return slices.Contains(listingCategories, c) }

// ValidCondition reports whether c is a known condition.
func ValidCondition(c string) bool { return slices.Contains(listingConditions, c) }

// Listing is an item posted by a seller.
//
// IsAvailable is the market state: it flips to false when a transaction over
// the listing completes. IsHidden is the moderation visibility flag and is
// independent of availability. SellerID never changes after creation.
//
// Price must be positive for sales, may quote a fee for rentals and is zero
// for donations.
type Listing struct {
	ID          string     `json:"id"                    gorm:"type:char(36);primaryKey"`
	SellerID    string     `json:"seller_id"             gorm:"type:char(36);not null;index:idx_listings_seller"`
	Title       string     `json:"title"                 gorm:"type:varchar(200);not null"`
	Description string     `json:"description"           gorm:"type:text;not null"`
	Type        string     `json:"type"                  gorm:"type:varchar(8);not null;index;check:type IN ('sale','rent','free')"`
	Category    string     `json:"category"              gorm:"type:varchar(32);not null;index"`
	Department  string     `json:"department"            gorm:"type:varchar(64);not null;index"`
	Semester    *int       `json:"semester,omitempty"    gorm:"index"`
	CourseCode  *string    `json:"course_code,omitempty" gorm:"type:varchar(32)"`
	Condition   string     `json:"condition"             gorm:"type:varchar(16);not null"`
	Price       float64    `json:"price"                 gorm:"not null;default:0;check:price >= 0"`
	Images      StringList `json:"images"                gorm:"type:text;not null"`
	Location    string     `json:"location"              gorm:"type:varchar(200);not null"`
	IsAvailable bool       `json:"is_available"          gorm:"not null;index"`
	IsHidden    bool       `json:"is_hidden"             gorm:"not null;default:false"`
	Views       int64      `json:"views"                 gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"created_at"            gorm:"index"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// SearchText is the case-folded title and description that free-text
	// queries match against. SQLite LOWER() only folds ASCII.
	SearchText string `json:"-" gorm:"type:text;not null;default:''"`

	// Seller is loaded for display only; it is never written through.
	Seller *UserSummary `json:"seller,omitempty" gorm:"-"`
}

// TableName returns the database table name for Listing.
func (Listing) TableName() string { return "listings" }

// FoldText case-folds s for free-text matching.
func FoldText(s string) string { return cases.Fold().String(s) }

// NormalizeDepartment canonicalizes a department code. Users and listings
// share it so their departments compare equal.
func NormalizeDepartment(d string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(d))
}

// ListingSearchText builds the SearchText value for a title and description.
func ListingSearchText(title, description string) string {
	return FoldText(title + " " + description)
}

// ListingFilter narrows listing queries. Nil/empty fields do not constrain.
type ListingFilter struct {
	Query       string
	Department  string
	Semester    *int
	Type        string
	Category    string
	Condition   string
	SellerID    string
	IsAvailable *bool

	// IncludeHidden is only set by moderation views.
	IncludeHidden bool
}

// ListingSetStats summarizes the listings matching a filter. It backs list
// validators, so it covers every field a list response can change on.
type ListingSetStats struct {
	Count        int64
	Views        int64
	MaxUpdatedAt *time.Time
}

// StringList is a []string stored as a JSON array in a text column. It
// implements driver.Valuer so it can also be written through column maps.
type StringList []string

// Value encodes the list as JSON; nil is stored as an empty array.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes a JSON array from a text or blob column.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("StringList: unsupported source %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*l = out
	return nil
}
