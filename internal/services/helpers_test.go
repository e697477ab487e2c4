package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/repo"
)

// newTestDB opens a private in-memory database on a single connection so
// concurrent callers are serialized the way a real SQLite file would be.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repo.AutoMigrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func bg() context.Context { return context.Background() }

func seedUser(t *testing.T, db *gorm.DB, email string) Actor {
	t.Helper()
	u := &domain.User{
		Name: "User " + email, Email: email, PasswordHash: "x",
		Department: "CSE", Semester: 3, RollNumber: "R-" + email, Phone: "555-0100",
	}
	require.NoError(t, repo.CreateUser(bg(), db, u))
	return Actor{ID: u.ID, Role: u.Role}
}

func seedAdmin(t *testing.T, db *gorm.DB) Actor {
	t.Helper()
	u := &domain.User{
		Name: "Admin", Email: "admin@campus.edu", PasswordHash: "x", Role: domain.RoleAdmin,
		Department: "ADMIN", Semester: 1, RollNumber: "admin", Phone: "-",
	}
	require.NoError(t, repo.CreateUser(bg(), db, u))
	return Actor{ID: u.ID, Role: domain.RoleAdmin}
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func ptr[T any](v T) *T { return &v }

func saleInput() ListingInput {
	return ListingInput{
		Title:       "Engineering Mathematics",
		Description: "B.S. Grewal, 42nd edition, a few highlights",
		Type:        domain.TypeSale,
		Category:    domain.CategoryTextbook,
		Department:  "cse",
		Semester:    ptr(2),
		Condition:   domain.ConditionGood,
		Price:       ptr(450.0),
		Images:      []string{"/uploads/a.jpg"},
		Location:    "Library gate",
	}
}

func seedListing(t *testing.T, db *gorm.DB, seller Actor, mut func(*ListingInput)) *domain.Listing {
	t.Helper()
	in := saleInput()
	if mut != nil {
		mut(&in)
	}
	l, err := NewListingService(db).Create(bg(), seller.ID, in)
	require.NoError(t, err)
	return l
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	out := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		out = append(out, f.Field)
	}
	return out
}
