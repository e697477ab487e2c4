package repo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/campus-market/internal/domain"
)

// newTestDB opens a private shared-cache in-memory database and migrates it.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *domain.User {
	t.Helper()
	u := &domain.User{
		Name: "User " + email, Email: email, PasswordHash: "hash",
		Department: "CSE", Semester: 3, RollNumber: "R-" + email, Phone: "555-0100",
	}
	if err := CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func seedListing(t *testing.T, db *gorm.DB, sellerID string, mut func(*domain.Listing)) *domain.Listing {
	t.Helper()
	l := &domain.Listing{
		SellerID: sellerID, Title: "Digital Logic", Description: "Morris Mano, clean copy",
		Type: domain.TypeSale, Category: domain.CategoryTextbook, Department: "CSE",
		Condition: domain.ConditionGood, Price: 300, Images: []string{"/uploads/x.jpg"},
		Location: "Hostel A", IsAvailable: true,
	}
	if mut != nil {
		mut(l)
	}
	if err := CreateListing(context.Background(), db, l); err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	return l
}

func seedTransaction(t *testing.T, db *gorm.DB, l *domain.Listing, buyerID, status string) *domain.Transaction {
	t.Helper()
	tx := &domain.Transaction{
		ListingID: l.ID, ListingTitle: l.Title, SellerID: l.SellerID,
		BuyerID: buyerID, Amount: l.Price, Status: status,
	}
	if status == domain.TxCompleted {
		now := time.Now().UTC()
		tx.CompletedAt = &now
	}
	if err := CreateTransaction(context.Background(), db, tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return tx
}
