package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/repo"
)

// repoListings is the production ListingDeleter.
type repoListings struct{}

func (repoListings) ListingIDsBySeller(ctx context.Context, db *gorm.DB, sellerID string) ([]string, error) {
	return repo.ListingIDsBySeller(ctx, db, sellerID)
}

func (repoListings) DeleteListing(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteListing(ctx, db, id)
}

// flakyListings fails deletes of the listed ids until healed.
type flakyListings struct {
	repoListings
	fail map[string]bool
}

func (f *flakyListings) DeleteListing(ctx context.Context, db *gorm.DB, id string) error {
	if f.fail[id] {
		return errors.New("storage unavailable")
	}
	return f.repoListings.DeleteListing(ctx, db, id)
}

func TestModerationDeleteUser_Cascades(t *testing.T) {
	db := newTestDB(t)
	admin := seedAdmin(t, db)
	seller := seedUser(t, db, "seller@campus.edu")
	buyer := seedUser(t, db, "buyer@campus.edu")
	l1 := seedListing(t, db, seller, nil)
	l2 := seedListing(t, db, seller, nil)
	keep := seedListing(t, db, buyer, nil)
	svc := &ModerationService{DB: db, Listings: repoListings{}}

	res, err := svc.DeleteUser(bg(), admin, seller.ID)
	require.NoError(t, err)
	assert.True(t, res.UserDeleted)
	assert.ElementsMatch(t, []string{l1.ID, l2.ID}, res.Deleted)
	assert.Empty(t, res.Failed)

	_, err = repo.GetUser(bg(), db, seller.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	ids, err := repo.ListingIDsBySeller(bg(), db, seller.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, err = repo.GetListing(bg(), db, keep.ID)
	assert.NoError(t, err)

	_, err = svc.DeleteUser(bg(), admin, seller.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestModerationDeleteUser_PartialFailureThenRetry(t *testing.T) {
	db := newTestDB(t)
	admin := seedAdmin(t, db)
	seller := seedUser(t, db, "seller@campus.edu")
	l1 := seedListing(t, db, seller, nil)
	l2 := seedListing(t, db, seller, nil)
	l3 := seedListing(t, db, seller, nil)
	deleter := &flakyListings{fail: map[string]bool{l2.ID: true}}
	svc := &ModerationService{DB: db, Listings: deleter}

	res, err := svc.DeleteUser(bg(), admin, seller.ID)
	require.NoError(t, err)
	assert.False(t, res.UserDeleted)
	assert.ElementsMatch(t, []string{l1.ID, l3.ID}, res.Deleted)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, l2.ID, res.Failed[0].ListingID)

	_, err = repo.GetUser(bg(), db, seller.ID)
	require.NoError(t, err, "user must survive a partial cascade")

	delete(deleter.fail, l2.ID)
	res, err = svc.DeleteUser(bg(), admin, seller.ID)
	require.NoError(t, err)
	assert.True(t, res.UserDeleted)
	assert.Equal(t, []string{l2.ID}, res.Deleted)
}

func TestModerationDeleteUser_Self(t *testing.T) {
	db := newTestDB(t)
	admin := seedAdmin(t, db)
	svc := &ModerationService{DB: db, Listings: repoListings{}}
	_, err := svc.DeleteUser(bg(), admin, admin.ID)
	assert.Equal(t, []string{"id"}, fieldsOf(t, err))
}

func TestModerationFlags(t *testing.T) {
	db := newTestDB(t)
	admin := seedAdmin(t, db)
	seller := seedUser(t, db, "seller@campus.edu")
	l := seedListing(t, db, seller, nil)
	svc := &ModerationService{DB: db, Listings: repoListings{}}

	u, err := svc.SuspendUser(bg(), admin, seller.ID, true)
	require.NoError(t, err)
	assert.True(t, u.IsSuspended)
	_, err = svc.SuspendUser(bg(), admin, admin.ID, true)
	assert.Error(t, err)
	_, err = svc.VerifyUser(bg(), "ghost", true)
	assert.ErrorIs(t, err, ErrUserNotFound)

	got, err := svc.SetListingHidden(bg(), l.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsHidden)
	assert.True(t, got.IsAvailable, "hiding must not change availability")

	got, err = svc.SetListingAvailability(bg(), l.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)
	assert.True(t, got.IsHidden)

	require.NoError(t, svc.DeleteListing(bg(), l.ID))
	assert.ErrorIs(t, svc.DeleteListing(bg(), l.ID), ErrListingNotFound)
}

func TestModerationListUsers(t *testing.T) {
	db := newTestDB(t)
	seedAdmin(t, db)
	seedUser(t, db, "asha@campus.edu")
	seedUser(t, db, "ravi@campus.edu")
	svc := &ModerationService{DB: db, Listings: repoListings{}}

	page, err := svc.ListUsers(bg(), repo.UserFilter{Role: domain.RoleStudent}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = svc.ListUsers(bg(), repo.UserFilter{Query: "ASHA"}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}

func TestModerationStats(t *testing.T) {
	db := newTestDB(t)
	seedAdmin(t, db)
	seller := seedUser(t, db, "seller@campus.edu")
	buyer := seedUser(t, db, "buyer@campus.edu")
	l := seedListing(t, db, seller, nil)
	seedListing(t, db, seller, nil)
	txs := &TransactionService{DB: db}
	tx, err := txs.Create(bg(), buyer, CreateTransactionInput{ListingID: l.ID, SellerID: seller.ID})
	require.NoError(t, err)
	_, err = txs.Complete(bg(), seller, tx.ID)
	require.NoError(t, err)
	_, err = (&ReportService{DB: db}).File(bg(), buyer, ReportInput{TargetType: domain.ReportTargetUser, TargetID: seller.ID, Reason: "spam"})
	require.NoError(t, err)

	svc := &ModerationService{DB: db, Listings: repoListings{}}
	st, err := svc.Stats(bg())
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.Users)
	assert.EqualValues(t, 1, st.ActiveListings)
	assert.EqualValues(t, 1, st.CompletedTransactions)
	assert.EqualValues(t, 1, st.PendingReports)
	assert.EqualValues(t, 3, st.UsersGrowth.ThisMonth)
	assert.Nil(t, st.UsersGrowth.ChangePercent)

	// Seen from next month, everything moves into last month.
	now := time.Now().UTC()
	next := time.Date(now.Year(), now.Month(), 1, 12, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	svc.Now = func() time.Time { return next }
	st, err = svc.Stats(bg())
	require.NoError(t, err)
	assert.Zero(t, st.UsersGrowth.ThisMonth)
	assert.EqualValues(t, 3, st.UsersGrowth.LastMonth)
	require.NotNil(t, st.UsersGrowth.ChangePercent)
	assert.InDelta(t, -100.0, *st.UsersGrowth.ChangePercent, 1e-9)
}

func TestDelta(t *testing.T) {
	d := delta(15, 10)
	require.NotNil(t, d.ChangePercent)
	assert.InDelta(t, 50.0, *d.ChangePercent, 1e-9)
	assert.Nil(t, delta(3, 0).ChangePercent)
}
