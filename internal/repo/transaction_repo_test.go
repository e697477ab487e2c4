package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/campus-market/internal/domain"
)

func TestTransition_CompareAndSwap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seller := seedUser(t, db, "seller@campus.edu")
	buyer := seedUser(t, db, "buyer@campus.edu")
	l := seedListing(t, db, seller.ID, nil)
	tx := seedTransaction(t, db, l, buyer.ID, domain.TxPending)

	now := time.Now().UTC()
	ok, err := TransitionTransaction(ctx, db, tx.ID, domain.TxPending, domain.TxCompleted, &now)
	if err != nil || !ok {
		t.Fatalf("first transition ok=%v err=%v", ok, err)
	}
	ok, err = TransitionTransaction(ctx, db, tx.ID, domain.TxPending, domain.TxCancelled, nil)
	if err != nil || ok {
		t.Fatalf("second transition must not apply: ok=%v err=%v", ok, err)
	}

	got, err := GetTransaction(ctx, db, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Status != domain.TxCompleted || got.CompletedAt == nil {
		t.Fatalf("unexpected transaction: %+v", got)
	}
}

func TestTransaction_SelfPurchaseRejectedByCheck(t *testing.T) {
	db := newTestDB(t)
	seller := seedUser(t, db, "seller@campus.edu")
	l := seedListing(t, db, seller.ID, nil)

	tx := &domain.Transaction{ListingID: l.ID, ListingTitle: l.Title, SellerID: seller.ID, BuyerID: seller.ID}
	if err := CreateTransaction(context.Background(), db, tx); err == nil {
		t.Fatalf("expected check constraint to reject buyer == seller")
	}
}

func TestTransaction_FilterAndOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seller := seedUser(t, db, "seller@campus.edu")
	buyer := seedUser(t, db, "buyer@campus.edu")
	other := seedUser(t, db, "other@campus.edu")
	l := seedListing(t, db, seller.ID, nil)

	t1 := seedTransaction(t, db, l, buyer.ID, domain.TxPending)
	time.Sleep(2 * time.Millisecond)
	t2 := seedTransaction(t, db, l, buyer.ID, domain.TxCompleted)
	time.Sleep(2 * time.Millisecond)
	seedTransaction(t, db, l, other.ID, domain.TxCancelled)

	mine, err := ListTransactionsPage(ctx, db, domain.TransactionFilter{Participant: buyer.ID}, 0, 10)
	if err != nil || len(mine) != 2 {
		t.Fatalf("participant filter len=%d err=%v", len(mine), err)
	}
	if mine[0].ID != t2.ID || mine[1].ID != t1.ID {
		t.Fatalf("expected newest first")
	}

	n, _ := CountTransactions(ctx, db, domain.TransactionFilter{Participant: seller.ID})
	if n != 3 {
		t.Fatalf("seller participates in %d, want 3", n)
	}
	n, _ = CountTransactions(ctx, db, domain.TransactionFilter{SellerID: seller.ID, Status: domain.TxCompleted})
	if n != 1 {
		t.Fatalf("completed for seller=%d want 1", n)
	}
}

func TestTransaction_SurvivesListingDeletion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seller := seedUser(t, db, "seller@campus.edu")
	buyer := seedUser(t, db, "buyer@campus.edu")
	l := seedListing(t, db, seller.ID, nil)
	tx := seedTransaction(t, db, l, buyer.ID, domain.TxPending)

	if err := DeleteListing(ctx, db, l.ID); err != nil {
		t.Fatalf("DeleteListing: %v", err)
	}
	got, err := GetTransaction(ctx, db, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction after listing delete: %v", err)
	}
	if got.ListingTitle != l.Title {
		t.Fatalf("snapshot title=%q want %q", got.ListingTitle, l.Title)
	}
}
