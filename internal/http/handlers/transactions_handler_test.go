package handlers

import (
	"net/http"
	"testing"
)

func TestCreateTransaction_SelfPurchase(t *testing.T) {
	e := newEnv(t)
	s := e.signup(t, "seller@campus.edu")
	it := e.createItem(t, s, nil)

	w := e.do(http.MethodPost, "/api/transactions", s.Token, map[string]any{"listing_id": it.ID, "seller_id": s.ID})
	er := expectError(t, w, http.StatusBadRequest, ErrCodeValidation)
	if len(er.Errors) != 1 || er.Errors[0].Field != "seller_id" {
		t.Fatalf("errors=%+v", er.Errors)
	}

	var page pageBody[txBody]
	decodeInto(t, e.do(http.MethodGet, "/api/transactions/my-transactions", s.Token, nil), &page)
	if page.Pagination.Total != 0 {
		t.Fatalf("self-purchase persisted %d rows", page.Pagination.Total)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	e := newEnv(t)
	seller := e.signup(t, "seller@campus.edu")
	buyer := e.signup(t, "buyer@campus.edu")
	stranger := e.signup(t, "stranger@campus.edu")
	it := e.createItem(t, seller, nil)

	tx := e.createTx(t, buyer, it)
	if tx.Status != "pending" || tx.ListingID != it.ID {
		t.Fatalf("created=%+v", tx)
	}

	w := e.do(http.MethodPut, "/api/transactions/"+tx.ID+"/complete", stranger.Token, nil)
	expectError(t, w, http.StatusForbidden, ErrCodeForbidden)
	w = e.do(http.MethodGet, "/api/transactions/"+tx.ID, stranger.Token, nil)
	expectError(t, w, http.StatusForbidden, ErrCodeForbidden)

	w = e.do(http.MethodPut, "/api/transactions/"+tx.ID+"/complete", seller.Token, nil)
	expectStatus(t, w, http.StatusOK)
	decodeInto(t, w, &tx)
	if tx.Status != "completed" {
		t.Fatalf("status=%s", tx.Status)
	}

	// Second completion must not double-apply.
	w = e.do(http.MethodPut, "/api/transactions/"+tx.ID+"/complete", buyer.Token, nil)
	er := expectError(t, w, http.StatusConflict, ErrCodeConflict)
	if er.Message != "transaction is already completed or cancelled" {
		t.Fatalf("message=%q", er.Message)
	}
	w = e.do(http.MethodPut, "/api/transactions/"+tx.ID+"/cancel", buyer.Token, nil)
	expectError(t, w, http.StatusConflict, ErrCodeConflict)

	var item itemBody
	decodeInto(t, e.do(http.MethodGet, "/api/items/"+it.ID, "", nil), &item)
	if item.IsAvailable {
		t.Fatal("listing still available after completion")
	}

	w = e.do(http.MethodPost, "/api/transactions", stranger.Token, map[string]any{"listing_id": it.ID, "seller_id": seller.ID})
	er = expectError(t, w, http.StatusConflict, ErrCodeConflict)
	if er.Message != "item is no longer available" {
		t.Fatalf("message=%q", er.Message)
	}
}

func TestCancelTransaction_KeepsListingAvailable(t *testing.T) {
	e := newEnv(t)
	seller := e.signup(t, "seller@campus.edu")
	buyer := e.signup(t, "buyer@campus.edu")
	it := e.createItem(t, seller, nil)
	tx := e.createTx(t, buyer, it)

	w := e.do(http.MethodPut, "/api/transactions/"+tx.ID+"/cancel", buyer.Token, nil)
	expectStatus(t, w, http.StatusOK)

	var item itemBody
	decodeInto(t, e.do(http.MethodGet, "/api/items/"+it.ID, "", nil), &item)
	if !item.IsAvailable {
		t.Fatal("cancel flipped availability")
	}
}

func TestCreateTransaction_IdempotencyReplay(t *testing.T) {
	e := newEnv(t)
	seller := e.signup(t, "seller@campus.edu")
	buyer := e.signup(t, "buyer@campus.edu")
	it := e.createItem(t, seller, nil)

	first := e.createTx(t, buyer, it, "Idempotency-Key", "tx-key-1")
	again := e.createTx(t, buyer, it, "Idempotency-Key", "tx-key-1")
	if again.ID != first.ID {
		t.Fatalf("replay created a second transaction: %s vs %s", first.ID, again.ID)
	}
	other := e.createTx(t, buyer, it, "Idempotency-Key", "tx-key-2")
	if other.ID == first.ID {
		t.Fatal("distinct keys must create distinct transactions")
	}

	w := e.do(http.MethodPost, "/api/transactions", buyer.Token,
		map[string]any{"listing_id": it.ID, "seller_id": seller.ID}, "Idempotency-Key", "bad key with spaces")
	expectStatus(t, w, http.StatusBadRequest)
}

func TestMyTransactionsAndAdminList(t *testing.T) {
	e := newEnv(t)
	adm := e.admin(t)
	seller := e.signup(t, "seller@campus.edu")
	buyer := e.signup(t, "buyer@campus.edu")
	a := e.createItem(t, seller, nil)
	b := e.createItem(t, buyer, nil)
	e.createTx(t, buyer, a)
	e.createTx(t, seller, b)

	var page pageBody[txBody]
	decodeInto(t, e.do(http.MethodGet, "/api/transactions/my-transactions", buyer.Token, nil), &page)
	if page.Pagination.Total != 2 {
		t.Fatalf("both sides total=%d", page.Pagination.Total)
	}
	decodeInto(t, e.do(http.MethodGet, "/api/transactions/my-transactions?role=buyer", buyer.Token, nil), &page)
	if page.Pagination.Total != 1 || page.Items[0].ListingID != a.ID {
		t.Fatalf("buyer side=%+v", page)
	}

	w := e.do(http.MethodGet, "/api/transactions/my-transactions?status=weird", buyer.Token, nil)
	expectError(t, w, http.StatusBadRequest, ErrCodeValidation)

	w = e.do(http.MethodGet, "/api/transactions", buyer.Token, nil)
	expectError(t, w, http.StatusForbidden, "forbidden")

	w = e.do(http.MethodGet, "/api/transactions?listing_id="+b.ID, adm.Token, nil)
	expectStatus(t, w, http.StatusOK)
	decodeInto(t, w, &page)
	if page.Pagination.Total != 1 || page.Items[0].ListingID != b.ID {
		t.Fatalf("admin filtered=%+v", page)
	}
}
