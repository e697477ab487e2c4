package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/services"
)

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	e := newEnv(t)
	s := e.signup(t, "student@campus.edu")
	for _, path := range []string{"/api/admin/stats", "/api/admin/users", "/api/admin/items", "/api/admin/reports"} {
		expectError(t, e.do(http.MethodGet, path, s.Token, nil), http.StatusForbidden, "forbidden")
		expectStatus(t, e.do(http.MethodGet, path, "", nil), http.StatusUnauthorized)
	}
}

func TestAdminSuspendBlocksAccess(t *testing.T) {
	e := newEnv(t)
	adm := e.admin(t)
	s := e.signup(t, "student@campus.edu")

	w := e.do(http.MethodPut, "/api/admin/users/"+s.ID+"/suspend", adm.Token, map[string]any{"suspended": true})
	expectStatus(t, w, http.StatusOK)
	expectError(t, e.do(http.MethodGet, "/api/auth/me", s.Token, nil), http.StatusForbidden, "forbidden")

	w = e.do(http.MethodPut, "/api/admin/users/"+s.ID+"/suspend", adm.Token, map[string]any{"suspended": false})
	expectStatus(t, w, http.StatusOK)
	expectStatus(t, e.do(http.MethodGet, "/api/auth/me", s.Token, nil), http.StatusOK)

	w = e.do(http.MethodPut, "/api/admin/users/"+s.ID+"/suspend", adm.Token, map[string]any{})
	expectError(t, w, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestAdminVerifyAndListUsers(t *testing.T) {
	e := newEnv(t)
	adm := e.admin(t)
	s := e.signup(t, "student@campus.edu")

	w := e.do(http.MethodPut, "/api/admin/users/"+s.ID+"/verify", adm.Token, map[string]any{"verified": true})
	expectStatus(t, w, http.StatusOK)
	var u struct {
		IsVerified bool `json:"is_verified"`
	}
	decodeInto(t, w, &u)
	if !u.IsVerified {
		t.Fatal("verify flag not set")
	}

	var page pageBody[map[string]any]
	decodeInto(t, e.do(http.MethodGet, "/api/admin/users?role=student", adm.Token, nil), &page)
	if page.Pagination.Total != 1 {
		t.Fatalf("students=%d", page.Pagination.Total)
	}
	expectError(t, e.do(http.MethodGet, "/api/admin/users?suspended=sometimes", adm.Token, nil), http.StatusBadRequest, ErrCodeValidation)
}

func TestAdminDeleteUser_Cascades(t *testing.T) {
	e := newEnv(t)
	adm := e.admin(t)
	s := e.signup(t, "leaver@campus.edu")
	e.createItem(t, s, nil)
	e.createItem(t, s, nil)

	w := e.do(http.MethodDelete, "/api/admin/users/"+s.ID, adm.Token, nil)
	expectStatus(t, w, http.StatusOK)
	var res services.CascadeResult
	decodeInto(t, w, &res)
	if !res.UserDeleted || len(res.Deleted) != 2 || len(res.Failed) != 0 {
		t.Fatalf("result=%+v", res)
	}

	var page pageBody[itemBody]
	decodeInto(t, e.do(http.MethodGet, "/api/admin/items?seller_id="+s.ID, adm.Token, nil), &page)
	if page.Pagination.Total != 0 {
		t.Fatalf("orphaned listings=%d", page.Pagination.Total)
	}

	expectError(t, e.do(http.MethodDelete, "/api/admin/users/"+s.ID, adm.Token, nil), http.StatusNotFound, ErrCodeNotFound)
	expectError(t, e.do(http.MethodDelete, "/api/admin/users/"+adm.ID, adm.Token, nil), http.StatusBadRequest, ErrCodeValidation)
}

// failOnce fails the first delete of each listing it sees.
type failOnce struct {
	repoListings
	seen map[string]bool
}

func (f *failOnce) DeleteListing(ctx context.Context, db *gorm.DB, id string) error {
	if !f.seen[id] {
		f.seen[id] = true
		return errors.New("storage hiccup")
	}
	return f.repoListings.DeleteListing(ctx, db, id)
}

func TestAdminDeleteUser_PartialFailureIsMultiStatus(t *testing.T) {
	e := newEnvWith(t, func(d *Deps) {
		d.Moderation.(*services.ModerationService).Listings = &failOnce{seen: map[string]bool{}}
	})
	adm := e.admin(t)
	s := e.signup(t, "leaver@campus.edu")
	it := e.createItem(t, s, nil)

	w := e.do(http.MethodDelete, "/api/admin/users/"+s.ID, adm.Token, nil)
	expectStatus(t, w, http.StatusMultiStatus)
	var res services.CascadeResult
	decodeInto(t, w, &res)
	if res.UserDeleted || len(res.Failed) != 1 || res.Failed[0].ListingID != it.ID {
		t.Fatalf("partial=%+v", res)
	}

	w = e.do(http.MethodDelete, "/api/admin/users/"+s.ID, adm.Token, nil)
	expectStatus(t, w, http.StatusOK)
	decodeInto(t, w, &res)
	if !res.UserDeleted {
		t.Fatalf("retry=%+v", res)
	}
}

func TestAdminItemModeration(t *testing.T) {
	e := newEnv(t)
	adm := e.admin(t)
	s := e.signup(t, "seller@campus.edu")
	it := e.createItem(t, s, nil)

	w := e.do(http.MethodPut, "/api/admin/items/"+it.ID+"/availability", adm.Token, map[string]any{"available": false})
	expectStatus(t, w, http.StatusOK)
	var got itemBody
	decodeInto(t, w, &got)
	if got.IsAvailable || got.IsHidden {
		t.Fatalf("availability=%+v", got)
	}

	w = e.do(http.MethodPut, "/api/admin/items/"+it.ID+"/hide", adm.Token, map[string]any{"hidden": true})
	expectStatus(t, w, http.StatusOK)
	var page pageBody[itemBody]
	decodeInto(t, e.do(http.MethodGet, "/api/admin/items", adm.Token, nil), &page)
	if page.Pagination.Total != 1 {
		t.Fatalf("admin list hides moderated items: %+v", page)
	}

	expectStatus(t, e.do(http.MethodDelete, "/api/admin/items/"+it.ID, adm.Token, nil), http.StatusNoContent)
	expectError(t, e.do(http.MethodDelete, "/api/admin/items/"+it.ID, adm.Token, nil), http.StatusNotFound, ErrCodeNotFound)
}

func TestAdminStats(t *testing.T) {
	e := newEnv(t)
	adm := e.admin(t)
	seller := e.signup(t, "seller@campus.edu")
	buyer := e.signup(t, "buyer@campus.edu")
	it := e.createItem(t, seller, nil)
	e.createItem(t, seller, nil)
	tx := e.createTx(t, buyer, it)
	expectStatus(t, e.do(http.MethodPut, "/api/transactions/"+tx.ID+"/complete", buyer.Token, nil), http.StatusOK)

	w := e.do(http.MethodGet, "/api/admin/stats", adm.Token, nil)
	expectStatus(t, w, http.StatusOK)
	var st services.PlatformStats
	decodeInto(t, w, &st)
	if st.Users != 3 || st.ActiveListings != 1 || st.CompletedTransactions != 1 {
		t.Fatalf("stats=%+v", st)
	}
}
