package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/campus-market/internal/domain"
)

func TestUser_CreateNormalizesAndRejectsDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &domain.User{Name: "A", Email: "  Mixed@Campus.EDU ", PasswordHash: "h", Department: "CSE", Semester: 1, RollNumber: "1", Phone: "1"}
	if err := CreateUser(ctx, db, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Email != "mixed@campus.edu" || u.Role != domain.RoleStudent {
		t.Fatalf("unexpected normalized user: %+v", u)
	}

	dup := &domain.User{Name: "B", Email: "mixed@campus.edu", PasswordHash: "h", Department: "CSE", Semester: 1, RollNumber: "2", Phone: "2"}
	if err := CreateUser(ctx, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	got, err := GetUserByEmail(ctx, db, "MIXED@campus.edu")
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetUserByEmail got=%v err=%v", got, err)
	}
}

func TestUser_UpdateRatingDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "a@campus.edu")

	if err := UpdateUserFields(ctx, db, u.ID, map[string]any{"is_suspended": true}); err != nil {
		t.Fatalf("UpdateUserFields: %v", err)
	}
	if err := UpdateUserFields(ctx, db, "nope", map[string]any{"is_suspended": true}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := SetUserRating(ctx, db, u.ID, domain.Rating{Average: 4.5, Count: 2}); err != nil {
		t.Fatalf("SetUserRating: %v", err)
	}
	got, _ := GetUser(ctx, db, u.ID)
	if !got.IsSuspended || got.Rating.Average != 4.5 || got.Rating.Count != 2 {
		t.Fatalf("unexpected user: %+v", got)
	}

	if err := DeleteUser(ctx, db, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	// Deleting again converges instead of failing.
	if err := DeleteUser(ctx, db, u.ID); err != nil {
		t.Fatalf("DeleteUser twice: %v", err)
	}
	if _, err := GetUser(ctx, db, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
}

func TestUser_ListFilterAndSummaries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := seedUser(t, db, "alice@campus.edu")
	b := seedUser(t, db, "bob@campus.edu")
	_ = UpdateUserFields(ctx, db, b.ID, map[string]any{"is_suspended": true})

	susp := true
	n, err := CountUsers(ctx, db, UserFilter{Suspended: &susp})
	if err != nil || n != 1 {
		t.Fatalf("CountUsers suspended=%d err=%v", n, err)
	}
	page, err := ListUsersPage(ctx, db, UserFilter{Query: "alice"}, 0, 10)
	if err != nil || len(page) != 1 || page[0].ID != a.ID {
		t.Fatalf("ListUsersPage=%v err=%v", page, err)
	}

	sums, err := GetUserSummaries(ctx, db, []string{a.ID, b.ID, "ghost"})
	if err != nil {
		t.Fatalf("GetUserSummaries: %v", err)
	}
	if len(sums) != 2 || sums[a.ID].Name != a.Name {
		t.Fatalf("unexpected summaries: %+v", sums)
	}
}
