// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return ErrNotFound.
//   - A second account with the same email yields ErrDuplicate.
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
)

// CreateUser inserts u, assigning a UUID and UTC timestamps when unset.
// The email is stored lower-cased.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = domain.RoleStudent
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetUser fetches a user by ID.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a user by (case-insensitive) email.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserFields applies a column → value patch to user id and bumps
// updated_at. It returns ErrNotFound when no row matched.
func UpdateUserFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserRating overwrites the rating aggregate of user id.
func SetUserRating(ctx context.Context, db *gorm.DB, id string, r domain.Rating) error {
	return UpdateUserFields(ctx, db, id, map[string]any{
		"rating_average": r.Average,
		"rating_count":   r.Count,
	})
}

// DeleteUser hard-deletes user id. Deleting a missing user is not an error,
// so a retried cascade converges.
func DeleteUser(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.User{}).Error
}

// UserFilter narrows admin user listings.
type UserFilter struct {
	Query     string // matches name or email
	Role      string
	Suspended *bool
}

func applyUserFilter(q *gorm.DB, f UserFilter) *gorm.DB {
	if s := strings.ToLower(strings.TrimSpace(f.Query)); s != "" {
		like := "%" + escapeLike(s) + "%"
		q = q.Where("(LOWER(name) LIKE ? ESCAPE '\\' OR email LIKE ? ESCAPE '\\')", like, like)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Suspended != nil {
		q = q.Where("is_suspended = ?", *f.Suspended)
	}
	return q
}

// CountUsers returns the number of users matching f.
func CountUsers(ctx context.Context, db *gorm.DB, f UserFilter) (int64, error) {
	var total int64
	err := applyUserFilter(db.WithContext(ctx).Model(&domain.User{}), f).Count(&total).Error
	return total, err
}

// ListUsersPage returns a page of users matching f, newest first.
func ListUsersPage(ctx context.Context, db *gorm.DB, f UserFilter, offset, limit int) ([]domain.User, error) {
	var out []domain.User
	err := applyUserFilter(db.WithContext(ctx), f).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetUserSummaries loads the public profiles of ids, keyed by id. Missing
// ids are simply absent from the result.
func GetUserSummaries(ctx context.Context, db *gorm.DB, ids []string) (map[string]domain.UserSummary, error) {
	out := make(map[string]domain.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []domain.User
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.Summary()
	}
	return out, nil
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
