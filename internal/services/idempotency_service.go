package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/repo"
)

// DefaultIdempotencyTTL is how long a key replays when TTL is unset.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyService remembers which resource a keyed create produced.
type IdempotencyService struct {
	DB  *gorm.DB
	TTL time.Duration
}

// Lookup returns the unexpired record for (userID, scope, key) or nil.
func (s *IdempotencyService) Lookup(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// Remember stores the outcome of a first request. A concurrent first
// request that already stored its outcome wins; that is not an error.
func (s *IdempotencyService) Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, scope, key, resourceID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Purge deletes expired records and returns how many were removed.
func (s *IdempotencyService) Purge(ctx context.Context, now time.Time) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, s.DB, now)
}
