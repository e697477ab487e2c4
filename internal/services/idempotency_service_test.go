package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyService(t *testing.T) {
	db := newTestDB(t)
	svc := &IdempotencyService{DB: db, TTL: time.Minute}
	now := time.Now().UTC()

	rec, err := svc.Lookup(bg(), "u1", "POST /transactions", "k1", now)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, svc.Remember(bg(), "u1", "POST /transactions", "k1", "tx-1", 201))
	require.NoError(t, svc.Remember(bg(), "u1", "POST /transactions", "k1", "tx-2", 201))

	rec, err = svc.Lookup(bg(), "u1", "POST /transactions", "k1", now)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "tx-1", rec.ResourceID)

	// Keys are per user and per scope.
	rec, err = svc.Lookup(bg(), "u2", "POST /transactions", "k1", now)
	require.NoError(t, err)
	assert.Nil(t, rec)
	rec, err = svc.Lookup(bg(), "u1", "POST /reviews", "k1", now)
	require.NoError(t, err)
	assert.Nil(t, rec)

	later := now.Add(2 * time.Minute)
	rec, err = svc.Lookup(bg(), "u1", "POST /transactions", "k1", later)
	require.NoError(t, err)
	assert.Nil(t, rec)
	n, err := svc.Purge(bg(), later)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
