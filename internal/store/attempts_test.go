// ABOUTME: Tests for the append-only login attempt ledger
// ABOUTME: Covers sliding-window failure counts and pruning

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordAttempt(t *testing.T, store *SQLiteStore, id, email, ip string, success bool, at time.Time) {
	t.Helper()
	err := store.RecordLoginAttempt(context.Background(), &LoginAttempt{
		ID:        id,
		Email:     email,
		IP:        ip,
		Success:   success,
		CreatedAt: at,
	})
	require.NoError(t, err)
}

func TestStore_CountLoginFailures(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	recordAttempt(t, store, "a-1", "admin@example.com", "192.0.2.1", false, now.Add(-time.Minute))
	recordAttempt(t, store, "a-2", "admin@example.com", "192.0.2.1", false, now.Add(-2*time.Minute))
	recordAttempt(t, store, "a-3", "admin@example.com", "192.0.2.1", true, now.Add(-time.Minute))
	recordAttempt(t, store, "a-4", "other@example.com", "198.51.100.9", false, now.Add(-time.Minute))

	// Successes don't count; other identities don't count
	count, err := store.CountLoginFailures(ctx, "admin@example.com", "192.0.2.1", now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_CountLoginFailures_ScopedToPair(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Same IP, different email
	recordAttempt(t, store, "a-1", "alpha@example.com", "192.0.2.1", false, now.Add(-time.Minute))
	recordAttempt(t, store, "a-2", "beta@example.com", "192.0.2.1", false, now.Add(-time.Minute))

	// Same email, different IP
	recordAttempt(t, store, "a-3", "alpha@example.com", "203.0.113.7", false, now.Add(-time.Minute))

	// Only the exact pair counts
	count, err := store.CountLoginFailures(ctx, "alpha@example.com", "192.0.2.1", now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.CountLoginFailures(ctx, "alpha@example.com", "203.0.113.7", now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_CountLoginFailures_WindowExcludesOldAttempts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		recordAttempt(t, store, fmt.Sprintf("old-%d", i), "admin@example.com", "192.0.2.1",
			false, now.Add(-30*time.Minute))
	}
	recordAttempt(t, store, "fresh", "admin@example.com", "192.0.2.1", false, now.Add(-time.Minute))

	count, err := store.CountLoginFailures(ctx, "admin@example.com", "192.0.2.1", now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_CountLoginFailures_DifferentPairDoesNotCount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	recordAttempt(t, store, "a-1", "alpha@example.com", "192.0.2.1", false, now.Add(-time.Minute))

	count, err := store.CountLoginFailures(ctx, "alpha@example.com", "203.0.113.7", now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_PruneLoginAttempts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	recordAttempt(t, store, "old", "admin@example.com", "192.0.2.1", false, now.Add(-48*time.Hour))
	recordAttempt(t, store, "new", "admin@example.com", "192.0.2.1", false, now.Add(-time.Minute))

	require.NoError(t, store.PruneLoginAttempts(ctx, now.Add(-24*time.Hour)))

	var count int
	err := store.db.QueryRow(`SELECT COUNT(*) FROM login_attempts`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
