package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emissions/internal/ratelimit/models"
	"emissions/pkg/platform/sentinel"
)

func TestInMemoryExpiresEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	s := NewInMemory()
	s.now = func() time.Time { return now }

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = s.Update(ctx, "k", 10*time.Minute, func(l *models.Lockout) {
		l.FailureCount = 2
		l.WindowStart = now
		l.LockAt(now, time.Minute)
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, got.FailureCount)

	// Returned records are copies.
	*got.LockedUntil = now.Add(time.Hour)
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), *again.LockedUntil)

	now = now.Add(10 * time.Minute)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryClear(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	_, err := s.Update(ctx, "k", time.Minute, func(l *models.Lockout) { l.FailureCount = 1 })
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx, "k"))

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryUpdateSerializesWriters(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "k", time.Minute, func(l *models.Lockout) { l.FailureCount++ })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, writers, got.FailureCount)
	assert.Equal(t, "k", got.Key)
}
