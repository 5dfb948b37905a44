package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emissions/internal/emission"
	"emissions/pkg/platform/sentinel"
)

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	_, err := s.Latest(ctx)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.Save(ctx, emission.Snapshot{Version: 1, Defaults: emission.Defaults{OpacityMax: 50}}))

	t.Run("version must follow latest", func(t *testing.T) {
		assert.ErrorIs(t, s.Save(ctx, emission.Snapshot{Version: 1}), sentinel.ErrConflict)
		assert.ErrorIs(t, s.Save(ctx, emission.Snapshot{Version: 3}), sentinel.ErrConflict)
	})

	t.Run("latest is a private copy", func(t *testing.T) {
		got, err := s.Latest(ctx)
		require.NoError(t, err)
		got.Defaults.OpacityMax = 99

		again, err := s.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, 50.0, again.Defaults.OpacityMax)
	})

	require.NoError(t, s.Save(ctx, emission.Snapshot{Version: 2}))
	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}
