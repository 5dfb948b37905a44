package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emissions/internal/user/models"
	id "emissions/pkg/domain"
	"emissions/pkg/platform/sentinel"
)

func newUser(username string, role models.Role) *models.User {
	now := time.Now()
	return &models.User{ID: id.NewUserID(), Username: username, PasswordHash: "hash", Role: role, CreatedAt: now, UpdatedAt: now}
}

func TestInMemory_UsernameIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.Create(ctx, newUser("Budi", models.RoleOperator)))
	assert.ErrorIs(t, s.Create(ctx, newUser("budi", models.RoleAdmin)), sentinel.ErrAlreadyUsed)

	got, err := s.FindByUsername(ctx, "BUDI")
	require.NoError(t, err)
	assert.Equal(t, "Budi", got.Username)
}

func TestInMemory_UpdateDeleteCount(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	admin := newUser("admin", models.RoleAdmin)
	op := newUser("sari", models.RoleOperator)
	require.NoError(t, s.Create(ctx, admin))
	require.NoError(t, s.Create(ctx, op))

	n, err := s.CountByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	op.Role = models.RoleAdmin
	require.NoError(t, s.Update(ctx, op))
	n, err = s.CountByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Delete(ctx, admin.ID))
	_, err = s.FindByUsername(ctx, "admin")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, admin.ID), sentinel.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, admin), sentinel.ErrNotFound)

	users, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "sari", users[0].Username)
}
