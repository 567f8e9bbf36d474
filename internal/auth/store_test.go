package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filerelay/internal/common"
)

func TestOpen_SeedsAdminAndUsers(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "users.json"), 1, []int64{30, 20}, nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 20, 30}, s.List())
	assert.True(t, s.IsAllowed(1))
	assert.True(t, s.IsAdmin(1))
	assert.False(t, s.IsAdmin(20))
	assert.False(t, s.IsAllowed(99))
	assert.ErrorIs(t, s.Authorize(99), common.ErrUnauthorized)
	assert.NoError(t, s.Authorize(20))
}

func TestStore_AddRemovePersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	s, err := Open(path, 1, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Add(5))
	require.NoError(t, s.Add(5))
	require.NoError(t, s.Add(7))
	require.NoError(t, s.Remove(7))
	require.NoError(t, s.Remove(7))

	reopened, err := Open(path, 1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 5}, reopened.List())
}

func TestStore_AdminCannotBeRemoved(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "users.json"), 1, nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Remove(1), ErrAdminImmutable)
	assert.True(t, s.IsAllowed(1))
}

func TestOpen_CorruptFileFallsBackToSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("[[["), 0o600))

	s, err := Open(path, 1, []int64{2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, s.List())

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestOpen_NoAdmin(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "users.json"), 0, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, s.List())
	assert.False(t, s.IsAdmin(0))
	assert.False(t, s.IsAllowed(0))
}
