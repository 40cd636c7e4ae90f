package sessionstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepdeck/prepdeck/internal/models"
)

func testUser() *models.User {
	return &models.User{
		ID:    "u-1",
		Email: "ada@example.com",
		Name:  "Ada",
		Role:  models.RoleUser,
	}
}

func TestNew(t *testing.T) {
	t.Run("creates directory with correct permissions", func(t *testing.T) {
		tmpDir := t.TempDir()
		dir := filepath.Join(tmpDir, "prepdeck")

		store, err := New(dir)
		require.NoError(t, err)
		assert.NotNil(t, store)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("creates session.json on initialization", func(t *testing.T) {
		tmpDir := t.TempDir()
		_, err := New(tmpDir)
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(tmpDir, "session.json"))
		require.NoError(t, err)
	})
}

func TestStore_SaveSession(t *testing.T) {
	t.Run("persists token and user together", func(t *testing.T) {
		store, err := New(t.TempDir())
		require.NoError(t, err)

		now := time.Now()
		require.NoError(t, store.SaveSession("t1", testUser(), now))

		rec, err := store.LoadSession()
		require.NoError(t, err)
		assert.Equal(t, "t1", rec.Token)
		assert.Equal(t, "ada@example.com", rec.User.Email)
		assert.Equal(t, now.UnixMilli(), rec.SessionStart.UnixMilli())
		assert.Equal(t, now.UnixMilli(), rec.LastActive.UnixMilli())
	})

	t.Run("rejects incomplete session", func(t *testing.T) {
		store, err := New(t.TempDir())
		require.NoError(t, err)

		assert.Error(t, store.SaveSession("", testUser(), time.Now()))
		assert.Error(t, store.SaveSession("t1", nil, time.Now()))
	})

	t.Run("writes atomically via temp file", func(t *testing.T) {
		tmpDir := t.TempDir()
		store, err := New(tmpDir)
		require.NoError(t, err)

		require.NoError(t, store.SaveSession("t1", testUser(), time.Now()))

		_, err = os.Stat(filepath.Join(tmpDir, "session.json.tmp"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestStore_LoadSession(t *testing.T) {
	t.Run("returns ErrNoSession when empty", func(t *testing.T) {
		store, err := New(t.TempDir())
		require.NoError(t, err)

		_, err = store.LoadSession()
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("scrubs half-populated session", func(t *testing.T) {
		tmpDir := t.TempDir()
		store, err := New(tmpDir)
		require.NoError(t, err)

		// Forge a token with no user on disk.
		path := filepath.Join(tmpDir, "session.json")
		data, err := json.Marshal(map[string]any{"version": 1, "token": "orphan"})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0600))

		_, err = store.LoadSession()
		assert.ErrorIs(t, err, ErrNoSession)

		// The orphan token must be gone.
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "orphan")
	})
}

func TestStore_ClearSession(t *testing.T) {
	t.Run("removes all session-scoped keys together", func(t *testing.T) {
		store, err := New(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.SaveSession("t1", testUser(), time.Now()))
		require.NoError(t, store.SetLastPage("/dashboard"))
		require.NoError(t, store.BeginResetFlow("ada@example.com"))
		require.NoError(t, store.SetResetCode("123456"))

		require.NoError(t, store.ClearSession())

		_, err = store.LoadSession()
		assert.ErrorIs(t, err, ErrNoSession)
		assert.Empty(t, store.LastPage())
		_, _, err = store.ResetFlow()
		assert.ErrorIs(t, err, ErrNoResetFlow)
	})

	t.Run("keeps remembered email across logout", func(t *testing.T) {
		store, err := New(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.SaveSession("t1", testUser(), time.Now()))
		require.NoError(t, store.SetRememberedEmail("ada@example.com"))

		require.NoError(t, store.ClearSession())

		email, ok := store.RememberedEmail()
		assert.True(t, ok)
		assert.Equal(t, "ada@example.com", email)
	})

	t.Run("is a no-op on an empty store", func(t *testing.T) {
		store, err := New(t.TempDir())
		require.NoError(t, err)

		assert.NoError(t, store.ClearSession())
	})
}

func TestStore_TouchActivity(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	start := time.Now().Add(-10 * time.Minute)
	require.NoError(t, store.SaveSession("t1", testUser(), start))

	later := time.Now()
	require.NoError(t, store.TouchActivity(later))

	rec, err := store.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, start.UnixMilli(), rec.SessionStart.UnixMilli())
	assert.Equal(t, later.UnixMilli(), rec.LastActive.UnixMilli())
}

func TestStore_ResetFlow(t *testing.T) {
	t.Run("threads email then code between steps", func(t *testing.T) {
		store, err := New(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.BeginResetFlow("ada@example.com"))

		_, _, err = store.ResetFlow()
		assert.ErrorIs(t, err, ErrNoResetFlow)

		require.NoError(t, store.SetResetCode("123456"))

		email, code, err := store.ResetFlow()
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", email)
		assert.Equal(t, "123456", code)
	})

	t.Run("beginning a new flow discards a stale code", func(t *testing.T) {
		store, err := New(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, store.BeginResetFlow("ada@example.com"))
		require.NoError(t, store.SetResetCode("123456"))
		require.NoError(t, store.BeginResetFlow("grace@example.com"))

		_, _, err = store.ResetFlow()
		assert.ErrorIs(t, err, ErrNoResetFlow)
	})
}

func TestStore_RememberedEmail(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok := store.RememberedEmail()
	assert.False(t, ok)

	require.NoError(t, store.SetRememberedEmail("ada@example.com"))
	email, ok := store.RememberedEmail()
	assert.True(t, ok)
	assert.Equal(t, "ada@example.com", email)

	require.NoError(t, store.SetRememberedEmail(""))
	_, ok = store.RememberedEmail()
	assert.False(t, ok)
}
