package lifecycle

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepdeck/prepdeck/internal/authapi"
	"github.com/prepdeck/prepdeck/internal/models"
	"github.com/prepdeck/prepdeck/internal/sessionstore"
)

func adminUser() *models.User {
	return &models.User{ID: "a-1", Email: "boss@prepdeck.app", Role: models.RoleAdmin}
}

func TestManager_Startup(t *testing.T) {
	t.Run("no persisted token starts unauthenticated", func(t *testing.T) {
		api := &fakeAPI{}
		f := newFixture(t, api)

		f.manager.Startup(context.Background())

		st := f.identity.Snapshot()
		assert.False(t, st.Authenticated)
		assert.False(t, st.Loading)
		assert.Equal(t, 0, api.calls(&api.profileCalls))
	})

	t.Run("stale session forces logout without any backend call", func(t *testing.T) {
		api := &fakeAPI{}
		f := newFixture(t, api)

		// lastActive 40 minutes ago against a 30 minute threshold.
		stale := f.clock.Now().Add(-40 * time.Minute)
		require.NoError(t, f.store.SaveSession("t1", adminUser(), stale))

		f.manager.Startup(context.Background())

		assert.False(t, f.identity.Snapshot().Authenticated)
		assert.Equal(t, 0, api.calls(&api.profileCalls))

		_, err := f.store.LoadSession()
		assert.ErrorIs(t, err, sessionstore.ErrNoSession)
	})

	t.Run("fresh session hydrates synchronously before revalidation resolves", func(t *testing.T) {
		gate := make(chan struct{})
		api := &fakeAPI{
			profileGate: gate,
			profileResp: &authapi.ProfileResponse{User: adminUser()},
		}
		f := newFixture(t, api)

		recent := f.clock.Now().Add(-5 * time.Minute)
		require.NoError(t, f.store.SaveSession("t1", adminUser(), recent))

		f.manager.Startup(context.Background())

		// The profile request is still in flight and the context is
		// already authenticated from the persisted record.
		st := f.identity.Snapshot()
		assert.True(t, st.Authenticated)
		assert.Equal(t, models.RoleAdmin, st.User.Role)

		close(gate)
		require.Eventually(t, func() bool {
			return api.calls(&api.profileCalls) == 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("revalidation success overwrites the hydrated record", func(t *testing.T) {
		refreshed := adminUser()
		refreshed.Name = "Refreshed Name"
		api := &fakeAPI{profileResp: &authapi.ProfileResponse{User: refreshed}}
		f := newFixture(t, api)

		require.NoError(t, f.store.SaveSession("t1", adminUser(), f.clock.Now()))

		f.manager.Startup(context.Background())

		require.Eventually(t, func() bool {
			return f.identity.Snapshot().User.Name == "Refreshed Name"
		}, time.Second, 10*time.Millisecond)

		rec, err := f.store.LoadSession()
		require.NoError(t, err)
		assert.Equal(t, "Refreshed Name", rec.User.Name)
	})

	t.Run("revalidation landing after logout is discarded", func(t *testing.T) {
		gate := make(chan struct{})
		api := &fakeAPI{
			profileGate: gate,
			profileResp: &authapi.ProfileResponse{User: adminUser()},
		}
		f := newFixture(t, api)

		require.NoError(t, f.store.SaveSession("t1", adminUser(), f.clock.Now()))

		f.manager.Startup(context.Background())
		require.True(t, f.identity.Snapshot().Authenticated)

		// Logout wins over the in-flight fetch.
		f.manager.Logout()
		close(gate)

		require.Eventually(t, func() bool {
			return api.calls(&api.profileCalls) == 1
		}, time.Second, 10*time.Millisecond)

		// The late response must not revive the session.
		assert.False(t, f.identity.Snapshot().Authenticated)
		assert.Nil(t, f.identity.Snapshot().User)
		_, err := f.store.LoadSession()
		assert.ErrorIs(t, err, sessionstore.ErrNoSession)
	})

	t.Run("401 revalidation keeps the optimistic session and surfaces an error", func(t *testing.T) {
		api := &fakeAPI{
			profileErr: &authapi.APIError{StatusCode: http.StatusUnauthorized, Message: "token expired"},
		}
		f := newFixture(t, api)

		require.NoError(t, f.store.SaveSession("t1", adminUser(), f.clock.Now()))

		f.manager.Startup(context.Background())

		require.Eventually(t, func() bool {
			return f.identity.Snapshot().Err != ""
		}, time.Second, 10*time.Millisecond)

		st := f.identity.Snapshot()
		assert.True(t, st.Authenticated, "optimistic session survives a 401")
		assert.NotNil(t, st.User)
	})

	t.Run("runs exactly once", func(t *testing.T) {
		api := &fakeAPI{profileResp: &authapi.ProfileResponse{User: adminUser()}}
		f := newFixture(t, api)

		require.NoError(t, f.store.SaveSession("t1", adminUser(), f.clock.Now()))

		f.manager.Startup(context.Background())
		f.manager.Startup(context.Background())
		f.manager.Startup(context.Background())

		require.Eventually(t, func() bool {
			return api.calls(&api.profileCalls) >= 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, 1, api.calls(&api.profileCalls))
	})

	t.Run("admin five minutes idle stays authenticated", func(t *testing.T) {
		api := &fakeAPI{profileResp: &authapi.ProfileResponse{User: adminUser()}}
		f := newFixture(t, api)

		require.NoError(t, f.store.SaveSession("t1", adminUser(),
			f.clock.Now().Add(-5*time.Minute)))

		f.manager.Startup(context.Background())

		st := f.identity.Snapshot()
		assert.True(t, st.Authenticated)
		assert.Equal(t, models.RoleAdmin, st.User.Role)
	})
}
