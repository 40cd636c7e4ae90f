package lifecycle

import (
	"context"
	"errors"

	"github.com/prepdeck/prepdeck/internal/authapi"
	"github.com/prepdeck/prepdeck/internal/sessionstore"
)

// Startup decides the validity of a persisted session. It runs exactly once
// per process lifetime; later calls are no-ops.
//
// With no persisted token the process starts unauthenticated. A session
// whose last activity is older than the idle threshold is cleared without
// contacting the backend. A fresh session hydrates the identity context
// synchronously from the persisted user record so consumers render
// immediately, then revalidates against the profile endpoint in the
// background under the session generation current at hydration time.
func (m *Manager) Startup(ctx context.Context) {
	m.startupOnce.Do(func() { m.startup(ctx) })
}

func (m *Manager) startup(ctx context.Context) {
	rec, err := m.store.LoadSession()
	if err != nil {
		if !errors.Is(err, sessionstore.ErrNoSession) {
			m.logger.Error().Err(err).Msg("failed to load persisted session")
		}
		m.identity.Resolve()
		return
	}

	now := m.clock.Now()
	if rec.IsStale(now, m.timer.Threshold()) {
		m.logger.Info().
			Time("lastActive", rec.LastActive).
			Dur("threshold", m.timer.Threshold()).
			Msg("persisted session is stale, forcing logout")
		m.teardown()
		m.identity.Resolve()
		return
	}

	m.mu.Lock()
	m.token = rec.Token
	m.mu.Unlock()

	gen := m.identity.BeginSession(rec.User)
	m.timer.Start(m.expire)

	m.logger.Debug().Str("userID", rec.User.ID).Msg("session hydrated from store")

	go m.revalidate(ctx, gen, rec.Token)
}

// revalidate refreshes the optimistically hydrated user record from the
// backend. A response arriving after the session generation moved (logout,
// new login) is discarded rather than reviving dead state.
//
// A 401 keeps the optimistic session and surfaces a context-level error
// instead of forcing logout; the next write against the backend will fail
// loudly enough. Other failures are logged and otherwise ignored.
func (m *Manager) revalidate(ctx context.Context, gen uint64, token string) {
	resp, err := m.api.Profile(ctx, token)
	if err != nil {
		if authapi.IsUnauthorized(err) {
			m.logger.Warn().Err(err).Msg("profile revalidation unauthorized, keeping optimistic session")
			m.identity.SetErr(gen, "session could not be revalidated")
			return
		}
		m.logger.Error().Err(err).Msg("profile revalidation failed")
		return
	}
	if resp.User == nil {
		return
	}

	if m.identity.Apply(gen, resp.User) {
		if err := m.store.SaveUser(resp.User); err != nil && !errors.Is(err, sessionstore.ErrNoSession) {
			m.logger.Error().Err(err).Msg("failed to persist revalidated user")
		}
	}
}
