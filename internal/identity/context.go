// Package identity holds the process-wide authenticated identity state.
// Exactly one Context exists per running application; it is constructed at
// startup and threaded to consumers explicitly rather than living in a
// package-level singleton.
package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/prepdeck/prepdeck/internal/models"
)

// ErrNotEstablished is returned when FromContext is called outside an
// established identity scope. Consumers must fail fast rather than operate
// without identity state.
var ErrNotEstablished = errors.New("identity context not established")

// State is the snapshot consumers observe.
type State struct {
	User          *models.User
	Authenticated bool
	Loading       bool
	Err           string
}

// Context is the reactive holder of the current user record. Reads take a
// snapshot; every mutation notifies subscribers. The session generation
// increments on every login and logout so a response from a superseded
// session can be recognised and discarded.
type Context struct {
	mu    sync.Mutex
	state State
	gen   uint64
	subs  map[int]func(State)
	next  int
}

// NewContext creates an identity context in the loading state; Startup
// resolves it to authenticated or not.
func NewContext() *Context {
	return &Context{
		state: State{Loading: true},
		subs:  make(map[int]func(State)),
	}
}

// Snapshot returns the current state. The user record is cloned so callers
// cannot mutate shared state.
func (c *Context) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.User = st.User.Clone()
	return st
}

// Generation returns the current session generation.
func (c *Context) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Subscribe registers a callback invoked on every state change and returns
// an unsubscribe function.
func (c *Context) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// BeginSession installs a freshly authenticated user, bumps the generation
// and returns it.
func (c *Context) BeginSession(user *models.User) uint64 {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = State{User: user.Clone(), Authenticated: true}
	c.mu.Unlock()

	c.notify()
	return gen
}

// EndSession clears the user and bumps the generation so any in-flight
// fetch from the old session is discarded on arrival. Idempotent.
func (c *Context) EndSession() {
	c.mu.Lock()
	c.gen++
	c.state = State{}
	c.mu.Unlock()

	c.notify()
}

// Resolve marks startup complete without authentication.
func (c *Context) Resolve() {
	c.mu.Lock()
	c.state.Loading = false
	c.mu.Unlock()

	c.notify()
}

// Apply overwrites the user record if gen still matches the current session
// generation. A stale write from a superseded session is dropped and false
// is returned.
func (c *Context) Apply(gen uint64, user *models.User) bool {
	c.mu.Lock()
	if gen != c.gen || !c.state.Authenticated {
		c.mu.Unlock()
		log.Debug().Uint64("gen", gen).Msg("discarding stale identity update")
		return false
	}
	c.state.User = user.Clone()
	c.state.Loading = false
	c.mu.Unlock()

	c.notify()
	return true
}

// SetErr surfaces a non-fatal identity error (e.g. a failed revalidation)
// without tearing the session down. Like Apply, it is dropped when gen no
// longer matches, so an error from a superseded session never surfaces.
func (c *Context) SetErr(gen uint64, msg string) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.state.Err = msg
	c.state.Loading = false
	c.mu.Unlock()

	c.notify()
	return true
}

// IsSuperAdmin reports whether the current user holds the superadmin role.
// False when no user is present.
func (c *Context) IsSuperAdmin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.User.IsSuperAdmin()
}

// notify delivers the current snapshot to subscribers outside the lock.
func (c *Context) notify() {
	c.mu.Lock()
	st := c.state
	st.User = st.User.Clone()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity attaches the identity context to a context.Context.
func WithIdentity(ctx context.Context, ic *Context) context.Context {
	return context.WithValue(ctx, identityContextKey, ic)
}

// FromContext extracts the identity context, failing fast when called
// outside an established scope.
func FromContext(ctx context.Context) (*Context, error) {
	ic, ok := ctx.Value(identityContextKey).(*Context)
	if !ok || ic == nil {
		return nil, ErrNotEstablished
	}
	return ic, nil
}
