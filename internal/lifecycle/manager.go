// Package lifecycle is the single source of truth for how a session is
// created, validated, renewed and torn down.
package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prepdeck/prepdeck/internal/authapi"
	"github.com/prepdeck/prepdeck/internal/googleid"
	"github.com/prepdeck/prepdeck/internal/guard"
	"github.com/prepdeck/prepdeck/internal/identity"
	"github.com/prepdeck/prepdeck/internal/idle"
	"github.com/prepdeck/prepdeck/internal/models"
	"github.com/prepdeck/prepdeck/internal/sessionstore"
)

// Code classifies why an operation failed.
type Code string

const (
	CodeInvalidCredential  Code = "invalid_credential"
	CodeAuthRejected       Code = "auth_rejected"
	CodeSessionExpired     Code = "session_expired"
	CodeUnauthorized       Code = "unauthorized"
	CodeValidationFailed   Code = "validation_failed"
	CodeRegistrationFailed Code = "registration_failed"
)

// Result is the uniform outcome of every lifecycle operation. Transport and
// backend failures never escape as errors; callers branch on Success.
type Result struct {
	Success bool
	User    *models.User
	Message string

	// Set on failure
	Code Code
	Err  string
}

func failure(code Code, msg string) Result {
	return Result{Code: code, Err: msg}
}

// API is the surface of the auth backend the manager depends on.
type API interface {
	Login(ctx context.Context, email, password string) (*authapi.AuthResponse, error)
	GoogleLogin(ctx context.Context, credential string) (*authapi.AuthResponse, error)
	GoogleRegister(ctx context.Context, req authapi.GoogleRegisterRequest) (*authapi.AuthResponse, error)
	Register(ctx context.Context, req authapi.RegisterRequest) (*authapi.MessageResponse, error)
	AdminLogin(ctx context.Context, email, password string) (*authapi.AuthResponse, error)
	Profile(ctx context.Context, token string) (*authapi.ProfileResponse, error)
	UpdateProfile(ctx context.Context, token string, patch models.UserPatch) (*authapi.ProfileResponse, error)
	RequestPasswordReset(ctx context.Context, email string) (*authapi.MessageResponse, error)
	VerifyResetCode(ctx context.Context, email, code string) (*authapi.MessageResponse, error)
	ResetPassword(ctx context.Context, email, code, newPassword string) (*authapi.MessageResponse, error)
}

// Navigator receives forced navigations (logout, expiry, aborted reset).
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function into a Navigator.
type NavigatorFunc func(string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Config wires the manager's collaborators.
type Config struct {
	API       API
	Store     *sessionstore.Store
	Identity  *identity.Context
	Timer     *idle.Timer
	Navigator Navigator
	Clock     idle.Clock
	Logger    zerolog.Logger
}

// Manager orchestrates login, registration, logout and session renewal.
type Manager struct {
	api      API
	store    *sessionstore.Store
	identity *identity.Context
	timer    *idle.Timer
	nav      Navigator
	clock    idle.Clock
	logger   zerolog.Logger

	startupOnce sync.Once

	mu    sync.Mutex
	token string
}

// New creates a lifecycle manager. A nil clock falls back to the real one;
// a nil navigator discards navigations.
func New(cfg Config) *Manager {
	clock := cfg.Clock
	if clock == nil {
		clock = idle.RealClock{}
	}
	nav := cfg.Navigator
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &Manager{
		api:      cfg.API,
		store:    cfg.Store,
		identity: cfg.Identity,
		timer:    cfg.Timer,
		nav:      nav,
		clock:    clock,
		logger:   cfg.Logger,
	}
}

// Login authenticates with email and password. On success the session
// record is persisted atomically, the remembered email is stored when the
// user opted in, and the idle timer starts.
func (m *Manager) Login(ctx context.Context, email, password string, rememberMe bool) Result {
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.logger.Debug().Err(err).Str("email", email).Msg("login rejected")
		return failure(CodeAuthRejected, apiMessage(err, "login failed, please try again"))
	}
	if resp.Token == "" || resp.User == nil {
		return failure(CodeAuthRejected, fallback(resp.Message, "login failed, please try again"))
	}

	if rememberMe {
		m.persistRememberedEmail(email)
	} else {
		m.persistRememberedEmail("")
	}

	m.establish(resp.Token, resp.User)

	return Result{Success: true, User: resp.User.Clone()}
}

// LoginWithGoogle exchanges an opaque Google credential for a session. An
// absent credential fails locally with no network call.
func (m *Manager) LoginWithGoogle(ctx context.Context, credential string) Result {
	if credential == "" {
		return failure(CodeInvalidCredential, "missing google credential")
	}

	resp, err := m.api.GoogleLogin(ctx, credential)
	if err != nil {
		m.logger.Debug().Err(err).Msg("google login rejected")
		return failure(CodeInvalidCredential, apiMessage(err, "google sign-in failed"))
	}
	if !resp.Success || resp.Token == "" || resp.User == nil {
		return failure(CodeInvalidCredential, fallback(resp.Message, "google sign-in failed"))
	}

	m.establish(resp.Token, resp.User)

	return Result{Success: true, User: resp.User.Clone()}
}

// RegisterWithGoogle decodes the credential's identity claims locally to
// pre-fill the registration request, then registers via the backend. When
// the exchange yields a token the session is established in the same call.
func (m *Manager) RegisterWithGoogle(ctx context.Context, credential string) Result {
	claims, err := googleid.Decode(credential)
	if err != nil {
		m.logger.Debug().Err(err).Msg("google credential decode failed")
		return failure(CodeRegistrationFailed, "could not read google credential")
	}

	resp, err := m.api.GoogleRegister(ctx, authapi.GoogleRegisterRequest{
		Credential: credential,
		Email:      claims.Email,
		Name:       claims.Name,
		Picture:    claims.Picture,
	})
	if err != nil {
		m.logger.Debug().Err(err).Msg("google registration rejected")
		return failure(CodeRegistrationFailed, apiMessage(err, "google registration failed"))
	}
	if !resp.Success {
		return failure(CodeRegistrationFailed, fallback(resp.Message, "google registration failed"))
	}

	if resp.Token != "" && resp.User != nil {
		m.establish(resp.Token, resp.User)
		return Result{Success: true, User: resp.User.Clone(), Message: resp.Message}
	}

	return Result{Success: true, Message: resp.Message}
}

// Register creates an account. Registration and login are decoupled: a
// successful registration yields only a message, never a token.
func (m *Manager) Register(ctx context.Context, req authapi.RegisterRequest) Result {
	resp, err := m.api.Register(ctx, req)
	if err != nil {
		m.logger.Debug().Err(err).Str("email", req.Email).Msg("registration rejected")
		return failure(CodeAuthRejected, apiMessage(err, "registration failed"))
	}
	return Result{Success: true, Message: resp.Message}
}

// SuperAdminLogin authenticates against the privileged endpoint and
// establishes a session identically to Login.
func (m *Manager) SuperAdminLogin(ctx context.Context, email, password string) Result {
	resp, err := m.api.AdminLogin(ctx, email, password)
	if err != nil {
		m.logger.Debug().Err(err).Str("email", email).Msg("admin login rejected")
		return failure(CodeAuthRejected, apiMessage(err, "login failed, please try again"))
	}
	if resp.Token == "" || resp.User == nil {
		return failure(CodeAuthRejected, fallback(resp.Message, "login failed, please try again"))
	}

	m.establish(resp.Token, resp.User)

	return Result{Success: true, User: resp.User.Clone()}
}

// Logout tears the session down: idle timer stopped, every session-scoped
// key cleared, in-memory user dropped, navigation forced to the login entry
// point. Idempotent; with no session it is a no-op beyond the navigation.
// Logout unconditionally wins against in-flight requests: the generation
// bump makes any late-arriving response land dead.
func (m *Manager) Logout() {
	m.teardown()
	m.nav.Navigate(guard.LoginPath)
}

// UpdateUser merge-patches the in-memory and persisted user record without
// contacting the backend.
func (m *Manager) UpdateUser(patch models.UserPatch) Result {
	st := m.identity.Snapshot()
	if !st.Authenticated || st.User == nil {
		return failure(CodeUnauthorized, "not signed in")
	}

	merged := patch.Apply(st.User)
	m.commitUser(merged)

	return Result{Success: true, User: merged.Clone()}
}

// UpdateProfile round-trips the patch through the backend and commits the
// merged record only on success.
func (m *Manager) UpdateProfile(ctx context.Context, patch models.UserPatch) Result {
	token := m.currentToken()
	st := m.identity.Snapshot()
	if token == "" || !st.Authenticated {
		return failure(CodeUnauthorized, "not signed in")
	}

	resp, err := m.api.UpdateProfile(ctx, token, patch)
	if err != nil {
		m.logger.Debug().Err(err).Msg("profile update rejected")
		if authapi.IsUnauthorized(err) {
			return failure(CodeUnauthorized, apiMessage(err, "session is no longer valid"))
		}
		return failure(CodeAuthRejected, apiMessage(err, "profile update failed"))
	}

	merged := resp.User
	if merged == nil {
		merged = patch.Apply(st.User)
	}
	m.commitUser(merged)

	return Result{Success: true, User: merged.Clone()}
}

// RequestPasswordReset starts the reset flow; on success the email is
// persisted so the verification step can pick it up.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) Result {
	resp, err := m.api.RequestPasswordReset(ctx, email)
	if err != nil {
		m.logger.Debug().Err(err).Str("email", email).Msg("password reset request failed")
		return failure(CodeValidationFailed, apiMessage(err, "could not start password reset"))
	}

	if err := m.store.BeginResetFlow(email); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist reset flow")
	}

	return Result{Success: true, Message: resp.Message}
}

// VerifyResetCode checks the emailed code; on success the code joins the
// pending flow for the completion step.
func (m *Manager) VerifyResetCode(ctx context.Context, email, code string) Result {
	resp, err := m.api.VerifyResetCode(ctx, email, code)
	if err != nil {
		m.logger.Debug().Err(err).Str("email", email).Msg("reset code rejected")
		return failure(CodeValidationFailed, apiMessage(err, "invalid reset code"))
	}

	if err := m.store.SetResetCode(code); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist reset code")
	}

	return Result{Success: true, Message: resp.Message}
}

// ResetPassword completes the flow using the email and code threaded
// through the store. When either is missing the user is sent back to the
// initiation step.
func (m *Manager) ResetPassword(ctx context.Context, newPassword string) Result {
	email, code, err := m.store.ResetFlow()
	if err != nil {
		m.logger.Debug().Err(err).Msg("reset completion without pending flow")
		m.nav.Navigate("/forgot-password")
		return failure(CodeValidationFailed, "password reset was not initiated")
	}

	resp, err := m.api.ResetPassword(ctx, email, code, newPassword)
	if err != nil {
		m.logger.Debug().Err(err).Msg("password reset rejected")
		return failure(CodeValidationFailed, apiMessage(err, "could not reset password"))
	}

	if err := m.store.ClearResetFlow(); err != nil {
		m.logger.Error().Err(err).Msg("failed to clear reset flow")
	}

	return Result{Success: true, Message: resp.Message}
}

// IsSuperAdmin reports whether the current user holds the superadmin role.
func (m *Manager) IsSuperAdmin() bool {
	return m.identity.IsSuperAdmin()
}

// TouchActivity records user activity: the persisted timestamp moves and
// the idle deadline re-arms.
func (m *Manager) TouchActivity() {
	if err := m.store.TouchActivity(m.clock.Now()); err != nil {
		m.logger.Error().Err(err).Msg("failed to record activity")
	}
	m.timer.Reset()
}

// establish atomically installs a fresh session: persisted record, token,
// identity state and idle timer.
func (m *Manager) establish(token string, user *models.User) {
	now := m.clock.Now()
	if err := m.store.SaveSession(token, user, now); err != nil {
		// Fail-soft: the in-memory session still works for this process.
		m.logger.Error().Err(err).Msg("failed to persist session")
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	m.identity.BeginSession(user)
	m.timer.Start(m.expire)

	m.logger.Info().Str("userID", user.ID).Str("role", user.Role).Msg("session established")
}

// expire is the idle timer's callback: the only involuntary logout path.
func (m *Manager) expire() {
	m.logger.Info().Msg("session expired after inactivity")
	m.teardown()
	m.nav.Navigate(guard.LoginPath)
}

// teardown clears every layer of session state. Safe to call repeatedly.
func (m *Manager) teardown() {
	m.timer.Stop()

	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()

	if err := m.store.ClearSession(); err != nil {
		m.logger.Error().Err(err).Msg("failed to clear persisted session")
	}
	m.identity.EndSession()
}

// commitUser writes a user record to memory and disk under the current
// session generation.
func (m *Manager) commitUser(user *models.User) {
	if !m.identity.Apply(m.identity.Generation(), user) {
		return
	}
	if err := m.store.SaveUser(user); err != nil && !errors.Is(err, sessionstore.ErrNoSession) {
		m.logger.Error().Err(err).Msg("failed to persist user record")
	}
}

func (m *Manager) currentToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Manager) persistRememberedEmail(email string) {
	if err := m.store.SetRememberedEmail(email); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist remembered email")
	}
}

// apiMessage extracts the backend's structured error message, falling back
// to a generic string for transport failures.
func apiMessage(err error, generic string) string {
	var apiErr *authapi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return generic
}

func fallback(msg, generic string) string {
	if msg != "" {
		return msg
	}
	return generic
}
