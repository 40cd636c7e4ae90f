// Package authapi is the REST client for the prepdeck auth backend. It is
// the only component that talks to the network; everything above it deals in
// decoded responses and typed errors.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gregjones/httpcache"
	"github.com/rs/zerolog"

	"github.com/prepdeck/prepdeck/internal/logger"
	"github.com/prepdeck/prepdeck/internal/models"
)

const maxRetries = 3

// Config holds client configuration.
type Config struct {
	ServerURL string
	Timeout   time.Duration
	Debug     bool

	// CacheGETs wraps the transport with an in-memory HTTP cache so
	// cacheable GET endpoints (profile revalidation) honour Cache-Control
	// headers from the backend.
	CacheGETs bool
}

// DefaultConfig returns a default client configuration.
func DefaultConfig() Config {
	return Config{
		ServerURL: "https://api.prepdeck.app",
		Timeout:   30 * time.Second,
	}
}

// APIError carries the backend's structured error payload.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// AuthResponse is the body returned by the login and credential-exchange
// endpoints.
type AuthResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
	Message string       `json:"message"`
}

// MessageResponse is the body returned by endpoints that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}

// ProfileResponse is the body returned by GET /auth/profile and PUT /profile.
type ProfileResponse struct {
	User *models.User `json:"user"`
}

// RegisterRequest is the password-registration payload.
type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	FieldOfStudy string `json:"fieldOfStudy,omitempty"`
	SelectedExam string `json:"selectedExam,omitempty"`
}

// GoogleRegisterRequest carries the opaque credential plus the identity
// claims decoded locally to pre-fill the registration. The backend verifies
// the credential itself; the claims are convenience only.
type GoogleRegisterRequest struct {
	Credential string `json:"credential"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Picture    string `json:"picture,omitempty"`
}

// Client calls the prepdeck auth API.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  zerolog.Logger
}

// New creates a client from the given configuration.
func New(cfg Config, log zerolog.Logger) *Client {
	var transport http.RoundTripper = http.DefaultTransport
	if cfg.CacheGETs {
		transport = httpcache.NewTransport(httpcache.NewMemoryCache())
	}
	transport = logger.NewHTTPRequests(transport, log)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}

	return &Client{
		baseURL: cfg.ServerURL,
		httpc: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: log,
	}
}

// Login exchanges an email and password for a token and user.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	return doJSON[AuthResponse](ctx, c, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
}

// GoogleLogin exchanges an opaque Google credential for a token and user.
func (c *Client) GoogleLogin(ctx context.Context, credential string) (*AuthResponse, error) {
	return doJSON[AuthResponse](ctx, c, http.MethodPost, "/auth/google/login", "", map[string]string{
		"credential": credential,
	})
}

// GoogleRegister registers an account from a Google credential.
func (c *Client) GoogleRegister(ctx context.Context, req GoogleRegisterRequest) (*AuthResponse, error) {
	return doJSON[AuthResponse](ctx, c, http.MethodPost, "/auth/google/register", "", req)
}

// Register creates an account. Registration never yields a token; the user
// logs in separately afterwards.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*MessageResponse, error) {
	return doJSON[MessageResponse](ctx, c, http.MethodPost, "/auth/register", "", req)
}

// AdminLogin authenticates against the privileged endpoint.
func (c *Client) AdminLogin(ctx context.Context, email, password string) (*AuthResponse, error) {
	return doJSON[AuthResponse](ctx, c, http.MethodPost, "/admin/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Profile fetches the authenticated user's record.
func (c *Client) Profile(ctx context.Context, token string) (*ProfileResponse, error) {
	return doJSON[ProfileResponse](ctx, c, http.MethodGet, "/auth/profile", token, nil)
}

// UpdateProfile round-trips a merge-patch of the user's profile.
func (c *Client) UpdateProfile(ctx context.Context, token string, patch models.UserPatch) (*ProfileResponse, error) {
	return doJSON[ProfileResponse](ctx, c, http.MethodPut, "/profile", token, patch)
}

// RequestPasswordReset starts the password-reset flow for an email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (*MessageResponse, error) {
	return doJSON[MessageResponse](ctx, c, http.MethodPost, "/auth/forgot-password", "", map[string]string{
		"email": email,
	})
}

// VerifyResetCode checks the emailed reset code.
func (c *Client) VerifyResetCode(ctx context.Context, email, code string) (*MessageResponse, error) {
	return doJSON[MessageResponse](ctx, c, http.MethodPost, "/auth/verify-reset-code", "", map[string]string{
		"email": email,
		"code":  code,
	})
}

// ResetPassword completes the reset flow with the verified code.
func (c *Client) ResetPassword(ctx context.Context, email, code, newPassword string) (*MessageResponse, error) {
	return doJSON[MessageResponse](ctx, c, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"email":       email,
		"code":        code,
		"newPassword": newPassword,
	})
}

// doJSON performs one API call with retry on transient failures. Network
// errors and 5xx responses are retried with exponential backoff; any 4xx is
// permanent and surfaces as *APIError carrying the backend's message.
func doJSON[T any](ctx context.Context, c *Client, method, path, token string, body any) (*T, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	operation := func() (*T, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-Id", uuid.NewString())
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, err // transient, retry
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 {
			return nil, decodeAPIError(resp.StatusCode, data) // retry
		}
		if resp.StatusCode >= 400 {
			return nil, backoff.Permanent(decodeAPIError(resp.StatusCode, data))
		}

		var out T
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return &out, nil
	}

	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxRetries),
	)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("api request failed")
		return nil, err
	}
	return out, nil
}

func decodeAPIError(status int, data []byte) *APIError {
	var payload MessageResponse
	_ = json.Unmarshal(data, &payload)
	return &APIError{StatusCode: status, Message: payload.Message}
}
