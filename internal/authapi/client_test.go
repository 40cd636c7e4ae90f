package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepdeck/prepdeck/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := New(Config{ServerURL: srv.URL, Timeout: 5 * time.Second}, zerolog.Nop())
	return client, srv
}

func TestClient_Login(t *testing.T) {
	t.Run("decodes token and user on success", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/auth/login", r.URL.Path)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NotEmpty(t, r.Header.Get("X-Request-Id"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ada@example.com", body["email"])

			json.NewEncoder(w).Encode(AuthResponse{
				Success: true,
				Token:   "t1",
				User:    &models.User{ID: "u-1", Email: "ada@example.com", Role: models.RoleUser},
			})
		}))

		resp, err := client.Login(context.Background(), "ada@example.com", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, "t1", resp.Token)
		assert.Equal(t, "u-1", resp.User.ID)
	})

	t.Run("surfaces backend message on rejection", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(MessageResponse{Message: "invalid email or password"})
		}))

		_, err := client.Login(context.Background(), "ada@example.com", "wrong")
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "invalid email or password", apiErr.Message)
	})

	t.Run("does not retry 4xx responses", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(MessageResponse{Message: "bad request"})
		}))

		_, err := client.Login(context.Background(), "ada@example.com", "pw")
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries 5xx responses", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(AuthResponse{Success: true, Token: "t1", User: &models.User{ID: "u-1"}})
		}))

		resp, err := client.Login(context.Background(), "ada@example.com", "pw")
		require.NoError(t, err)
		assert.Equal(t, "t1", resp.Token)
		assert.Equal(t, int32(3), calls.Load())
	})
}

func TestClient_Profile(t *testing.T) {
	t.Run("sends bearer token", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "/auth/profile", r.URL.Path)
			require.Equal(t, "Bearer t1", r.Header.Get("Authorization"))

			json.NewEncoder(w).Encode(ProfileResponse{User: &models.User{ID: "u-1", Role: models.RoleAdmin}})
		}))

		resp, err := client.Profile(context.Background(), "t1")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, resp.User.Role)
	})

	t.Run("reports unauthorized", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(MessageResponse{Message: "token expired"})
		}))

		_, err := client.Profile(context.Background(), "t1")
		assert.True(t, IsUnauthorized(err))
	})
}

func TestClient_UpdateProfile(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/profile", r.URL.Path)

		var patch models.UserPatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		require.NotNil(t, patch.FieldOfStudy)

		json.NewEncoder(w).Encode(ProfileResponse{
			User: &models.User{ID: "u-1", FieldOfStudy: *patch.FieldOfStudy},
		})
	}))

	field := "medicine"
	resp, err := client.UpdateProfile(context.Background(), "t1", models.UserPatch{FieldOfStudy: &field})
	require.NoError(t, err)
	assert.Equal(t, "medicine", resp.User.FieldOfStudy)
}

func TestClient_ResetFlowEndpoints(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(MessageResponse{Message: "ok"})
	}))

	ctx := context.Background()

	_, err := client.RequestPasswordReset(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "/auth/forgot-password", gotPath)

	_, err = client.VerifyResetCode(ctx, "ada@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "/auth/verify-reset-code", gotPath)
	assert.Equal(t, "123456", gotBody["code"])

	_, err = client.ResetPassword(ctx, "ada@example.com", "123456", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "/auth/reset-password", gotPath)
	assert.Equal(t, "s3cret!", gotBody["newPassword"])
}

func TestClient_NetworkErrorIsRetriedThenSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // every request now fails at dial time

	client := New(Config{ServerURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	_, err := client.Login(context.Background(), "ada@example.com", "pw")
	require.Error(t, err)

	// A transport failure is not an API error; there is no status to decode.
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
