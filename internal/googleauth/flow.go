// Package googleauth obtains an opaque Google sign-in credential via the
// OAuth2 authorization-code flow with a loopback redirect. The credential it
// returns is the provider's ID token; the backend verifies it, the client
// never does.
package googleauth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var (
	// ErrStateMismatch is returned when the callback carries a state the
	// flow did not issue.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrNoIDToken is returned when the token exchange yields no ID token.
	ErrNoIDToken = errors.New("no id_token in token response")
)

// Endpoint is Google's OAuth2 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// Flow runs the authorization-code dance for one credential.
type Flow struct {
	config *oauth2.Config
}

// NewFlow creates a flow for the given OAuth client.
func NewFlow(clientID, clientSecret string) (*Flow, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("google client ID and secret are required")
	}

	return &Flow{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     Endpoint,
		},
	}, nil
}

type callbackResult struct {
	code string
	err  error
}

// newCallbackHandler validates the redirect and hands the authorization
// code back to the flow.
func newCallbackHandler(state string, results chan<- callbackResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			results <- callbackResult{err: ErrStateMismatch}
			http.Error(w, "authentication failed", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			results <- callbackResult{err: fmt.Errorf("callback missing code")}
			http.Error(w, "authentication failed", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Signed in. You can close this tab and return to the terminal.")
		results <- callbackResult{code: code}
	}
}

// Obtain starts a loopback listener, prints the authorization URL for the
// user to open, waits for the redirect and exchanges the code. It returns
// the ID token as the opaque credential.
func (f *Flow) Obtain(ctx context.Context) (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to start callback listener: %w", err)
	}
	defer listener.Close()

	cfg := *f.config
	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", listener.Addr())

	state := rand.Text()
	results := make(chan callbackResult, 1)

	router := chi.NewRouter()
	router.Get("/callback", newCallbackHandler(state, results))

	server := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Debug().Err(err).Msg("callback server stopped")
		}
	}()
	defer server.Close()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Printf("Open this URL in your browser to sign in with Google:\n\n  %s\n\n", authURL)

	var result callbackResult
	select {
	case result = <-results:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if result.err != nil {
		return "", result.err
	}

	token, err := cfg.Exchange(ctx, result.code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", ErrNoIDToken
	}

	log.Debug().Msg("obtained google credential")

	return idToken, nil
}
