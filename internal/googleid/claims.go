// Package googleid decodes the non-secret identity claims of a Google ID
// token. The decode is display and pre-fill convenience only: the signature
// is never checked here and nothing decoded from it may be treated as
// verified identity. The backend is the authority on the credential.
package googleid

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential is returned when the credential is missing or not a
// well-formed JWT.
var ErrInvalidCredential = errors.New("invalid google credential")

// Claims are the identity fields the registration form pre-fills.
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Decode extracts the identity claims from an opaque Google credential
// without verifying its signature.
func Decode(credential string) (*Claims, error) {
	if credential == "" {
		return nil, ErrInvalidCredential
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(credential, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidCredential)
	}

	return claims, nil
}
