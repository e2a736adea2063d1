// Package auth signs users in, verifies bearer tokens and remembers the last
// signed-in user id on the device.
package auth

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredentials is returned for unknown accounts, bad passwords and
	// tokens that fail verification.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotSignedIn is returned when no session or cached user id exists.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrAccountExists is returned by Register for an email already in use.
	ErrAccountExists = errors.New("account already exists")
)

// Session is an authenticated user and the bearer token issued for it.
type Session struct {
	UserID    string `json:"user_id"`
	Token     string `json:"token"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

// Provider issues and revokes sessions.
type Provider interface {
	SignInAnonymously(ctx context.Context) (Session, error)
	SignInWithEmailPassword(ctx context.Context, email, password string) (Session, error)
	Register(ctx context.Context, email, password string) (Session, error)
	Logout(ctx context.Context, token string) error
}

// Verifier resolves a bearer token to a user id.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (string, error)

// VerifyToken implements Verifier.
func (f VerifierFunc) VerifyToken(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// ChainVerifiers tries each verifier in order and returns the first user id
// accepted. The last failure is returned when none accept the token.
func ChainVerifiers(verifiers ...Verifier) Verifier {
	return VerifierFunc(func(ctx context.Context, token string) (string, error) {
		err := ErrInvalidCredentials
		for _, v := range verifiers {
			if v == nil {
				continue
			}
			uid, verr := v.VerifyToken(ctx, token)
			if verr == nil {
				return uid, nil
			}
			err = verr
		}
		return "", err
	})
}
