// Package auth drives the login state machine against an external
// identity provider.
package auth

import (
	"context"
	"errors"

	"postsaver/internal/session"
)

// SubmitResult is what the provider reports after a login code is accepted.
type SubmitResult int

const (
	// ResultAuthenticated means the handshake is complete.
	ResultAuthenticated SubmitResult = iota
	// ResultNeedsSecondFactor means the account has an additional secret
	// that must be submitted before the handshake completes.
	ResultNeedsSecondFactor
)

// Conn is an open identity-provider connection for one user. A session
// owns at most one Conn at a time.
type Conn interface {
	session.ProviderConn

	RequestCode(ctx context.Context, phone string) error
	SubmitCode(ctx context.Context, code string) (SubmitResult, error)
	SubmitSecondFactor(ctx context.Context, secret string) error
}

// Provider opens identity-provider connections.
type Provider interface {
	Connect(ctx context.Context, userID int64) (Conn, error)
}

// ErrInvalidCredentials is returned by a provider when a submitted code or
// second-factor secret is rejected. The handshake stays where it is and
// the user may retry.
var ErrInvalidCredentials = errors.New("identity provider rejected credentials")

// IsCredential reports whether err is a credential rejection as opposed to
// a connectivity failure.
func IsCredential(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}
