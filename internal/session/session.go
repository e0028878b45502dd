// Package session holds per-user conversational state and serializes all
// operations touching a single user's session.
package session

import (
	"context"
	"sync"
	"time"
)

// AuthState is the login state machine position of one user session.
type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StateAwaitingPhone
	StateAwaitingCode
	StateAwaitingSecondFactor
	StateAuthenticated
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingPhone:
		return "awaiting_phone"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateAwaitingSecondFactor:
		return "awaiting_second_factor"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Tier is a user's access level.
type Tier int

const (
	TierFree Tier = iota
	TierPremium
	TierOwner
)

func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierPremium:
		return "premium"
	case TierOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// ProviderConn is the identity-provider connection owned by a session while
// a login handshake is in progress or after it has completed.
type ProviderConn interface {
	Disconnect(ctx context.Context) error
}

// Session is the in-memory state of one Telegram user. All fields are
// guarded by the store's per-user serialization: handlers only touch a
// session from inside Store.Do.
type Session struct {
	UserID int64

	State AuthState
	Phone string
	Conn  ProviderConn

	Tier             Tier
	PremiumExpiresAt time.Time // zero while Tier != TierPremium

	DailyUsage int
	UsageDay   time.Time // start of the calendar day DailyUsage counts

	mu sync.Mutex

	// cancelPending aborts an in-flight identity-provider call. It has its
	// own lock so /logout can reach it while the session lock is held by
	// the pending operation.
	pendingMu     sync.Mutex
	cancelPending context.CancelFunc
}

// InLogin reports whether a handshake is in progress. It takes the
// session lock, so unlike direct State reads it is safe outside Store.Do.
func (s *Session) InLogin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.State {
	case StateAwaitingPhone, StateAwaitingCode, StateAwaitingSecondFactor:
		return true
	default:
		return false
	}
}

// SetPendingCancel registers the cancel func of an in-flight provider call.
func (s *Session) SetPendingCancel(cancel context.CancelFunc) {
	s.pendingMu.Lock()
	s.cancelPending = cancel
	s.pendingMu.Unlock()
}

// ClearPendingCancel drops the registered cancel func without invoking it.
func (s *Session) ClearPendingCancel() {
	s.SetPendingCancel(nil)
}

// AbortPending cancels an in-flight provider call, if any. Safe to call
// from any goroutine.
func (s *Session) AbortPending() {
	s.pendingMu.Lock()
	cancel := s.cancelPending
	s.cancelPending = nil
	s.pendingMu.Unlock()
	if cancel != nil {
		cancel()
	}
}
