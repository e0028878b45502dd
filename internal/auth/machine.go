package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"postsaver/core/logger"
	"postsaver/internal/session"
)

// Event tells the handler layer what happened so it can pick the reply.
// The machine itself never talks to the user.
type Event int

const (
	// EventNone means no reply is owed, e.g. an aborted handshake whose
	// late provider response was discarded.
	EventNone Event = iota
	EventPromptPhone
	EventAlreadyAuthenticated
	EventBadPhone
	EventCodeSent
	EventBadCode
	EventCodeRejected
	EventNeedSecondFactor
	EventSecondFactorRejected
	EventAuthenticated
	EventProviderUnavailable
	EventLoggedOut
	EventNotLoggedIn
)

var phoneRe = regexp.MustCompile(`^\+\d{10,15}$`)

// Machine advances a session through the login handshake. Every method
// must be called from inside Store.Do so the session is exclusively owned.
type Machine struct {
	provider Provider
	codeRe   *regexp.Regexp
	codeLen  int
	log      *slog.Logger
}

// NewMachine builds a login machine. codeLen is the exact digit length of
// provider login codes; shorter or longer input is rejected locally
// without a provider round trip.
func NewMachine(p Provider, codeLen int) *Machine {
	return &Machine{
		provider: p,
		codeRe:   regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, codeLen)),
		codeLen:  codeLen,
		log:      logger.AUTH,
	}
}

// CodeLength reports the expected login code length.
func (m *Machine) CodeLength() int { return m.codeLen }

// InProgress reports whether sess is mid-handshake, i.e. the next plain
// text message belongs to the login flow rather than the link pipeline.
func (m *Machine) InProgress(sess *session.Session) bool {
	switch sess.State {
	case session.StateAwaitingPhone, session.StateAwaitingCode, session.StateAwaitingSecondFactor:
		return true
	default:
		return false
	}
}

// StartLogin handles /login.
func (m *Machine) StartLogin(_ context.Context, sess *session.Session) Event {
	if sess.State == session.StateAuthenticated {
		return EventAlreadyAuthenticated
	}
	sess.State = session.StateAwaitingPhone
	sess.Phone = ""
	return EventPromptPhone
}

// Submit routes a plain text message to the step the session is waiting
// on. It must only be called when InProgress reports true.
func (m *Machine) Submit(ctx context.Context, sess *session.Session, text string) Event {
	switch sess.State {
	case session.StateAwaitingPhone:
		return m.submitPhone(ctx, sess, text)
	case session.StateAwaitingCode:
		return m.submitCode(ctx, sess, text)
	case session.StateAwaitingSecondFactor:
		return m.submitSecondFactor(ctx, sess, text)
	default:
		return EventNone
	}
}

func (m *Machine) submitPhone(ctx context.Context, sess *session.Session, phone string) Event {
	if !phoneRe.MatchString(phone) {
		return EventBadPhone
	}

	callCtx, done := m.trackPending(ctx, sess)
	conn, err := m.provider.Connect(callCtx, sess.UserID)
	if err == nil {
		err = conn.RequestCode(callCtx, phone)
		if err != nil {
			_ = conn.Disconnect(context.WithoutCancel(ctx))
			conn = nil
		}
	}
	done()

	if err != nil {
		if aborted(callCtx, err) {
			return EventNone
		}
		m.log.Warn("login code request failed", "user_id", sess.UserID, "error", err)
		m.reset(ctx, sess)
		return EventProviderUnavailable
	}

	sess.Phone = phone
	sess.Conn = conn
	sess.State = session.StateAwaitingCode
	m.log.Info("login code requested", "user_id", sess.UserID)
	return EventCodeSent
}

func (m *Machine) submitCode(ctx context.Context, sess *session.Session, code string) Event {
	if !m.codeRe.MatchString(code) {
		return EventBadCode
	}
	conn, ok := sess.Conn.(Conn)
	if !ok {
		// Connection vanished underneath the handshake, start over.
		m.reset(ctx, sess)
		return EventProviderUnavailable
	}

	callCtx, done := m.trackPending(ctx, sess)
	res, err := conn.SubmitCode(callCtx, code)
	done()

	if err != nil {
		if aborted(callCtx, err) {
			return EventNone
		}
		if IsCredential(err) {
			// Wrong code, the handshake stays put and the user retries.
			return EventCodeRejected
		}
		m.log.Warn("code submission failed", "user_id", sess.UserID, "error", err)
		m.reset(ctx, sess)
		return EventProviderUnavailable
	}

	if res == ResultNeedsSecondFactor {
		sess.State = session.StateAwaitingSecondFactor
		return EventNeedSecondFactor
	}
	sess.State = session.StateAuthenticated
	m.log.Info("login completed", "user_id", sess.UserID)
	return EventAuthenticated
}

func (m *Machine) submitSecondFactor(ctx context.Context, sess *session.Session, secret string) Event {
	conn, ok := sess.Conn.(Conn)
	if !ok {
		m.reset(ctx, sess)
		return EventProviderUnavailable
	}

	callCtx, done := m.trackPending(ctx, sess)
	err := conn.SubmitSecondFactor(callCtx, secret)
	done()

	if err != nil {
		if aborted(callCtx, err) {
			return EventNone
		}
		if IsCredential(err) {
			return EventSecondFactorRejected
		}
		m.log.Warn("second factor submission failed", "user_id", sess.UserID, "error", err)
		m.reset(ctx, sess)
		return EventProviderUnavailable
	}

	sess.State = session.StateAuthenticated
	m.log.Info("login completed", "user_id", sess.UserID, "second_factor", true)
	return EventAuthenticated
}

// Logout handles /logout. It also terminates a handshake that is only
// partway through.
func (m *Machine) Logout(ctx context.Context, sess *session.Session) Event {
	if sess.State == session.StateUnauthenticated && sess.Conn == nil {
		return EventNotLoggedIn
	}
	m.reset(ctx, sess)
	m.log.Info("logged out", "user_id", sess.UserID)
	return EventLoggedOut
}

func (m *Machine) reset(ctx context.Context, sess *session.Session) {
	if sess.Conn != nil {
		// Best effort, the session is torn down either way.
		if err := sess.Conn.Disconnect(context.WithoutCancel(ctx)); err != nil {
			m.log.Debug("disconnect failed", "user_id", sess.UserID, "error", err)
		}
		sess.Conn = nil
	}
	sess.State = session.StateUnauthenticated
	sess.Phone = ""
}

// trackPending registers a cancel func so /logout can abandon the provider
// call while this operation holds the session lock.
func (m *Machine) trackPending(ctx context.Context, sess *session.Session) (context.Context, func()) {
	callCtx, cancel := context.WithCancel(ctx)
	sess.SetPendingCancel(cancel)
	return callCtx, func() {
		sess.ClearPendingCancel()
		cancel()
	}
}

// aborted reports whether err is the result of the handshake being
// cancelled out from under the call. The late response is discarded.
func aborted(callCtx context.Context, err error) bool {
	return callCtx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, callCtx.Err()))
}
