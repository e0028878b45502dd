package auth

import (
	"context"
	"errors"
	"testing"

	"postsaver/internal/session"
)

type fakeConn struct {
	codeResult   SubmitResult
	codeErr      error
	secondErr    error
	requestErr   error
	disconnects  int
	blockSubmit  chan struct{} // when set, SubmitCode waits for ctx cancel
	submittedPIN string
}

func (c *fakeConn) RequestCode(_ context.Context, _ string) error { return c.requestErr }

func (c *fakeConn) SubmitCode(ctx context.Context, code string) (SubmitResult, error) {
	if c.blockSubmit != nil {
		close(c.blockSubmit)
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return c.codeResult, c.codeErr
}

func (c *fakeConn) SubmitSecondFactor(_ context.Context, secret string) error {
	c.submittedPIN = secret
	return c.secondErr
}

func (c *fakeConn) Disconnect(_ context.Context) error {
	c.disconnects++
	return nil
}

type fakeProvider struct {
	conn       *fakeConn
	connectErr error
	connects   int
}

func (p *fakeProvider) Connect(_ context.Context, _ int64) (Conn, error) {
	p.connects++
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	return p.conn, nil
}

func newSession() *session.Session { return &session.Session{UserID: 1} }

func TestHappyPathWithoutSecondFactor(t *testing.T) {
	p := &fakeProvider{conn: &fakeConn{codeResult: ResultAuthenticated}}
	m := NewMachine(p, 5)
	sess := newSession()
	ctx := context.Background()

	if ev := m.StartLogin(ctx, sess); ev != EventPromptPhone {
		t.Fatalf("StartLogin event %v", ev)
	}
	if ev := m.Submit(ctx, sess, "+1234567890"); ev != EventCodeSent {
		t.Fatalf("phone event %v", ev)
	}
	if sess.State != session.StateAwaitingCode {
		t.Fatalf("state %v", sess.State)
	}
	if ev := m.Submit(ctx, sess, "12345"); ev != EventAuthenticated {
		t.Fatalf("code event %v", ev)
	}
	if sess.State != session.StateAuthenticated {
		t.Fatalf("state %v", sess.State)
	}
}

func TestSecondFactorPath(t *testing.T) {
	conn := &fakeConn{codeResult: ResultNeedsSecondFactor}
	m := NewMachine(&fakeProvider{conn: conn}, 5)
	sess := newSession()
	ctx := context.Background()

	m.StartLogin(ctx, sess)
	m.Submit(ctx, sess, "+1234567890")
	if ev := m.Submit(ctx, sess, "12345"); ev != EventNeedSecondFactor {
		t.Fatalf("code event %v", ev)
	}
	if sess.State != session.StateAwaitingSecondFactor {
		t.Fatalf("state %v", sess.State)
	}
	if ev := m.Submit(ctx, sess, "hunter2"); ev != EventAuthenticated {
		t.Fatalf("second factor event %v", ev)
	}
	if conn.submittedPIN != "hunter2" {
		t.Fatalf("secret not forwarded, got %q", conn.submittedPIN)
	}
}

func TestBadPhoneHoldsState(t *testing.T) {
	p := &fakeProvider{conn: &fakeConn{}}
	m := NewMachine(p, 5)
	sess := newSession()
	ctx := context.Background()

	m.StartLogin(ctx, sess)
	for _, phone := range []string{"12345", "+123", "+123456789012345678", "abc", "+12345abcde"} {
		if ev := m.Submit(ctx, sess, phone); ev != EventBadPhone {
			t.Fatalf("phone %q event %v", phone, ev)
		}
		if sess.State != session.StateAwaitingPhone {
			t.Fatalf("state moved to %v on invalid phone", sess.State)
		}
	}
	if p.connects != 0 {
		t.Fatalf("provider contacted %d times for invalid phones", p.connects)
	}
}

func TestWrongLengthCodeSkipsProvider(t *testing.T) {
	conn := &fakeConn{codeResult: ResultAuthenticated}
	m := NewMachine(&fakeProvider{conn: conn}, 5)
	sess := newSession()
	ctx := context.Background()

	m.StartLogin(ctx, sess)
	m.Submit(ctx, sess, "+1234567890")
	for _, code := range []string{"1234", "123456", "12a45", ""} {
		if ev := m.Submit(ctx, sess, code); ev != EventBadCode {
			t.Fatalf("code %q event %v", code, ev)
		}
		if sess.State != session.StateAwaitingCode {
			t.Fatalf("state moved to %v on malformed code", sess.State)
		}
	}
}

func TestRejectedCodeAllowsRetry(t *testing.T) {
	conn := &fakeConn{codeErr: ErrInvalidCredentials}
	m := NewMachine(&fakeProvider{conn: conn}, 5)
	sess := newSession()
	ctx := context.Background()

	m.StartLogin(ctx, sess)
	m.Submit(ctx, sess, "+1234567890")
	if ev := m.Submit(ctx, sess, "99999"); ev != EventCodeRejected {
		t.Fatalf("event %v", ev)
	}
	if sess.State != session.StateAwaitingCode {
		t.Fatalf("state %v after rejected code", sess.State)
	}

	conn.codeErr = nil
	conn.codeResult = ResultAuthenticated
	if ev := m.Submit(ctx, sess, "12345"); ev != EventAuthenticated {
		t.Fatalf("retry event %v", ev)
	}
}

func TestConnectivityFailureResets(t *testing.T) {
	conn := &fakeConn{codeErr: errors.New("connection reset by peer")}
	m := NewMachine(&fakeProvider{conn: conn}, 5)
	sess := newSession()
	ctx := context.Background()

	m.StartLogin(ctx, sess)
	m.Submit(ctx, sess, "+1234567890")
	if ev := m.Submit(ctx, sess, "12345"); ev != EventProviderUnavailable {
		t.Fatalf("event %v", ev)
	}
	if sess.State != session.StateUnauthenticated {
		t.Fatalf("state %v after connectivity failure", sess.State)
	}
	if sess.Conn != nil {
		t.Fatal("connection not released")
	}
	if conn.disconnects != 1 {
		t.Fatalf("disconnects = %d", conn.disconnects)
	}
}

func TestConnectFailureResets(t *testing.T) {
	m := NewMachine(&fakeProvider{connectErr: errors.New("dial tcp: timeout")}, 5)
	sess := newSession()
	ctx := context.Background()

	m.StartLogin(ctx, sess)
	if ev := m.Submit(ctx, sess, "+1234567890"); ev != EventProviderUnavailable {
		t.Fatalf("event %v", ev)
	}
	if sess.State != session.StateUnauthenticated {
		t.Fatalf("state %v", sess.State)
	}
}

func TestLogoutMidHandshake(t *testing.T) {
	conn := &fakeConn{}
	m := NewMachine(&fakeProvider{conn: conn}, 5)
	sess := newSession()
	ctx := context.Background()

	m.StartLogin(ctx, sess)
	m.Submit(ctx, sess, "+1234567890")
	if ev := m.Logout(ctx, sess); ev != EventLoggedOut {
		t.Fatalf("event %v", ev)
	}
	if sess.State != session.StateUnauthenticated || sess.Conn != nil || sess.Phone != "" {
		t.Fatalf("session not cleaned: %+v", sess)
	}
	if conn.disconnects != 1 {
		t.Fatalf("disconnects = %d", conn.disconnects)
	}
}

func TestLogoutWhenNotLoggedIn(t *testing.T) {
	m := NewMachine(&fakeProvider{conn: &fakeConn{}}, 5)
	sess := newSession()
	if ev := m.Logout(context.Background(), sess); ev != EventNotLoggedIn {
		t.Fatalf("event %v", ev)
	}
}

func TestAbortedSubmitIsDiscarded(t *testing.T) {
	conn := &fakeConn{blockSubmit: make(chan struct{})}
	m := NewMachine(&fakeProvider{conn: conn}, 5)
	sess := newSession()
	ctx := context.Background()

	m.StartLogin(ctx, sess)
	m.Submit(ctx, sess, "+1234567890")

	started := conn.blockSubmit
	go func() {
		<-started
		sess.AbortPending()
	}()

	if ev := m.Submit(ctx, sess, "12345"); ev != EventNone {
		t.Fatalf("aborted submit produced event %v", ev)
	}
}

func TestInProgress(t *testing.T) {
	m := NewMachine(&fakeProvider{conn: &fakeConn{codeResult: ResultAuthenticated}}, 5)
	sess := newSession()
	ctx := context.Background()

	if m.InProgress(sess) {
		t.Fatal("fresh session reported in progress")
	}
	m.StartLogin(ctx, sess)
	if !m.InProgress(sess) {
		t.Fatal("awaiting phone not reported in progress")
	}
	m.Submit(ctx, sess, "+1234567890")
	m.Submit(ctx, sess, "12345")
	if m.InProgress(sess) {
		t.Fatal("authenticated session reported in progress")
	}
}
