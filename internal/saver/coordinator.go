// Package saver coordinates the save-request pipeline: login delegation,
// link parsing, access control, content fetch and persistence.
package saver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"postsaver/core/logger"
	"postsaver/internal/access"
	"postsaver/internal/auth"
	"postsaver/internal/fetch"
	"postsaver/internal/link"
	"postsaver/internal/post"
	"postsaver/internal/session"
)

// PostStore is the slice of the post repository the coordinator needs.
type PostStore interface {
	Save(ctx context.Context, p post.SavedPost) (int64, error)
}

// Kind classifies what HandleText did with a message.
type Kind int

const (
	// KindLoginEvent means the text was consumed by an in-progress login
	// handshake; Result.LoginEvent says how to reply.
	KindLoginEvent Kind = iota
	// KindIgnored means the text contained no recognizable post link.
	KindIgnored
	// KindLoginRequired means the link points at a private channel and
	// the user is not authenticated.
	KindLoginRequired
	// KindDenied means the daily quota is exhausted.
	KindDenied
	// KindNotFound means the referenced post does not exist.
	KindNotFound
	// KindFetchFailed means retrieval failed; no quota was consumed.
	KindFetchFailed
	// KindStoreFailed means the post was fetched but could not be
	// persisted.
	KindStoreFailed
	// KindSaved means the post was fetched and stored.
	KindSaved
)

// Result reports the outcome of one text message.
type Result struct {
	Kind       Kind
	LoginEvent auth.Event
	Ref        link.Reference
	// Remaining is the quota left after this save, or access.Unlimited.
	Remaining int
	// ResetAt is when the quota window ends; set for KindDenied.
	ResetAt time.Time
	Post    post.SavedPost
	Err     error
}

// Coordinator runs the pipeline for each incoming text message. All
// session access goes through the store so per-user operations are
// strictly serialized.
type Coordinator struct {
	store   *session.Store
	machine *auth.Machine
	access  *access.Controller
	fetcher fetch.Fetcher
	posts   PostStore
	now     func() time.Time
	log     *slog.Logger
}

// New wires a coordinator. nowFn may be nil, in which case time.Now is
// used.
func New(store *session.Store, machine *auth.Machine, acc *access.Controller, fetcher fetch.Fetcher, posts PostStore, nowFn func() time.Time) *Coordinator {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Coordinator{
		store:   store,
		machine: machine,
		access:  acc,
		fetcher: fetcher,
		posts:   posts,
		now:     nowFn,
		log:     logger.SAVER,
	}
}

// HandleText processes one plain text message from userID.
func (co *Coordinator) HandleText(ctx context.Context, userID int64, text string) Result {
	var res Result
	_ = co.store.Do(userID, func(sess *session.Session) error {
		res = co.handleText(ctx, sess, text)
		return nil
	})
	return res
}

func (co *Coordinator) handleText(ctx context.Context, sess *session.Session, text string) Result {
	// A handshake in progress owns every plain text message.
	if co.machine.InProgress(sess) {
		return Result{Kind: KindLoginEvent, LoginEvent: co.machine.Submit(ctx, sess, text)}
	}

	ref, ok := link.Parse(text)
	if !ok {
		return Result{Kind: KindIgnored}
	}

	if ref.Private && sess.State != session.StateAuthenticated {
		return Result{Kind: KindLoginRequired, Ref: ref}
	}

	now := co.now()
	decision := co.access.CanProceed(sess, now)
	if !decision.Allowed {
		co.log.Info("save denied",
			"user_id", sess.UserID,
			"tier", decision.Tier.String(),
			"channel", ref.Channel,
		)
		return Result{Kind: KindDenied, Ref: ref, ResetAt: co.access.ResetAt(now)}
	}

	content, err := co.fetcher.Fetch(ctx, sess.UserID, ref)
	if err != nil {
		// Failed fetches never consume quota.
		co.log.Warn("fetch failed", "user_id", sess.UserID, "channel", ref.Channel, "error", err)
		if errors.Is(err, fetch.ErrNotFound) {
			return Result{Kind: KindNotFound, Ref: ref, Err: err}
		}
		return Result{Kind: KindFetchFailed, Ref: ref, Err: err}
	}

	co.access.RecordUse(sess, now)
	remaining := co.access.Remaining(sess, now)

	saved := post.SavedPost{
		UserID:    sess.UserID,
		Channel:   ref.Channel,
		MessageID: ref.MessageID,
		Link:      ref.URL(),
		Content:   content.Text,
		Private:   ref.Private,
		FetchID:   content.FetchID,
		SavedAt:   now,
	}
	id, err := co.posts.Save(ctx, saved)
	if err != nil {
		co.log.Error("persist failed", "user_id", sess.UserID, "fetch_id", content.FetchID, "error", err)
		return Result{Kind: KindStoreFailed, Ref: ref, Remaining: remaining, Err: err}
	}
	saved.ID = id

	co.log.Info("post saved",
		"user_id", sess.UserID,
		"channel", ref.Channel,
		"message_id", ref.MessageID,
		"private", ref.Private,
		"remaining", remaining,
	)
	return Result{Kind: KindSaved, Ref: ref, Remaining: remaining, Post: saved}
}

// InProgress reports whether userID has a login handshake under way. The
// read goes through the session lock, so it serializes behind any
// operation currently mutating the same user's state.
func (co *Coordinator) InProgress(userID int64) bool {
	sess, ok := co.store.Peek(userID)
	return ok && sess.InLogin()
}

// StartLogin handles /login.
func (co *Coordinator) StartLogin(ctx context.Context, userID int64) auth.Event {
	var ev auth.Event
	_ = co.store.Do(userID, func(sess *session.Session) error {
		ev = co.machine.StartLogin(ctx, sess)
		return nil
	})
	return ev
}

// Logout handles /logout. An in-flight provider call is abandoned first
// so the logout does not wait behind it.
func (co *Coordinator) Logout(ctx context.Context, userID int64) auth.Event {
	co.store.AbortPending(userID)
	var ev auth.Event
	_ = co.store.Do(userID, func(sess *session.Session) error {
		ev = co.machine.Logout(ctx, sess)
		return nil
	})
	return ev
}

// Redeem handles /token.
func (co *Coordinator) Redeem(userID int64, token string) (time.Time, error) {
	var (
		expires time.Time
		err     error
	)
	_ = co.store.Do(userID, func(sess *session.Session) error {
		expires, err = co.access.Redeem(sess, token, co.now())
		return nil
	})
	return expires, err
}

// Status is a point-in-time snapshot of one user's session for /status.
type Status struct {
	State     session.AuthState
	Tier      session.Tier
	Remaining int
	Limit     int
	ResetAt   time.Time
	// PremiumUntil is zero unless an active premium grant exists.
	PremiumUntil time.Time
}

// Snapshot reports the user's current state, applying lazy expiry and
// rollover on the way.
func (co *Coordinator) Snapshot(userID int64) Status {
	var st Status
	_ = co.store.Do(userID, func(sess *session.Session) error {
		now := co.now()
		st = Status{
			Tier:         co.access.EffectiveTier(sess, now),
			State:        sess.State,
			Remaining:    co.access.Remaining(sess, now),
			ResetAt:      co.access.ResetAt(now),
			PremiumUntil: sess.PremiumExpiresAt,
		}
		st.Limit = co.access.Limit(st.Tier)
		return nil
	})
	return st
}
