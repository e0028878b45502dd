package saver

import (
	"context"
	"errors"
	"testing"
	"time"

	coreconfig "postsaver/core/config"
	"postsaver/internal/access"
	"postsaver/internal/auth"
	"postsaver/internal/fetch"
	"postsaver/internal/link"
	"postsaver/internal/post"
	"postsaver/internal/session"
)

type fakeFetcher struct {
	content fetch.Content
	err     error
	calls   int
	lastRef link.Reference
}

func (f *fakeFetcher) Fetch(_ context.Context, _ int64, ref link.Reference) (fetch.Content, error) {
	f.calls++
	f.lastRef = ref
	return f.content, f.err
}

type fakeStore struct {
	saved []post.SavedPost
	err   error
}

func (s *fakeStore) Save(_ context.Context, p post.SavedPost) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.saved = append(s.saved, p)
	return int64(len(s.saved)), nil
}

type fakeConn struct{}

func (fakeConn) RequestCode(context.Context, string) error { return nil }
func (fakeConn) SubmitCode(context.Context, string) (auth.SubmitResult, error) {
	return auth.ResultAuthenticated, nil
}
func (fakeConn) SubmitSecondFactor(context.Context, string) error { return nil }
func (fakeConn) Disconnect(context.Context) error                 { return nil }

type fakeProvider struct{}

func (fakeProvider) Connect(context.Context, int64) (auth.Conn, error) { return fakeConn{}, nil }

type fixture struct {
	co      *Coordinator
	store   *session.Store
	fetcher *fakeFetcher
	posts   *fakeStore
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   session.NewStore(1),
		fetcher: &fakeFetcher{content: fetch.Content{Text: "body", FetchID: "f-1"}},
		posts:   &fakeStore{},
		now:     time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	acc := access.NewController(coreconfig.AccessConfig{
		OwnerID:           1,
		PremiumTokens:     []string{"GOLD-1"},
		FreeDailyLimit:    10,
		PremiumDailyLimit: 100,
		PremiumGrantHours: 3,
		Location:          time.UTC,
	})
	machine := auth.NewMachine(fakeProvider{}, 5)
	f.co = New(f.store, machine, acc, f.fetcher, f.posts, func() time.Time { return f.now })
	return f
}

func (f *fixture) login(t *testing.T, userID int64) {
	t.Helper()
	ctx := context.Background()
	f.co.StartLogin(ctx, userID)
	if r := f.co.HandleText(ctx, userID, "+1234567890"); r.LoginEvent != auth.EventCodeSent {
		t.Fatalf("phone event %v", r.LoginEvent)
	}
	if r := f.co.HandleText(ctx, userID, "12345"); r.LoginEvent != auth.EventAuthenticated {
		t.Fatalf("code event %v", r.LoginEvent)
	}
}

func TestSavePublicPost(t *testing.T) {
	f := newFixture(t)
	res := f.co.HandleText(context.Background(), 2, "https://t.me/news/42")
	if res.Kind != KindSaved {
		t.Fatalf("kind %v err %v", res.Kind, res.Err)
	}
	if res.Remaining != 9 {
		t.Fatalf("remaining %d", res.Remaining)
	}
	if len(f.posts.saved) != 1 {
		t.Fatalf("saved %d posts", len(f.posts.saved))
	}
	p := f.posts.saved[0]
	if p.UserID != 2 || p.Channel != "news" || p.MessageID != 42 || p.Private {
		t.Fatalf("saved post %+v", p)
	}
	if p.Content != "body" || p.FetchID != "f-1" || p.Link != "https://t.me/news/42" {
		t.Fatalf("saved post %+v", p)
	}
}

func TestNonLinkIgnored(t *testing.T) {
	f := newFixture(t)
	res := f.co.HandleText(context.Background(), 2, "hello world")
	if res.Kind != KindIgnored {
		t.Fatalf("kind %v", res.Kind)
	}
	if f.fetcher.calls != 0 {
		t.Fatal("fetcher called for plain text")
	}
}

func TestPrivateLinkNeedsLogin(t *testing.T) {
	f := newFixture(t)
	res := f.co.HandleText(context.Background(), 2, "https://t.me/c/555/42")
	if res.Kind != KindLoginRequired {
		t.Fatalf("kind %v", res.Kind)
	}
	if f.fetcher.calls != 0 {
		t.Fatal("fetcher called before auth")
	}
}

func TestPrivateLinkAfterLogin(t *testing.T) {
	f := newFixture(t)
	f.login(t, 2)
	res := f.co.HandleText(context.Background(), 2, "https://t.me/c/555/42")
	if res.Kind != KindSaved {
		t.Fatalf("kind %v err %v", res.Kind, res.Err)
	}
	if !f.fetcher.lastRef.Private || f.fetcher.lastRef.Channel != "555" {
		t.Fatalf("fetched ref %+v", f.fetcher.lastRef)
	}
}

func TestPublicLinkWorksUnauthenticated(t *testing.T) {
	f := newFixture(t)
	if res := f.co.HandleText(context.Background(), 2, "https://t.me/news/1"); res.Kind != KindSaved {
		t.Fatalf("kind %v", res.Kind)
	}
}

func TestQuotaExhaustion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if res := f.co.HandleText(ctx, 2, "https://t.me/news/1"); res.Kind != KindSaved {
			t.Fatalf("save %d kind %v", i+1, res.Kind)
		}
	}
	res := f.co.HandleText(ctx, 2, "https://t.me/news/1")
	if res.Kind != KindDenied {
		t.Fatalf("kind %v", res.Kind)
	}
	want := time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC)
	if !res.ResetAt.Equal(want) {
		t.Fatalf("reset at %v", res.ResetAt)
	}
	if f.fetcher.calls != 10 {
		t.Fatalf("fetcher called %d times", f.fetcher.calls)
	}
}

func TestFailedFetchIsFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fetcher.err = errors.New("upstream timeout")
	for _i := 0; _i < 3; _i++ {
		if res := f.co.HandleText(ctx, 2, "https://t.me/news/1"); res.Kind != KindFetchFailed {
			t.Fatalf("kind %v", res.Kind)
		}
	}
	f.fetcher.err = nil
	res := f.co.HandleText(ctx, 2, "https://t.me/news/1")
	if res.Kind != KindSaved || res.Remaining != 9 {
		t.Fatalf("kind %v remaining %d", res.Kind, res.Remaining)
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = fetch.ErrNotFound
	res := f.co.HandleText(context.Background(), 2, "https://t.me/news/404")
	if res.Kind != KindNotFound {
		t.Fatalf("kind %v", res.Kind)
	}
}

func TestStoreFailureConsumesQuota(t *testing.T) {
	f := newFixture(t)
	f.posts.err = errors.New("db down")
	res := f.co.HandleText(context.Background(), 2, "https://t.me/news/1")
	if res.Kind != KindStoreFailed {
		t.Fatalf("kind %v", res.Kind)
	}
	if got := f.co.Snapshot(2).Remaining; got != 9 {
		t.Fatalf("remaining %d, fetched content should have consumed quota", got)
	}
}

func TestOwnerBypassesQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _i := 0; _i < 50; _i++ {
		res := f.co.HandleText(ctx, 1, "https://t.me/news/1")
		if res.Kind != KindSaved || res.Remaining != access.Unlimited {
			t.Fatalf("kind %v remaining %d", res.Kind, res.Remaining)
		}
	}
}

func TestRedeemRaisesCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _i := 0; _i < 10; _i++ {
		f.co.HandleText(ctx, 2, "https://t.me/news/1")
	}
	if res := f.co.HandleText(ctx, 2, "https://t.me/news/1"); res.Kind != KindDenied {
		t.Fatalf("kind %v", res.Kind)
	}

	expires, err := f.co.Redeem(2, "GOLD-1")
	if err != nil {
		t.Fatal(err)
	}
	if want := f.now.Add(3 * time.Hour); !expires.Equal(want) {
		t.Fatalf("expires %v", expires)
	}

	res := f.co.HandleText(ctx, 2, "https://t.me/news/1")
	if res.Kind != KindSaved || res.Remaining != 89 {
		t.Fatalf("kind %v remaining %d", res.Kind, res.Remaining)
	}
}

func TestOwnerRedeemGrantsNothing(t *testing.T) {
	f := newFixture(t)
	expires, err := f.co.Redeem(1, "GOLD-1")
	if err != nil {
		t.Fatal(err)
	}
	if !expires.IsZero() {
		t.Fatalf("owner redemption reported a grant until %v", expires)
	}
	if st := f.co.Snapshot(1); st.Tier != session.TierOwner {
		t.Fatalf("tier %v after owner redemption", st.Tier)
	}
}

func TestRedeemUnknownToken(t *testing.T) {
	f := newFixture(t)
	if _, err := f.co.Redeem(2, "NOPE"); !errors.Is(err, access.ErrUnknownToken) {
		t.Fatalf("err %v", err)
	}
}

func TestLoginDelegation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.co.StartLogin(ctx, 2)
	if !f.co.InProgress(2) {
		t.Fatal("login not in progress")
	}

	// A link sent mid-login is treated as phone input, not as a save.
	res := f.co.HandleText(ctx, 2, "https://t.me/news/1")
	if res.Kind != KindLoginEvent || res.LoginEvent != auth.EventBadPhone {
		t.Fatalf("kind %v event %v", res.Kind, res.LoginEvent)
	}
	if f.fetcher.calls != 0 {
		t.Fatal("fetcher called mid-login")
	}
}

func TestInProgressConcurrentWithLoginFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _i := 0; _i < 200; _i++ {
			f.co.StartLogin(ctx, 2)
			f.co.HandleText(ctx, 2, "+1234567890")
			f.co.HandleText(ctx, 2, "12345")
			f.co.Logout(ctx, 2)
		}
	}()

	// The routing peek runs concurrently with the handshake mutations;
	// every answer must come from a settled state.
	for polling := true; polling; {
		select {
		case <-done:
			polling = false
		default:
			f.co.InProgress(2)
		}
	}
	if f.co.InProgress(2) {
		t.Fatal("in progress after final logout")
	}
}

func TestLogoutEndsAuthentication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, 2)
	if ev := f.co.Logout(ctx, 2); ev != auth.EventLoggedOut {
		t.Fatalf("event %v", ev)
	}
	if res := f.co.HandleText(ctx, 2, "https://t.me/c/555/42"); res.Kind != KindLoginRequired {
		t.Fatalf("kind %v after logout", res.Kind)
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.co.HandleText(ctx, 2, "https://t.me/news/1")

	st := f.co.Snapshot(2)
	if st.Tier != session.TierFree || st.Limit != 10 || st.Remaining != 9 {
		t.Fatalf("snapshot %+v", st)
	}
	if st.State != session.StateUnauthenticated {
		t.Fatalf("state %v", st.State)
	}

	f.co.Redeem(2, "GOLD-1")
	st = f.co.Snapshot(2)
	if st.Tier != session.TierPremium || st.Limit != 100 || st.Remaining != 99 {
		t.Fatalf("snapshot %+v", st)
	}
	if !st.PremiumUntil.Equal(f.now.Add(3 * time.Hour)) {
		t.Fatalf("premium until %v", st.PremiumUntil)
	}
}
