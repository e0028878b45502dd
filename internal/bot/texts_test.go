package bot

import (
	"strings"
	"testing"
	"time"

	"postsaver/internal/access"
	"postsaver/internal/auth"
	"postsaver/internal/saver"
	"postsaver/internal/session"
)

func TestPreviewOf(t *testing.T) {
	if got := previewOf("short text"); got != "short text" {
		t.Fatalf("got %q", got)
	}
	if got := previewOf("line\none\n\n  line two"); got != "line one line two" {
		t.Fatalf("whitespace not collapsed: %q", got)
	}

	long := strings.Repeat("ы", 300)
	got := previewOf(long)
	if runes := []rune(got); len(runes) != previewRunes+1 || !strings.HasSuffix(got, "…") {
		t.Fatalf("long preview length %d", len(runes))
	}
}

func TestLoginEventTextCoversAllEvents(t *testing.T) {
	events := []auth.Event{
		auth.EventPromptPhone,
		auth.EventAlreadyAuthenticated,
		auth.EventBadPhone,
		auth.EventCodeSent,
		auth.EventBadCode,
		auth.EventCodeRejected,
		auth.EventNeedSecondFactor,
		auth.EventSecondFactorRejected,
		auth.EventAuthenticated,
		auth.EventProviderUnavailable,
		auth.EventLoggedOut,
		auth.EventNotLoggedIn,
	}
	for _, ev := range events {
		if loginEventText(ev, 5) == "" {
			t.Errorf("event %v has no reply text", ev)
		}
	}
	if loginEventText(auth.EventNone, 5) != "" {
		t.Error("EventNone must stay silent")
	}
}

func TestBadCodeTextMentionsLength(t *testing.T) {
	if !strings.Contains(badCodeText(6), "6 digits") {
		t.Fatalf("got %q", badCodeText(6))
	}
}

func TestSavedText(t *testing.T) {
	if got := savedText(3); !strings.Contains(got, "3 saves left") {
		t.Fatalf("got %q", got)
	}
	if got := savedText(access.Unlimited); strings.Contains(got, "left") {
		t.Fatalf("owner variant leaks quota: %q", got)
	}
}

func TestDeniedTextSuggestsTokenForFree(t *testing.T) {
	reset := time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC)
	free := deniedText(reset, session.TierFree)
	if !strings.Contains(free, "/token") {
		t.Fatalf("free variant misses token hint: %q", free)
	}
	premium := deniedText(reset, session.TierPremium)
	if strings.Contains(premium, "/token") {
		t.Fatalf("premium variant suggests a token: %q", premium)
	}
}

func TestStatusText(t *testing.T) {
	st := saver.Status{
		State:        session.StateAuthenticated,
		Tier:         session.TierPremium,
		Remaining:    42,
		Limit:        100,
		ResetAt:      time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC),
		PremiumUntil: time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC),
	}
	got := statusText(st)
	for _, want := range []string{"connected", "premium", "42 of 100", "Premium until"} {
		if !strings.Contains(got, want) {
			t.Errorf("status text misses %q:\n%s", want, got)
		}
	}

	owner := statusText(saver.Status{Tier: session.TierOwner, Remaining: access.Unlimited})
	if !strings.Contains(owner, "unlimited") {
		t.Errorf("owner status misses unlimited:\n%s", owner)
	}
}
