package session

import (
	"sync"
	"testing"
)

func TestGetCreatesOnce(t *testing.T) {
	st := NewStore(0)
	a := st.Get(7)
	b := st.Get(7)
	if a != b {
		t.Fatal("expected the same session instance on repeated Get")
	}
	if st.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", st.Len())
	}
}

func TestGetConcurrentSameUser(t *testing.T) {
	st := NewStore(0)
	const workers = 32
	got := make([]*Session, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = st.Get(42)
		}()
	}
	wg.Wait()
	for i := 1; i < workers; i++ {
		if got[i] != got[0] {
			t.Fatal("concurrent Get returned distinct sessions")
		}
	}
}

func TestOwnerTierAssignedAtCreation(t *testing.T) {
	st := NewStore(99)
	if tier := st.Get(99).Tier; tier != TierOwner {
		t.Fatalf("owner session created with tier %v", tier)
	}
	if tier := st.Get(100).Tier; tier != TierFree {
		t.Fatalf("regular session created with tier %v", tier)
	}
}

func TestDoSerializesPerUser(t *testing.T) {
	st := NewStore(0)
	const n = 100
	var wg sync.WaitGroup
	for _i := 0; _i < n; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.Do(1, func(s *Session) error {
				s.DailyUsage++
				return nil
			})
		}()
	}
	wg.Wait()
	if got := st.Get(1).DailyUsage; got != n {
		t.Fatalf("expected %d serialized increments, got %d", n, got)
	}
}

func TestDoDistinctUsersIndependent(t *testing.T) {
	st := NewStore(0)
	const users = 100
	var wg sync.WaitGroup
	for id := int64(1); id <= users; id++ {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.Do(id, func(s *Session) error {
				s.DailyUsage = 1
				return nil
			})
		}()
	}
	wg.Wait()
	if st.Len() != users {
		t.Fatalf("expected %d sessions, got %d", users, st.Len())
	}
}

func TestDeleteThenGetStartsFresh(t *testing.T) {
	st := NewStore(0)
	sess := st.Get(5)
	sess.State = StateAuthenticated
	st.Delete(5)
	if st.Get(5).State != StateUnauthenticated {
		t.Fatal("recreated session should start unauthenticated")
	}
}

func TestInLoginConcurrentWithDo(t *testing.T) {
	st := NewStore(0)
	states := []AuthState{
		StateAwaitingPhone,
		StateAwaitingCode,
		StateAwaitingSecondFactor,
		StateAuthenticated,
		StateUnauthenticated,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = st.Do(4, func(s *Session) error {
				s.State = states[i%len(states)]
				return nil
			})
		}
	}()

	// Polling while the writer runs must not observe State outside the
	// session lock.
	for {
		select {
		case <-done:
			if st.Get(4).InLogin() {
				t.Fatal("final state must not report in login")
			}
			return
		default:
			st.Get(4).InLogin()
		}
	}
}

func TestAbortPendingInvokesCancel(t *testing.T) {
	st := NewStore(0)
	sess := st.Get(3)
	fired := false
	sess.SetPendingCancel(func() { fired = true })
	st.AbortPending(3)
	if !fired {
		t.Fatal("AbortPending did not invoke the registered cancel")
	}
	// Second abort is a no-op.
	st.AbortPending(3)
}

func TestAbortPendingUnknownUser(t *testing.T) {
	st := NewStore(0)
	st.AbortPending(12345) // must not create a session or panic
	if st.Len() != 0 {
		t.Fatal("AbortPending created a session")
	}
}
