package session

import "sync"

// Store owns every live session. Lookup is guarded by a store-wide map
// lock that is never held across user work; mutation of a session happens
// under that session's own lock via Do, so users never contend with each
// other.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	ownerID  int64
}

// NewStore builds an empty store. ownerID marks the one user who is
// created with TierOwner; everyone else starts at TierFree.
func NewStore(ownerID int64) *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		ownerID:  ownerID,
	}
}

// Get returns the session for userID, creating it exactly once on first
// sight. Concurrent first messages from the same user observe the same
// session instance.
func (st *Store) Get(userID int64) *Session {
	st.mu.RLock()
	sess, ok := st.sessions[userID]
	st.mu.RUnlock()
	if ok {
		return sess
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok = st.sessions[userID]; ok {
		return sess
	}
	sess = &Session{UserID: userID}
	if userID == st.ownerID {
		sess.Tier = TierOwner
	}
	st.sessions[userID] = sess
	return sess
}

// Peek returns the session for userID without creating one.
func (st *Store) Peek(userID int64) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[userID]
	return sess, ok
}

// Delete removes the session for userID. A later message recreates it
// from scratch.
func (st *Store) Delete(userID int64) {
	st.mu.Lock()
	delete(st.sessions, userID)
	st.mu.Unlock()
}

// Do runs fn with exclusive ownership of userID's session. Operations for
// the same user run strictly one at a time in arrival order; operations
// for distinct users run concurrently.
func (st *Store) Do(userID int64, fn func(*Session) error) error {
	sess := st.Get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

// AbortPending cancels userID's in-flight identity-provider call, if any,
// without waiting for the session lock.
func (st *Store) AbortPending(userID int64) {
	if sess, ok := st.Peek(userID); ok {
		sess.AbortPending()
	}
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
