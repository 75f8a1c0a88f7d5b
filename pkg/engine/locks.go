package engine

import "sync"

// lockKey identifies one session's critical section.
type lockKey struct {
	spaceID   string
	sessionID string
}

// lockTable serializes mutations per (spaceID, sessionID). Entries are
// reference counted so the table does not grow with dead sessions.
type lockTable struct {
	mu    sync.Mutex
	locks map[lockKey]*sessionLock
}

type sessionLock struct {
	sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[lockKey]*sessionLock)}
}

// acquire blocks until the session's lock is held. The returned release
// function must be called exactly once.
func (t *lockTable) acquire(spaceID, sessionID string) (release func()) {
	key := lockKey{spaceID: spaceID, sessionID: sessionID}

	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sessionLock{}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}
