package engine

import (
	"sync"
	"time"
)

// userLock serializes all mutating engine operations for one user. Entries
// expire after a quiet period so the map does not grow with the user base.
type userLock struct {
	mu      sync.Mutex
	expires time.Time
}

type lockTable struct {
	mu    sync.Mutex
	locks map[uint]*userLock
}

func newLockTable() *lockTable {
	return &lockTable{locks: map[uint]*userLock{}}
}

// acquire locks the given user's mutex and returns the unlock function.
// Operations for different users proceed in parallel.
func (t *lockTable) acquire(userID uint) func() {
	t.mu.Lock()
	t.cleanupLocked()
	l, ok := t.locks[userID]
	if !ok {
		l = &userLock{}
		t.locks[userID] = l
	}
	l.expires = time.Now().Add(10 * time.Minute)
	t.mu.Unlock()

	l.mu.Lock()
	return l.mu.Unlock
}

func (t *lockTable) cleanupLocked() {
	now := time.Now()
	for id, l := range t.locks {
		if now.After(l.expires) && l.mu.TryLock() {
			l.mu.Unlock()
			delete(t.locks, id)
		}
	}
}
