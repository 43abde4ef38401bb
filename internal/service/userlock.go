package service

import "sync"

// UserLocks serializes operations per user. Session transitions and
// moderation writes for the same subject share one instance, so a ban sweep
// can never interleave with an in-flight answer commit for that user.
type UserLocks struct {
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[uint64]*sync.Mutex)}
}

// Lock acquires the lock for the given internal user id and returns the
// unlock function. Locks are never evicted; the map grows with the user base,
// one mutex per user ever seen by this process.
func (l *UserLocks) Lock(internalID uint64) func() {
	l.mu.Lock()
	lock, ok := l.locks[internalID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[internalID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
