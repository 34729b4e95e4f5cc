// Package lock provides per-player locking for quota mutations.
// All check-and-mutate sequences on one player's quota record run under
// that player's mutex; players never contend with each other.
package lock

import "sync"

// playerMutex wraps a mutex with reference counting for cleanup.
// refCount tracks holders plus waiters; the registry entry is evicted
// when it drops to zero.
type playerMutex struct {
	mu       sync.Mutex
	refCount int
}

// PlayerLock provides per-player locking to prevent race conditions
// during quota reads-modify-writes and play recording. Idle entries are
// recycled, so the registry stays bounded by the number of players
// currently in flight rather than ever seen.
type PlayerLock struct {
	mu    sync.Mutex
	locks map[string]*playerMutex
	pool  sync.Pool
}

// NewPlayerLock creates a new PlayerLock instance.
func NewPlayerLock() *PlayerLock {
	return &PlayerLock{
		locks: make(map[string]*playerMutex),
		pool: sync.Pool{
			New: func() any {
				return &playerMutex{}
			},
		},
	}
}

// acquire registers interest in a player's mutex, creating the entry if
// needed. The refCount is bumped under the registry guard so the entry
// cannot be evicted while this caller holds or waits on it.
func (pl *PlayerLock) acquire(studentNumber string) *playerMutex {
	pl.mu.Lock()
	lock, ok := pl.locks[studentNumber]
	if !ok {
		lock = pl.pool.Get().(*playerMutex)
		pl.locks[studentNumber] = lock
	}
	lock.refCount++
	pl.mu.Unlock()
	return lock
}

// release drops one reference, evicting and recycling the entry when
// nobody holds or waits on it anymore.
func (pl *PlayerLock) release(studentNumber string, lock *playerMutex) {
	pl.mu.Lock()
	lock.refCount--
	if lock.refCount == 0 {
		delete(pl.locks, studentNumber)
		pl.pool.Put(lock)
	}
	pl.mu.Unlock()
}

// Lock acquires the lock for a player.
// This must be held across any quota-mutating sequence.
func (pl *PlayerLock) Lock(studentNumber string) {
	pl.acquire(studentNumber).mu.Lock()
}

// Unlock releases the lock for a player.
func (pl *PlayerLock) Unlock(studentNumber string) {
	pl.mu.Lock()
	lock, ok := pl.locks[studentNumber]
	pl.mu.Unlock()
	if !ok {
		return
	}
	lock.mu.Unlock()
	pl.release(studentNumber, lock)
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (pl *PlayerLock) TryLock(studentNumber string) bool {
	lock := pl.acquire(studentNumber)
	if lock.mu.TryLock() {
		return true
	}
	pl.release(studentNumber, lock)
	return false
}

// WithLock executes a function while holding the player's lock.
func (pl *PlayerLock) WithLock(studentNumber string, fn func() error) error {
	pl.Lock(studentNumber)
	defer pl.Unlock(studentNumber)
	return fn()
}

// size returns the number of live registry entries.
func (pl *PlayerLock) size() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return len(pl.locks)
}
