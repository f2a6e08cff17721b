package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// LockToken identifies a logical owner of RecursiveTimedMutex across
// nested acquisitions. Go has no portable way to introspect "the
// current goroutine", so reentrancy is modeled explicitly: a caller
// that may re-enter a locked section passes the same token it used for
// the outer acquisition. The audio callback and each control-plane
// caller (MIDI input, a host command handler, a test harness) each get
// their own token via NewLockToken.
type LockToken struct{ id uint64 }

var nextTokenID uint64

// NewLockToken returns a fresh, comparable owner identity.
func NewLockToken() LockToken {
	return LockToken{id: atomic.AddUint64(&nextTokenID, 1)}
}

// RecursiveTimedMutex is the engine-wide lock: it protects
// engine state, both transport positions, the playing/next pattern
// sets, the note queues, the driver pointer and nextBpm. It supports
// bounded-wait acquisition (the callback's one concession to realtime
// safety) and reentrant acquisition by the same LockToken.
type RecursiveTimedMutex struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	held   bool
	owner  LockToken
	depth  int
	siteOf string // call-site annotation, debug builds only
}

// NewRecursiveTimedMutex returns an unlocked mutex.
func NewRecursiveTimedMutex() *RecursiveTimedMutex {
	return &RecursiveTimedMutex{sem: semaphore.NewWeighted(1)}
}

// TryLockFor attempts to acquire the lock for owner within timeout. It
// returns true on success (including a reentrant acquisition by the
// same owner already holding it) and false if the timeout elapsed
// first — the caller is expected to skip the current buffer rather
// than treat this as a fatal error.
func (m *RecursiveTimedMutex) TryLockFor(ctx context.Context, timeout time.Duration, owner LockToken) bool {
	m.mu.Lock()
	if m.held && m.owner == owner {
		m.depth++
		m.mu.Unlock()
		return true
	}
	m.mu.Unlock()

	if !m.sem.TryAcquire(1) {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := m.sem.Acquire(cctx, 1); err != nil {
			return false
		}
	}

	m.mu.Lock()
	m.held = true
	m.owner = owner
	m.depth = 1
	m.siteOf = captureCallSite()
	m.mu.Unlock()
	return true
}

// Lock acquires unconditionally (no deadline), for control-plane
// mutators outside the audio thread's bounded-wait path.
func (m *RecursiveTimedMutex) Lock(owner LockToken) {
	m.TryLockFor(context.Background(), time.Duration(1<<62), owner)
}

// Unlock releases one level of owner's acquisition. A mismatched
// owner (a bug: unlocking a lock you never locked) is a no-op rather
// than a panic, since the audio thread must never unwind across this
// boundary.
func (m *RecursiveTimedMutex) Unlock(owner LockToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held || m.owner != owner {
		return
	}
	m.depth--
	if m.depth == 0 {
		m.held = false
		m.siteOf = ""
		m.sem.Release(1)
	}
}

// CallSite returns the file:line:function of the current holder's
// outermost acquisition, captured only in debug_locks builds.
func (m *RecursiveTimedMutex) CallSite() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.siteOf
}
