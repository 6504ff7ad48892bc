// Package coordination holds the scheduling primitives shared by the engines:
// per-community mutexes for ledger read-modify-write units, the debounced
// reconcile trigger registry, and redis-based sweep leadership for
// multi-instance deployments.
package coordination

import "sync"

// CommunityLocks is a registry of per-community mutexes. Every unit of work
// that reads-then-writes a ledger row must hold the community's lock for the
// duration of the read-modify-write. External calls (roster fetch, label
// mutation, DM delivery) must never happen under a held lock.
type CommunityLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewCommunityLocks() *CommunityLocks {
	return &CommunityLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the community's mutex and returns its release function.
// Lock entries are created lazily and never removed; the set of communities
// is small and stable.
func (l *CommunityLocks) Acquire(communityID string) (release func()) {
	l.mu.Lock()
	m, ok := l.locks[communityID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[communityID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
