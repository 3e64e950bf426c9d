// Package checks implements the two-phase check lifecycle: an in-progress
// check on the PR event, reconciled into a completed check when CI
// finishes, coordinated only through the outstanding-check map.
package checks

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTTL bounds how long an outstanding entry waits for its CI
// completion. An hour covers worst-case CI lag comfortably.
const DefaultTTL = time.Hour

// Key identifies one phase-1 check awaiting reconciliation.
type Key struct {
	Repo       string
	PR         int
	HeadSHA    string
	PolicyHash string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%s:%s", k.Repo, k.PR, k.HeadSHA, k.PolicyHash)
}

type entry struct {
	checkID int64
	addedAt time.Time
}

// Store is the outstanding-check map. It is the only shared mutable state
// in the process; everything else is per-event.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

// NewStore creates a store and starts its background reaper.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		entries: map[string]entry{},
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go s.reap()
	return s
}

// Put records the check id published in phase one.
func (s *Store) Put(k Key, checkID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[k.String()] = entry{checkID: checkID, addedAt: time.Now()}
}

// Get returns the outstanding check id for a key, if one is still live.
func (s *Store) Get(k Key) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[k.String()]
	if !ok || time.Since(e.addedAt) > s.ttl {
		return 0, false
	}
	return e.checkID, true
}

// Delete evicts a key after its check is finalized.
func (s *Store) Delete(k Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, k.String())
}

// Len reports the number of live entries, for metrics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the reaper.
func (s *Store) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Store) reap() {
	ticker := time.NewTicker(s.ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if time.Since(e.addedAt) > s.ttl {
			delete(s.entries, k)
		}
	}
}
