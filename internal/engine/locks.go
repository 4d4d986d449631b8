package engine

import (
	"errors"
	"sync"
)

// ErrScopeBusy is returned when an analysis run is already in flight for the
// requested scope. Concurrent runs for the same scope would race on the same
// group_stats and listing_analysis keys.
var ErrScopeBusy = errors.New("analysis run already in flight for scope")

// scopeLocks is the in-process single-flight registry. Runs for disjoint
// scopes proceed concurrently.
type scopeLocks struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{active: make(map[string]struct{})}
}

// acquire reserves a scope, reporting false when it is already held.
func (s *scopeLocks) acquire(scope string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[scope]; busy {
		return false
	}
	s.active[scope] = struct{}{}
	return true
}

func (s *scopeLocks) release(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, scope)
}
