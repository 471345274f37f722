package service

import "sync"

// seenSetCapacity bounds how many message IDs one subscription remembers.
// Far larger than any realistic burst between UI refreshes.
const seenSetCapacity = 512

// seenSet is a bounded recently-seen-id set, private to one subscription.
// When full it evicts the oldest entry, so a very old duplicate could in
// principle pass through again; the UI sorts by created_at, not arrival
// order, so that is harmless.
type seenSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	cap   int
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{
		ids: make(map[string]struct{}, capacity),
		cap: capacity,
	}
}

// Add records an ID, reporting true if it was not already present
func (s *seenSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}

	if len(s.order) >= s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}

	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Clear drops every remembered ID
func (s *seenSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{}, s.cap)
	s.order = nil
}
