package nostrclient

import "sync"

// seenIDs remembers the most recent event ids; relays often deliver the
// same event more than once.
type seenIDs struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	next  int
}

func newSeenIDs(capacity int) *seenIDs {
	return &seenIDs{ids: make(map[string]struct{}, capacity), order: make([]string, capacity)}
}

// Seen reports whether id was seen before and records it.
func (s *seenIDs) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return true
	}
	if old := s.order[s.next]; old != "" {
		delete(s.ids, old)
	}
	s.order[s.next] = id
	s.next = (s.next + 1) % len(s.order)
	s.ids[id] = struct{}{}
	return false
}
