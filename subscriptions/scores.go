package subscriptions

import "sync"

// Scores maps subscription id to its display score and remembers whether anything
// changed since the last check.
type Scores struct {
	values map[string]string
	mu     sync.Mutex
	dirty  bool
}

// NewScores creates an empty tracker.
func NewScores() *Scores {
	return &Scores{values: make(map[string]string)}
}

// Set records a score and reports whether it differs from the previous one.
func (s *Scores) Set(id, score string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[id] == score {
		return false
	}
	s.values[id] = score
	s.dirty = true
	return true
}

// Get returns the score for id.
func (s *Scores) Get(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[id]
}

// Delete forgets id.
func (s *Scores) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, id)
}

// HasChanges reports whether any score changed since the previous call, and clears the flag.
func (s *Scores) HasChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.dirty
	s.dirty = false
	return changed
}
