package notify

import "sync"

// MemorySink records events in-process. Used in tests and when NATS is
// not configured.
type MemorySink struct {
	mu          sync.Mutex
	grouped     []GroupedEvent
	individual  []IndividualEvent
	GroupedErr  error
	IndivErr    error
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Grouped(ev GroupedEvent) error {
	if s.GroupedErr != nil {
		return s.GroupedErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grouped = append(s.grouped, ev)
	return nil
}

func (s *MemorySink) Individual(ev IndividualEvent) error {
	if s.IndivErr != nil {
		return s.IndivErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.individual = append(s.individual, ev)
	return nil
}

func (s *MemorySink) GroupedEvents() []GroupedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GroupedEvent(nil), s.grouped...)
}

func (s *MemorySink) IndividualEvents() []IndividualEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]IndividualEvent(nil), s.individual...)
}

// Reset clears recorded events between test phases.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grouped = nil
	s.individual = nil
}
