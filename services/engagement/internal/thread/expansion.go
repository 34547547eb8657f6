package thread

import "sync"

// ExpansionState tracks which root comments currently show their
// replies. It is view state, but the engine owns it because replying
// and deep-link highlighting both force roots open.
type ExpansionState struct {
	mu   sync.RWMutex
	open map[string]struct{}
}

func NewExpansionState() *ExpansionState {
	return &ExpansionState{open: make(map[string]struct{})}
}

func (e *ExpansionState) Expand(rootID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open[rootID] = struct{}{}
}

func (e *ExpansionState) Collapse(rootID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.open, rootID)
}

func (e *ExpansionState) Toggle(rootID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.open[rootID]; ok {
		delete(e.open, rootID)
		return false
	}
	e.open[rootID] = struct{}{}
	return true
}

func (e *ExpansionState) IsExpanded(rootID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.open[rootID]
	return ok
}

func (e *ExpansionState) Expanded() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.open))
	for id := range e.open {
		out = append(out, id)
	}
	return out
}
