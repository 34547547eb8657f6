package thread

import "sync"

// Store is the ordered, id-keyed comment collection for one post.
// Insertion order is stable: roots render oldest first, replies under a
// root render oldest first, and a provisional record keeps its position
// through id reconciliation. Upsert is idempotent and ReplaceID swaps
// ids in place, so arbitrary interleavings of optimistic confirms and
// realtime merges leave at most one record per durable id.
type Store struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Comment
}

func NewStore() *Store {
	return &Store{byID: make(map[string]Comment)}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) Get(id string) (Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	return c, ok
}

// All returns every comment in insertion order.
func (s *Store) All() []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Comment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Roots returns the root comments in insertion order.
func (s *Store) Roots() []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Comment
	for _, id := range s.order {
		if c := s.byID[id]; !c.IsReply() {
			out = append(out, c)
		}
	}
	return out
}

// ByParent returns the replies under rootID in insertion order.
func (s *Store) ByParent(rootID string) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Comment
	for _, id := range s.order {
		if c := s.byID[id]; c.IsReply() && *c.ParentID == rootID {
			out = append(out, c)
		}
	}
	return out
}

// Upsert inserts c, or overwrites in place (preserving order) when the
// id is already present.
func (s *Store) Upsert(c Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.byID[c.ID] = c
}

// Remove deletes the record and reports the list position it occupied,
// so a failed delete can be rolled back without reordering.
func (s *Store) Remove(id string) (Comment, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return Comment{}, 0, false
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return c, i, true
		}
	}
	return c, 0, true
}

// InsertAt restores a record at a specific list position. Positions
// past the end append.
func (s *Store) InsertAt(c Comment, idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ID]; ok {
		s.byID[c.ID] = c
		return
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.order) {
		s.order = append(s.order, c.ID)
	} else {
		s.order = append(s.order[:idx], append([]string{c.ID}, s.order[idx:]...)...)
	}
	s.byID[c.ID] = c
}

// ReplaceID swaps a provisional id for the durable record while
// preserving list position. Used exactly once per successful optimistic
// write. Returns false when the old id is gone (the record was removed
// before confirmation arrived).
func (s *Store) ReplaceID(oldID string, c Comment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[oldID]; !ok {
		return false
	}
	if _, dup := s.byID[c.ID]; dup && c.ID != oldID {
		// The durable id is already present (a merged echo won the
		// race). Drop the provisional slot so the id stays unique.
		delete(s.byID, oldID)
		for i, oid := range s.order {
			if oid == oldID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		s.byID[c.ID] = c
		return true
	}
	delete(s.byID, oldID)
	for i, oid := range s.order {
		if oid == oldID {
			s.order[i] = c.ID
			break
		}
	}
	s.byID[c.ID] = c
	return true
}
