package push

import (
	"context"
	"sync"
)

// MemoryFeed is the in-process channel used in tests and when NATS is
// not configured (single-instance development).
type MemoryFeed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler // postID -> subID -> handler
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[int]Handler)}
}

func (f *MemoryFeed) Subscribe(_ context.Context, postID string, h Handler) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[postID] == nil {
		f.subs[postID] = make(map[int]Handler)
	}
	id := f.nextID
	f.nextID++
	f.subs[postID][id] = h
	return &memorySubscription{feed: f, postID: postID, id: id}, nil
}

func (f *MemoryFeed) PublishCreated(_ context.Context, ev Event) error {
	f.mu.RLock()
	handlers := make([]Handler, 0, len(f.subs[ev.PostID]))
	for _, h := range f.subs[ev.PostID] {
		handlers = append(handlers, h)
	}
	f.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

type memorySubscription struct {
	feed   *MemoryFeed
	postID string
	id     int
	once   sync.Once
}

func (s *memorySubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()
		delete(s.feed.subs[s.postID], s.id)
	})
	return nil
}
