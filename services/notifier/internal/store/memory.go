package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is the in-memory store used in tests and when the notifier
// runs without postgres.
type Memory struct {
	mu     sync.Mutex
	rows   []*Notification
	actors map[string]map[string]struct{} // notification id -> distinct actor ids
	events map[string]string              // event id -> notification id

	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		actors: make(map[string]map[string]struct{}),
		events: make(map[string]string),
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) UpsertGrouped(_ context.Context, in GroupedInput) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.events[in.EventID]; ok {
		return *m.byID(id), nil
	}

	now := m.Now()
	var row *Notification
	for _, r := range m.rows {
		if !r.Read && r.RecipientID == in.RecipientID && r.Kind == in.Kind && r.PostID == in.PostID {
			row = r
			break
		}
	}
	if row == nil {
		row = &Notification{
			ID:          uuid.NewString(),
			RecipientID: in.RecipientID,
			Kind:        in.Kind,
			PostID:      in.PostID,
			DeepLink:    in.DeepLink,
			CreatedAt:   now,
		}
		m.rows = append(m.rows, row)
		m.actors[row.ID] = make(map[string]struct{})
	}
	m.actors[row.ID][in.ActorID] = struct{}{}
	row.ActorName = in.ActorName
	row.ActorCount = len(m.actors[row.ID])
	row.Title = GroupedTitle(in.Kind, in.ActorName, row.ActorCount)
	row.Body = in.Preview
	row.UpdatedAt = now
	m.events[in.EventID] = row.ID
	return *row, nil
}

func (m *Memory) InsertIndividual(_ context.Context, in IndividualInput) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.events[in.EventID]; ok {
		return *m.byID(id), nil
	}

	now := m.Now()
	row := &Notification{
		ID:          uuid.NewString(),
		RecipientID: in.RecipientID,
		Kind:        in.Kind,
		Title:       in.Title,
		Body:        in.Body,
		PostID:      in.PostID,
		DeepLink:    in.DeepLink,
		ActorCount:  1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.rows = append(m.rows, row)
	m.events[in.EventID] = row.ID
	return *row, nil
}

func (m *Memory) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool, limit int) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Notification, 0)
	// newest first
	for i := len(m.rows) - 1; i >= 0; i-- {
		r := m.rows[i]
		if r.RecipientID != recipientID {
			continue
		}
		if unreadOnly && r.Read {
			continue
		}
		out = append(out, *r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkRead(_ context.Context, id, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.byID(id)
	if r == nil || r.RecipientID != recipientID {
		return ErrNotFound
	}
	r.Read = true
	r.UpdatedAt = m.Now()
	return nil
}

func (m *Memory) MarkAllRead(_ context.Context, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	for _, r := range m.rows {
		if r.RecipientID == recipientID && !r.Read {
			r.Read = true
			r.UpdatedAt = now
		}
	}
	return nil
}

func (m *Memory) byID(id string) *Notification {
	for _, r := range m.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// GroupedTitle renders the folded headline: "Aria liked your post",
// then "Aria and 2 others liked your post" as actors accumulate.
func GroupedTitle(kind, actorName string, actorCount int) string {
	verb := "commented on"
	if kind == "like" {
		verb = "liked"
	}
	if actorCount <= 1 {
		return fmt.Sprintf("%s %s your post", actorName, verb)
	}
	others := "other"
	if actorCount > 2 {
		others = "others"
	}
	return fmt.Sprintf("%s and %d %s %s your post", actorName, actorCount-1, others, verb)
}
