// Package store persists delivered notifications. Grouped kinds fold
// repeat actions on the same post into one unread row; individual
// kinds always append.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("notification not found")

// Notification is one inbox row. For grouped rows ActorName is the
// most recent actor and ActorCount the number of distinct actors
// folded in so far.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	PostID      string    `json:"post_id"`
	DeepLink    string    `json:"deep_link"`
	ActorName   string    `json:"actor_name,omitempty"`
	ActorCount  int       `json:"actor_count,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GroupedInput folds into the recipient's unread row for the same
// (kind, post), creating it when absent.
type GroupedInput struct {
	EventID     string
	RecipientID string
	ActorID     string
	ActorName   string
	Kind        string
	PostID      string
	Preview     string
	DeepLink    string
}

// IndividualInput always creates a new row.
type IndividualInput struct {
	EventID     string
	RecipientID string
	ActorID     string
	Kind        string
	Title       string
	Body        string
	PostID      string
	DeepLink    string
}

// Store is the notifier's persistence boundary. Every write is keyed
// by the envelope's event id, so redelivered messages are no-ops.
type Store interface {
	UpsertGrouped(ctx context.Context, in GroupedInput) (Notification, error)
	InsertIndividual(ctx context.Context, in IndividualInput) (Notification, error)

	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) error
}
