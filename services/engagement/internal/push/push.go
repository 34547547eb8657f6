// Package push carries the per-post feed of created comment rows.
// Confirmed writes are published here so every other viewer's merge
// engine folds them in without a read-refresh.
package push

import (
	"context"

	"github.com/example/petcare-platform/services/engagement/internal/backend"
)

// Event is the raw created-row payload. The consumer is responsible
// for author enrichment.
type Event struct {
	backend.Row
}

// Handler receives events for one subscribed post.
type Handler func(Event)

// Subscription is a cancellable handle owned by the subscriber's
// lifecycle. Unsubscribe must be safe to call more than once.
type Subscription interface {
	Unsubscribe() error
}

// Feed is the subscribe side of the channel.
type Feed interface {
	Subscribe(ctx context.Context, postID string, h Handler) (Subscription, error)
}

// Publisher is the publish side. Implementations are fire-and-forget
// toward live viewers; durability is not this channel's concern.
type Publisher interface {
	PublishCreated(ctx context.Context, ev Event) error
}
