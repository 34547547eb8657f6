// Package notify delivers the notification fan-out for confirmed
// engagement actions. Delivery is best-effort: a failed dispatch is
// logged and never rolls back or blocks the comment write.
package notify

import "unicode/utf8"

// Kind classifies a notification.
type Kind string

const (
	KindReply       Kind = "reply"
	KindMention     Kind = "mention"
	KindComment     Kind = "comment"
	KindCommentLike Kind = "comment_like"
	KindLike        Kind = "like"
)

// Grouped reports whether the kind goes through the aggregating sink
// ("X and N others ...") rather than point-to-point delivery.
func (k Kind) Grouped() bool {
	return k == KindLike || k == KindComment
}

// Intent is the ephemeral fan-out decision for one recipient. A single
// authoring action produces at most one intent per recipient.
type Intent struct {
	RecipientID string
	Kind        Kind
	PostID      string
	CommentID   string
}

// GroupedEvent is the aggregation-call payload. The sink collapses
// repeated actors; the client's only duties are the self-action skip
// and a stable preview.
type GroupedEvent struct {
	RecipientID   string `json:"recipient_id"`
	ActorID       string `json:"actor_id"`
	Kind          Kind   `json:"kind"`
	PostID        string `json:"post_id"`
	ActorName     string `json:"actor_name"`
	Preview       string `json:"preview"`
	DeepLink      string `json:"deep_link"`
	FallbackTitle string `json:"fallback_title"`
}

// IndividualEvent is a point-to-point notification record.
type IndividualEvent struct {
	RecipientID string         `json:"recipient_id"`
	ActorID     string         `json:"actor_id"`
	Kind        Kind           `json:"kind"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Data        IndividualData `json:"data"`
}

type IndividualData struct {
	PostID   string `json:"post_id"`
	DeepLink string `json:"deep_link"`
}

// Sink is the delivery boundary.
type Sink interface {
	Grouped(ev GroupedEvent) error
	Individual(ev IndividualEvent) error
}

// previewLimit is the preview length grouped entries render with,
// regardless of which caller produced them.
const previewLimit = 30

// Preview truncates s for grouped rendering, marking the cut with an
// ellipsis.
func Preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:previewLimit]) + "…"
}
