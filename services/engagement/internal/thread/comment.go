// Package thread holds the per-post comment collection and its view
// state. One Store and one ExpansionState exist per open thread; they
// are the single source of truth for rendering.
package thread

import (
	"encoding/json"
	"time"
)

// State tags a comment as provisional or durable. A pending comment
// carries a locally assigned id that the backing store has never seen;
// a confirmed comment carries the durable id the store issued.
type State uint8

const (
	StatePending State = iota
	StateConfirmed
)

func (s State) String() string {
	if s == StatePending {
		return "pending"
	}
	return "confirmed"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == "pending" {
		*s = StatePending
	} else {
		*s = StateConfirmed
	}
	return nil
}

// Comment is one node in a two-level reply tree attached to a post.
// Author fields are denormalized at authoring time and may go stale.
type Comment struct {
	ID             string     `json:"id"`
	State          State      `json:"state"`
	PostID         string     `json:"post_id"`
	AuthorID       string     `json:"author_id"`
	AuthorName     string     `json:"author_name"`
	AuthorAvatar   string     `json:"author_avatar,omitempty"`
	Body           string     `json:"body"`
	ParentID       *string    `json:"parent_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	LikeCount      int        `json:"like_count"`
	ViewerHasLiked bool       `json:"viewer_has_liked"`
}

func (c Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}

// RootID is the id of the thread root: the parent for a reply, the
// comment itself for a root comment.
func (c Comment) RootID() string {
	if c.IsReply() {
		return *c.ParentID
	}
	return c.ID
}

func (c Comment) Edited() bool {
	return c.UpdatedAt != nil && !c.UpdatedAt.Equal(c.CreatedAt)
}

// FlattenParent computes the parent id for a new reply. Replying to a
// reply re-parents onto the ancestor root, so the tree never exceeds
// two levels. A nil target means a root comment.
func FlattenParent(target *Comment) *string {
	if target == nil {
		return nil
	}
	root := target.RootID()
	return &root
}
