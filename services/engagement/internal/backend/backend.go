// Package backend defines the boundary the engagement engine consumes:
// the relational comment store, author/username lookups, and post
// ownership. The engine never talks to a global client singleton; an
// implementation is injected at construction time.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/example/petcare-platform/services/engagement/internal/profile"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("not the author")
)

// Created is the acknowledgement returned by a successful create.
type Created struct {
	ID        string
	CreatedAt time.Time
}

// Row is the raw created-row shape, as carried on the push channel and
// by the no-join fallback read. Author enrichment is the engine's job.
type Row struct {
	ID        string     `json:"id"`
	PostID    string     `json:"post_id"`
	AuthorID  string     `json:"author_id"`
	Body      string     `json:"body"`
	ParentID  *string    `json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ThreadRow is one comment joined with its author and the viewer's
// reaction summary, ordered by creation time ascending.
type ThreadRow struct {
	Row
	Author         profile.Profile
	LikeCount      int
	ViewerHasLiked bool
}

// Service is the full boundary contract.
type Service interface {
	CreateComment(ctx context.Context, postID, authorID, body string, parentID *string) (Created, error)
	UpdateComment(ctx context.Context, id, authorID, body string) (time.Time, error)
	DeleteComment(ctx context.Context, id, authorID string) error
	SetCommentLike(ctx context.Context, commentID, userID string, liked bool) (int, error)

	// ListThread is the joined read. When it fails, callers fall back
	// to ListComments plus a batch Profiles lookup, merged client-side.
	ListThread(ctx context.Context, postID, viewerID string) ([]ThreadRow, error)
	ListComments(ctx context.Context, postID string) ([]Row, error)

	Profiles(ctx context.Context, ids []string) (map[string]profile.Profile, error)
	UserIDsByUsername(ctx context.Context, handles []string) (map[string]string, error)
	PostOwner(ctx context.Context, postID string) (string, error)
}
