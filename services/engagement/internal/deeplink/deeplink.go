// Package deeplink owns the /<route>/<post>?comment_id=... contract:
// building links for outbound notifications and driving the highlight
// state machine when an inbound link targets a specific comment.
package deeplink

import (
	"errors"
	"net/url"
	"strings"
)

// ActionLike triggers a transient like-button pulse on the post,
// independent of any comment target.
const ActionLike = "like"

// Link is the decoded deep-link payload.
type Link struct {
	PostID    string
	CommentID string
	Action    string
}

// Build renders a deep link. commentID and action are optional.
func Build(route, postID, commentID, action string) string {
	var b strings.Builder
	b.WriteString("/")
	b.WriteString(strings.Trim(route, "/"))
	b.WriteString("/")
	b.WriteString(url.PathEscape(postID))

	q := url.Values{}
	if commentID != "" {
		q.Set("comment_id", commentID)
	}
	if action != "" {
		q.Set("action", action)
	}
	if len(q) > 0 {
		b.WriteString("?")
		b.WriteString(q.Encode())
	}
	return b.String()
}

// Parse decodes a deep link of the shape /<route>/<postID>?comment_id=<id>&action=<a>.
// The route segment is not validated; only the final path segment and
// the query parameters are contractual.
func Parse(raw string) (Link, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, err
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[len(segments)-1] == "" {
		return Link{}, errors.New("deep link missing post id")
	}
	postID, err := url.PathUnescape(segments[len(segments)-1])
	if err != nil {
		return Link{}, err
	}
	q := u.Query()
	return Link{
		PostID:    postID,
		CommentID: strings.TrimSpace(q.Get("comment_id")),
		Action:    strings.TrimSpace(q.Get("action")),
	}, nil
}
