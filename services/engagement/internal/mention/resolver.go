// Package mention computes the notification fan-out for a
// just-confirmed comment: explicit reply target, implicit root owner,
// and free-text @username mentions, deduplicated so one authoring
// action never notifies the same user twice.
package mention

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/example/petcare-platform/services/engagement/internal/notify"
)

var handlePattern = regexp.MustCompile(`@([\w.-]+)`)

// Lookup resolves usernames to user ids. Unknown handles are simply
// absent from the result, never an error.
type Lookup interface {
	UserIDsByUsername(ctx context.Context, handles []string) (map[string]string, error)
}

// Input describes one confirmed comment. CommentID is always the
// durable id; provisional ids never reach fan-out.
type Input struct {
	PostID      string
	PostOwnerID string
	CommentID   string
	AuthorID    string
	Body        string
	// ReplyToAuthorID is the author of the specific comment the user
	// tapped "Reply" on; empty for root comments.
	ReplyToAuthorID string
}

type Resolver struct {
	users Lookup
	log   *zap.Logger
}

func NewResolver(users Lookup, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{users: users, log: log}
}

// Resolve produces at most one intent per recipient, priority
// reply > comment-root-owner > mention. Replying to someone who is
// also @-mentioned in the same message yields a single reply intent.
func (r *Resolver) Resolve(ctx context.Context, in Input) []notify.Intent {
	var intents []notify.Intent
	excluded := map[string]struct{}{in.AuthorID: {}}

	if in.ReplyToAuthorID != "" {
		if _, skip := excluded[in.ReplyToAuthorID]; !skip {
			intents = append(intents, notify.Intent{
				RecipientID: in.ReplyToAuthorID,
				Kind:        notify.KindReply,
				PostID:      in.PostID,
				CommentID:   in.CommentID,
			})
			excluded[in.ReplyToAuthorID] = struct{}{}
		}
	} else if in.PostOwnerID != "" {
		if _, skip := excluded[in.PostOwnerID]; !skip {
			intents = append(intents, notify.Intent{
				RecipientID: in.PostOwnerID,
				Kind:        notify.KindComment,
				PostID:      in.PostID,
				CommentID:   in.CommentID,
			})
			excluded[in.PostOwnerID] = struct{}{}
		}
	}

	handles := Handles(in.Body)
	if len(handles) == 0 {
		return intents
	}
	resolved, err := r.users.UserIDsByUsername(ctx, handles)
	if err != nil {
		// Mention delivery is best-effort; the reply/owner intents
		// above still stand.
		r.log.Warn("mention lookup failed", zap.Error(err))
		return intents
	}
	for _, h := range handles {
		uid, ok := resolved[h]
		if !ok {
			continue // unresolvable handle, silently skipped
		}
		if _, skip := excluded[uid]; skip {
			continue
		}
		intents = append(intents, notify.Intent{
			RecipientID: uid,
			Kind:        notify.KindMention,
			PostID:      in.PostID,
			CommentID:   in.CommentID,
		})
		excluded[uid] = struct{}{}
	}
	return intents
}

// Handles extracts the distinct @-mention handles from body, in order
// of first appearance. Distinctness is case-insensitive, matching the
// lookup's equality rule.
func Handles(body string) []string {
	matches := handlePattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		key := strings.ToLower(m[1])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m[1])
	}
	return out
}
