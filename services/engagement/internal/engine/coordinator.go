package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/petcare-platform/services/engagement/internal/backend"
	"github.com/example/petcare-platform/services/engagement/internal/mention"
	"github.com/example/petcare-platform/services/engagement/internal/notify"
	"github.com/example/petcare-platform/services/engagement/internal/push"
	"github.com/example/petcare-platform/services/engagement/internal/thread"
)

// Submit creates a comment, optionally as a reply to replyToID. The
// comment appears locally at once in the pending state; confirmation
// swaps in the durable id in place, publishes the row to other viewers
// and fans out notifications. On a failed write the pending record is
// removed and ErrWriteFailed returned.
func (s *Session) Submit(ctx context.Context, body, replyToID string) (thread.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return thread.Comment{}, ErrEmptyContent
	}
	if s.isClosed() {
		return thread.Comment{}, ErrSessionDone
	}

	var parentID *string
	var replyToAuthor string
	if replyToID != "" {
		target, ok := s.store.Get(replyToID)
		if !ok {
			return thread.Comment{}, ErrNotFound
		}
		parentID = thread.FlattenParent(&target)
		// The flattened parent's id goes to the external create. A
		// pending parent only has a provisional id, which must not
		// leave the process; the author retries once it confirms.
		if parent, ok := s.store.Get(*parentID); !ok || parent.State == thread.StatePending {
			return thread.Comment{}, ErrPendingReply
		}
		replyToAuthor = target.AuthorID
	}

	pending := thread.Comment{
		ID:           s.eng.newID(),
		State:        thread.StatePending,
		PostID:       s.postID,
		AuthorID:     s.viewer.ID,
		AuthorName:   s.viewer.DisplayName,
		AuthorAvatar: s.viewer.AvatarURL,
		Body:         body,
		ParentID:     parentID,
		CreatedAt:    s.eng.now(),
	}
	s.store.Upsert(pending)
	if parentID != nil {
		s.expandEmit(*parentID)
	}
	s.emit(Update{Type: UpdateCommentAdded, Comment: &pending})
	if parentID == nil {
		s.emit(Update{Type: UpdateScrollBottom, TargetID: pending.ID})
	}

	created, err := s.eng.backend.CreateComment(ctx, s.postID, s.viewer.ID, body, parentID)
	if err != nil {
		if removed, _, ok := s.store.Remove(pending.ID); ok {
			s.emit(Update{Type: UpdateCommentRemoved, Comment: &removed})
		}
		return thread.Comment{}, fmt.Errorf("%w: create comment: %v", ErrWriteFailed, err)
	}

	confirmed := pending
	confirmed.ID = created.ID
	confirmed.State = thread.StateConfirmed
	confirmed.CreatedAt = created.CreatedAt

	if !s.store.ReplaceID(pending.ID, confirmed) {
		// The pending record was deleted before the write came back.
		// The row exists server-side now, but nothing further happens
		// on this session and no one is notified about it.
		s.eng.log.Info("confirmation arrived for removed comment",
			zap.String("comment_id", created.ID))
		return confirmed, nil
	}
	s.emit(Update{Type: UpdateCommentConfirmed, Comment: &confirmed, PreviousID: pending.ID})

	s.publishCreated(ctx, confirmed)
	s.fanOut(ctx, confirmed, replyToAuthor)
	return confirmed, nil
}

// Edit replaces the body of the viewer's own confirmed comment,
// optimistically, rolling back on a failed write. Pending comments
// cannot be edited; their id is not durable yet.
func (s *Session) Edit(ctx context.Context, id, body string) (thread.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return thread.Comment{}, ErrEmptyContent
	}
	if s.isClosed() {
		return thread.Comment{}, ErrSessionDone
	}
	prev, ok := s.store.Get(id)
	if !ok {
		return thread.Comment{}, ErrNotFound
	}
	if prev.AuthorID != s.viewer.ID {
		return thread.Comment{}, ErrForbidden
	}
	if prev.State == thread.StatePending {
		return thread.Comment{}, ErrPendingEdit
	}

	edited := prev
	edited.Body = body
	now := s.eng.now()
	edited.UpdatedAt = &now
	s.store.Upsert(edited)
	s.emit(Update{Type: UpdateCommentEdited, Comment: &edited})

	updatedAt, err := s.eng.backend.UpdateComment(ctx, id, s.viewer.ID, body)
	if err != nil {
		s.store.Upsert(prev)
		s.emit(Update{Type: UpdateCommentEdited, Comment: &prev})
		return thread.Comment{}, fmt.Errorf("%w: update comment: %v", ErrWriteFailed, err)
	}
	edited.UpdatedAt = &updatedAt
	s.store.Upsert(edited)
	return edited, nil
}

// Delete removes the viewer's own comment. A pending comment is a
// local-only record, so removal is purely local; a confirmed one is
// deleted externally with the local removal restored on failure.
func (s *Session) Delete(ctx context.Context, id string) error {
	if s.isClosed() {
		return ErrSessionDone
	}
	c, ok := s.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if c.AuthorID != s.viewer.ID {
		return ErrForbidden
	}

	removed, idx, _ := s.store.Remove(id)
	s.emit(Update{Type: UpdateCommentRemoved, Comment: &removed})
	if c.State == thread.StatePending {
		return nil
	}

	if err := s.eng.backend.DeleteComment(ctx, id, s.viewer.ID); err != nil {
		s.store.InsertAt(removed, idx)
		s.emit(Update{Type: UpdateCommentAdded, Comment: &removed})
		return fmt.Errorf("%w: delete comment: %v", ErrWriteFailed, err)
	}
	return nil
}

// ToggleLike flips the viewer's reaction on a comment, optimistically
// adjusting the count and reconciling with the authoritative count on
// success. Liking someone else's confirmed comment notifies its author.
func (s *Session) ToggleLike(ctx context.Context, id string) (thread.Comment, error) {
	if s.isClosed() {
		return thread.Comment{}, ErrSessionDone
	}
	prev, ok := s.store.Get(id)
	if !ok {
		return thread.Comment{}, ErrNotFound
	}

	liked := !prev.ViewerHasLiked
	next := prev
	next.ViewerHasLiked = liked
	if liked {
		next.LikeCount++
	} else if next.LikeCount > 0 {
		next.LikeCount--
	}
	s.store.Upsert(next)
	s.emit(Update{Type: UpdateLikeChanged, Comment: &next})

	count, err := s.eng.backend.SetCommentLike(ctx, id, s.viewer.ID, liked)
	if err != nil {
		s.store.Upsert(prev)
		s.emit(Update{Type: UpdateLikeChanged, Comment: &prev})
		return thread.Comment{}, fmt.Errorf("%w: set comment like: %v", ErrWriteFailed, err)
	}
	next.LikeCount = count
	s.store.Upsert(next)

	if liked && prev.State == thread.StateConfirmed {
		s.eng.dispatcher.Dispatch([]notify.Intent{{
			RecipientID: prev.AuthorID,
			Kind:        notify.KindCommentLike,
			PostID:      s.postID,
			CommentID:   id,
		}}, s.viewer, prev.Body)
	}
	return next, nil
}

// LikePost fires the grouped like notification toward the post owner.
// The reaction write itself belongs to the posts service; this session
// only owns the engagement side effects.
func (s *Session) LikePost(ctx context.Context) {
	owner, err := s.eng.backend.PostOwner(ctx, s.postID)
	if err != nil {
		s.eng.log.Warn("post owner lookup failed", zap.String("post_id", s.postID), zap.Error(err))
		return
	}
	s.eng.dispatcher.PostLiked(owner, s.postID, s.viewer, "")
}

func (s *Session) publishCreated(ctx context.Context, c thread.Comment) {
	if s.eng.publisher == nil {
		return
	}
	ev := push.Event{Row: backend.Row{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		Body:      c.Body,
		ParentID:  c.ParentID,
		CreatedAt: c.CreatedAt,
	}}
	if err := s.eng.publisher.PublishCreated(ctx, ev); err != nil {
		s.eng.log.Warn("push publish failed", zap.String("comment_id", c.ID), zap.Error(err))
	}
}

// fanOut resolves and dispatches notification intents for a confirmed
// comment. Everything here is best-effort: a failure is logged and the
// authored comment stands.
func (s *Session) fanOut(ctx context.Context, c thread.Comment, replyToAuthor string) {
	owner, err := s.eng.backend.PostOwner(ctx, s.postID)
	if err != nil {
		s.eng.log.Warn("post owner lookup failed", zap.String("post_id", s.postID), zap.Error(err))
		owner = ""
	}
	intents := s.eng.mentions.Resolve(ctx, mention.Input{
		PostID:          s.postID,
		PostOwnerID:     owner,
		CommentID:       c.ID,
		AuthorID:        c.AuthorID,
		Body:            c.Body,
		ReplyToAuthorID: replyToAuthor,
	})
	s.eng.dispatcher.Dispatch(intents, s.viewer, c.Body)
}
