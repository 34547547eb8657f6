package engine

import (
	"context"

	"github.com/example/petcare-platform/services/engagement/internal/push"
)

// onPush folds a realtime created-row event into the session. The
// viewer's own rows are discarded: the confirmation path already
// handled them, and merging the echo would double-apply. Upsert makes
// redelivery harmless.
func (s *Session) onPush(ev push.Event) {
	if ev.AuthorID == s.viewer.ID {
		return
	}
	if s.isClosed() {
		return
	}

	ctx := context.Background()
	author := s.eng.profiles.Resolve(ctx, ev.AuthorID)
	c := confirmed(ev.Row, author, 0, false)
	// a redelivered row must not reset reactions the viewer already has
	if prev, ok := s.store.Get(c.ID); ok {
		c.LikeCount = prev.LikeCount
		c.ViewerHasLiked = prev.ViewerHasLiked
	}

	known := s.store.Len()
	s.store.Upsert(c)
	fresh := s.store.Len() > known

	if c.IsReply() {
		s.expandEmit(c.RootID())
	}
	if fresh {
		s.emit(Update{Type: UpdateCommentAdded, Comment: &c})
		if !c.IsReply() {
			s.emit(Update{Type: UpdateScrollBottom, TargetID: c.ID})
		}
	}

	// a deep-link target that was missing at load time may be this row
	s.pulse.Observe(c.ID, c.RootID(), s.expandEmit)
}
