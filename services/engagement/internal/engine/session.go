package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/example/petcare-platform/services/engagement/internal/backend"
	"github.com/example/petcare-platform/services/engagement/internal/deeplink"
	"github.com/example/petcare-platform/services/engagement/internal/profile"
	"github.com/example/petcare-platform/services/engagement/internal/push"
	"github.com/example/petcare-platform/services/engagement/internal/thread"
)

// UpdateType labels a change pushed to session listeners.
type UpdateType string

const (
	UpdateCommentAdded     UpdateType = "comment_added"
	UpdateCommentConfirmed UpdateType = "comment_confirmed"
	UpdateCommentEdited    UpdateType = "comment_edited"
	UpdateCommentRemoved   UpdateType = "comment_removed"
	UpdateLikeChanged      UpdateType = "like_changed"
	UpdateThreadExpanded   UpdateType = "thread_expanded"
	UpdateThreadCollapsed  UpdateType = "thread_collapsed"
	UpdateHighlight        UpdateType = "highlight"
	UpdateHighlightCleared UpdateType = "highlight_cleared"
	UpdateScrollBottom     UpdateType = "scroll_bottom"
)

// Update is delivered to listeners in apply order. For
// UpdateCommentConfirmed, PreviousID carries the provisional id the
// listener should swap out.
type Update struct {
	Type       UpdateType      `json:"type"`
	Comment    *thread.Comment `json:"comment,omitempty"`
	TargetID   string          `json:"target_id,omitempty"`
	PreviousID string          `json:"previous_id,omitempty"`
}

type Listener func(Update)

// Session holds the thread state for one viewer on one post. All
// mutations and realtime merges flow through it so every listener sees
// the same ordered stream of updates.
type Session struct {
	eng     *Engine
	postID  string
	viewer  profile.Profile
	store   *thread.Store
	expand  *thread.ExpansionState
	pulse   *deeplink.Controller

	mu        sync.Mutex
	closed    bool
	listeners map[int]Listener
	nextID    int
	sub       push.Subscription
}

// SessionOptions tunes a single session. DeepLinkTarget is the
// comment_id extracted from the entry URL, if any.
type SessionOptions struct {
	DeepLinkTarget string
}

// NewSession loads the thread for postID as seen by viewerID and
// subscribes to the realtime feed. Read failures degrade to a flat or
// empty thread; they never fail the session.
func (e *Engine) NewSession(ctx context.Context, postID, viewerID string, opts SessionOptions) (*Session, error) {
	if postID == "" || viewerID == "" {
		return nil, ErrNotFound
	}
	s := &Session{
		eng:       e,
		postID:    postID,
		viewer:    e.profiles.Resolve(ctx, viewerID),
		store:     thread.NewStore(),
		expand:    thread.NewExpansionState(),
		listeners: map[int]Listener{},
	}
	s.pulse = deeplink.NewController(e.dwell,
		func(id string) { s.emit(Update{Type: UpdateHighlight, TargetID: id}) },
		func(id string) { s.emit(Update{Type: UpdateHighlightCleared, TargetID: id}) },
	)

	s.load(ctx, viewerID)

	if opts.DeepLinkTarget != "" {
		s.pulse.SetTarget(opts.DeepLinkTarget)
		s.pulse.ThreadLoaded(s.findRoot, s.expandEmit)
	}

	sub, err := e.feed.Subscribe(ctx, postID, s.onPush)
	if err != nil {
		// the thread still works, it just will not receive live events
		e.log.Warn("realtime subscribe failed", zap.String("post_id", postID), zap.Error(err))
	} else {
		s.sub = sub
	}
	return s, nil
}

// load fills the store from the joined read, falling back to the flat
// read plus a separate profile fetch when the join is unavailable.
func (s *Session) load(ctx context.Context, viewerID string) {
	rows, err := s.eng.backend.ListThread(ctx, s.postID, viewerID)
	if err == nil {
		authors := make([]profile.Profile, 0, len(rows))
		for _, r := range rows {
			if r.Author.Username != "" {
				// placeholders stay out of the cache so a later
				// resolve can still find the real profile
				authors = append(authors, r.Author)
			}
			s.store.Upsert(confirmed(r.Row, r.Author, r.LikeCount, r.ViewerHasLiked))
		}
		s.eng.profiles.Warm(ctx, authors)
		return
	}
	s.eng.log.Warn("joined thread read failed, falling back", zap.String("post_id", s.postID), zap.Error(err))

	flat, err := s.eng.backend.ListComments(ctx, s.postID)
	if err != nil {
		s.eng.log.Error("thread read failed, starting empty", zap.String("post_id", s.postID), zap.Error(err))
		return
	}
	ids := make([]string, 0, len(flat))
	for _, r := range flat {
		ids = append(ids, r.AuthorID)
	}
	profs, err := s.eng.backend.Profiles(ctx, ids)
	if err != nil {
		s.eng.log.Warn("profile fetch failed, using placeholders", zap.Error(err))
		profs = nil
	}
	for _, r := range flat {
		author, ok := profs[r.AuthorID]
		if !ok {
			author = profile.Placeholder(r.AuthorID)
		} else {
			s.eng.profiles.Warm(ctx, []profile.Profile{author})
		}
		s.store.Upsert(confirmed(r, author, 0, false))
	}
}

// confirmed builds the store shape for a row that exists server-side.
func confirmed(r backend.Row, author profile.Profile, likes int, viewerLiked bool) thread.Comment {
	return thread.Comment{
		ID:             r.ID,
		State:          thread.StateConfirmed,
		PostID:         r.PostID,
		AuthorID:       r.AuthorID,
		AuthorName:     author.DisplayName,
		AuthorAvatar:   author.AvatarURL,
		Body:           r.Body,
		ParentID:       r.ParentID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		LikeCount:      likes,
		ViewerHasLiked: viewerLiked,
	}
}

// AddListener registers fn for subsequent updates and returns a
// removal func.
func (s *Session) AddListener(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) emit(u Update) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// findRoot reports where the deep-link target lives: the root id for a
// reply, the comment's own id for a root.
func (s *Session) findRoot(id string) (string, bool) {
	c, ok := s.store.Get(id)
	if !ok {
		return "", false
	}
	return c.RootID(), true
}

func (s *Session) expandEmit(rootID string) {
	if s.expand.IsExpanded(rootID) {
		return
	}
	s.expand.Expand(rootID)
	s.emit(Update{Type: UpdateThreadExpanded, TargetID: rootID})
}

// Expand, Collapse and Toggle manage reply visibility per root.
func (s *Session) Expand(rootID string) { s.expandEmit(rootID) }

func (s *Session) Collapse(rootID string) {
	if !s.expand.IsExpanded(rootID) {
		return
	}
	s.expand.Collapse(rootID)
	s.emit(Update{Type: UpdateThreadCollapsed, TargetID: rootID})
}

func (s *Session) Toggle(rootID string) bool {
	open := s.expand.Toggle(rootID)
	if open {
		s.emit(Update{Type: UpdateThreadExpanded, TargetID: rootID})
	} else {
		s.emit(Update{Type: UpdateThreadCollapsed, TargetID: rootID})
	}
	return open
}

// HighlightTarget arms the deep-link pulse for id against the already
// loaded thread. A miss keeps the target armed for late arrivals.
func (s *Session) HighlightTarget(id string) {
	s.pulse.SetTarget(id)
	s.pulse.ThreadLoaded(s.findRoot, s.expandEmit)
}

// Close tears the session down. Further mutations return
// ErrSessionDone and pending confirmations no longer touch state.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.listeners = map[int]Listener{}
	s.mu.Unlock()

	s.pulse.Cancel()
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			s.eng.log.Warn("unsubscribe failed", zap.String("post_id", s.postID), zap.Error(err))
		}
	}
}

// RootView is one top-level comment with its flattened replies.
type RootView struct {
	thread.Comment
	Expanded bool             `json:"expanded"`
	Replies  []thread.Comment `json:"replies"`
}

// ThreadView is the renderable snapshot of the session.
type ThreadView struct {
	PostID   string     `json:"post_id"`
	Comments []RootView `json:"comments"`
}

// View assembles the current snapshot: roots in insertion order, each
// carrying its replies and expansion flag.
func (s *Session) View() ThreadView {
	v := ThreadView{PostID: s.postID, Comments: []RootView{}}
	for _, root := range s.store.Roots() {
		v.Comments = append(v.Comments, RootView{
			Comment:  root,
			Expanded: s.expand.IsExpanded(root.ID),
			Replies:  s.store.ByParent(root.ID),
		})
	}
	return v
}
