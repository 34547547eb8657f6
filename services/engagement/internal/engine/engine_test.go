package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/petcare-platform/services/engagement/internal/backend"
	"github.com/example/petcare-platform/services/engagement/internal/deeplink"
	"github.com/example/petcare-platform/services/engagement/internal/mention"
	"github.com/example/petcare-platform/services/engagement/internal/notify"
	"github.com/example/petcare-platform/services/engagement/internal/profile"
	"github.com/example/petcare-platform/services/engagement/internal/push"
	"github.com/example/petcare-platform/services/engagement/internal/thread"
)

type fixture struct {
	eng  *Engine
	be   *backend.Memory
	feed *push.MemoryFeed
	sink *notify.MemorySink
}

func newFixture() *fixture {
	be := backend.NewMemory()
	be.AddUser(profile.Profile{ID: "u-alice", Username: "alice", DisplayName: "Alice"})
	be.AddUser(profile.Profile{ID: "u-bob", Username: "bob", DisplayName: "Bob"})
	be.AddUser(profile.Profile{ID: "u-carol", Username: "carol", DisplayName: "Carol"})
	be.AddPost("p1", "u-alice")

	feed := push.NewMemoryFeed()
	sink := notify.NewMemorySink()
	eng := New(Options{
		Backend:    be,
		Profiles:   profile.NewResolver(be, nil, nil),
		Feed:       feed,
		Publisher:  feed,
		Dispatcher: notify.NewDispatcher(sink, "posts", nil),
		Mentions:   mention.NewResolver(be, nil),
	})
	return &fixture{eng: eng, be: be, feed: feed, sink: sink}
}

func (f *fixture) session(t *testing.T, viewerID string) *Session {
	t.Helper()
	s, err := f.eng.NewSession(context.Background(), "p1", viewerID, SessionOptions{})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) record(u Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recorder) types() []UpdateType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]UpdateType, len(r.updates))
	for i, u := range r.updates {
		out[i] = u.Type
	}
	return out
}

func (r *recorder) has(t UpdateType) bool {
	for _, got := range r.types() {
		if got == t {
			return true
		}
	}
	return false
}

func TestSubmitConfirmsInPlace(t *testing.T) {
	f := newFixture()
	f.eng.newID = func() string { return "tmp-1" }
	s := f.session(t, "u-bob")
	var rec recorder
	s.AddListener(rec.record)

	c, err := s.Submit(context.Background(), "so cute!", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if c.State != thread.StateConfirmed {
		t.Fatalf("state = %v, want confirmed", c.State)
	}
	if c.ID == "tmp-1" {
		t.Fatal("durable id was not swapped in")
	}

	types := rec.types()
	if len(types) < 3 || types[0] != UpdateCommentAdded || types[1] != UpdateScrollBottom || types[2] != UpdateCommentConfirmed {
		t.Fatalf("update order = %v", types)
	}
	rec.mu.Lock()
	conf := rec.updates[2]
	rec.mu.Unlock()
	if conf.PreviousID != "tmp-1" {
		t.Fatalf("confirmed PreviousID = %q", conf.PreviousID)
	}

	v := s.View()
	if len(v.Comments) != 1 || v.Comments[0].ID != c.ID {
		t.Fatalf("view = %+v", v.Comments)
	}
}

func TestSubmitEmptyRejected(t *testing.T) {
	f := newFixture()
	s := f.session(t, "u-bob")
	if _, err := s.Submit(context.Background(), "   \n ", ""); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
}

func TestSubmitRollbackOnFailure(t *testing.T) {
	f := newFixture()
	f.be.CreateErr = errors.New("backend down")
	s := f.session(t, "u-bob")
	var rec recorder
	s.AddListener(rec.record)

	_, err := s.Submit(context.Background(), "hello", "")
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("err = %v, want ErrWriteFailed", err)
	}
	if n := len(s.View().Comments); n != 0 {
		t.Fatalf("comments after rollback = %d, want 0", n)
	}
	if !rec.has(UpdateCommentRemoved) {
		t.Fatalf("missing removal update, got %v", rec.types())
	}
	if len(f.sink.GroupedEvents())+len(f.sink.IndividualEvents()) != 0 {
		t.Fatal("failed write must not notify")
	}
}

func TestReplyToReplyFlattensToRoot(t *testing.T) {
	f := newFixture()
	alice := f.session(t, "u-alice")
	root, err := alice.Submit(context.Background(), "first", "")
	if err != nil {
		t.Fatalf("root: %v", err)
	}

	bob := f.session(t, "u-bob")
	reply, err := bob.Submit(context.Background(), "second", root.ID)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}

	carol := f.session(t, "u-carol")
	nested, err := carol.Submit(context.Background(), "third", reply.ID)
	if err != nil {
		t.Fatalf("nested: %v", err)
	}
	if nested.ParentID == nil || *nested.ParentID != root.ID {
		t.Fatalf("nested parent = %v, want root %s", nested.ParentID, root.ID)
	}

	v := carol.View()
	if len(v.Comments) != 1 {
		t.Fatalf("roots = %d, want 1", len(v.Comments))
	}
	if len(v.Comments[0].Replies) != 2 {
		t.Fatalf("replies under root = %d, want 2", len(v.Comments[0].Replies))
	}
	if !v.Comments[0].Expanded {
		t.Fatal("replying must expand the root")
	}
}

func TestReplyToPendingParentRejected(t *testing.T) {
	f := newFixture()
	s := f.session(t, "u-bob")
	s.store.Upsert(thread.Comment{
		ID: "tmp-root", State: thread.StatePending, PostID: "p1",
		AuthorID: "u-bob", Body: "in flight", CreatedAt: time.Now(),
	})

	// the external create would otherwise receive "tmp-root" as parent_id
	f.be.CreateErr = errors.New("must not be called")
	if _, err := s.Submit(context.Background(), "quick reply", "tmp-root"); !errors.Is(err, ErrPendingReply) {
		t.Fatalf("err = %v, want ErrPendingReply", err)
	}
	if n := s.store.Len(); n != 1 {
		t.Fatalf("store len = %d, want the pending root only", n)
	}
}

func TestReplyToPendingReplyUnderConfirmedRoot(t *testing.T) {
	f := newFixture()
	s := f.session(t, "u-bob")
	root, err := s.Submit(context.Background(), "root", "")
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	pendingReply := thread.Comment{
		ID: "tmp-reply", State: thread.StatePending, PostID: "p1",
		AuthorID: "u-bob", Body: "in flight", ParentID: &root.ID, CreatedAt: time.Now(),
	}
	s.store.Upsert(pendingReply)

	// flattening lands on the confirmed root, so the durable parent id
	// is available and the reply may proceed
	c, err := s.Submit(context.Background(), "nested", "tmp-reply")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if c.ParentID == nil || *c.ParentID != root.ID {
		t.Fatalf("parent = %v, want confirmed root %s", c.ParentID, root.ID)
	}
}

func TestRealtimeMergeForOtherViewers(t *testing.T) {
	f := newFixture()
	alice := f.session(t, "u-alice")
	var rec recorder
	alice.AddListener(rec.record)

	bob := f.session(t, "u-bob")
	c, err := bob.Submit(context.Background(), "live one", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	v := alice.View()
	if len(v.Comments) != 1 || v.Comments[0].ID != c.ID {
		t.Fatalf("alice view = %+v", v.Comments)
	}
	if got := v.Comments[0].AuthorName; got != "Bob" {
		t.Fatalf("merged author = %q, want enriched %q", got, "Bob")
	}
	if !rec.has(UpdateCommentAdded) || !rec.has(UpdateScrollBottom) {
		t.Fatalf("alice updates = %v", rec.types())
	}
}

func TestMergeIdempotentOnRedelivery(t *testing.T) {
	f := newFixture()
	s := f.session(t, "u-alice")
	ev := push.Event{Row: backend.Row{
		ID: "c-9", PostID: "p1", AuthorID: "u-bob", Body: "hi", CreatedAt: time.Now(),
	}}
	s.onPush(ev)
	s.onPush(ev)
	if n := len(s.View().Comments); n != 1 {
		t.Fatalf("comments after redelivery = %d, want 1", n)
	}
}

func TestMergeRedeliveryKeepsReactionState(t *testing.T) {
	f := newFixture()
	s := f.session(t, "u-alice")
	ev := push.Event{Row: backend.Row{
		ID: "c-9", PostID: "p1", AuthorID: "u-bob", Body: "hi", CreatedAt: time.Now(),
	}}
	s.onPush(ev)

	liked, _ := s.store.Get("c-9")
	liked.LikeCount = 2
	liked.ViewerHasLiked = true
	s.store.Upsert(liked)

	s.onPush(ev)
	got, _ := s.store.Get("c-9")
	if got.LikeCount != 2 || !got.ViewerHasLiked {
		t.Fatalf("redelivery reset reactions: count=%d liked=%v", got.LikeCount, got.ViewerHasLiked)
	}
}

func TestMergeDiscardsSelfEcho(t *testing.T) {
	f := newFixture()
	s := f.session(t, "u-bob")
	s.onPush(push.Event{Row: backend.Row{
		ID: "c-9", PostID: "p1", AuthorID: "u-bob", Body: "echo", CreatedAt: time.Now(),
	}})
	if n := len(s.View().Comments); n != 0 {
		t.Fatalf("self echo merged, comments = %d", n)
	}
}

func TestRootCommentNotifiesPostOwnerGrouped(t *testing.T) {
	f := newFixture()
	bob := f.session(t, "u-bob")
	c, err := bob.Submit(context.Background(), "what a good dog, honestly the best", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	grouped := f.sink.GroupedEvents()
	if len(grouped) != 1 {
		t.Fatalf("grouped events = %d, want 1", len(grouped))
	}
	ev := grouped[0]
	if ev.RecipientID != "u-alice" || ev.Kind != notify.KindComment {
		t.Fatalf("event = %+v", ev)
	}
	if !strings.Contains(ev.DeepLink, c.ID) {
		t.Fatalf("deep link %q lacks durable id %s", ev.DeepLink, c.ID)
	}
	if !strings.HasSuffix(ev.Preview, "…") {
		t.Fatalf("long body preview = %q, want truncated", ev.Preview)
	}
}

func TestReplyBeatsMentionOfSameUser(t *testing.T) {
	f := newFixture()
	bob := f.session(t, "u-bob")
	root, err := bob.Submit(context.Background(), "look at this", "")
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	f.sink.Reset()

	carol := f.session(t, "u-carol")
	if _, err := carol.Submit(context.Background(), "@bob totally agree", root.ID); err != nil {
		t.Fatalf("reply: %v", err)
	}

	indiv := f.sink.IndividualEvents()
	if len(indiv) != 1 {
		t.Fatalf("individual events = %d, want exactly 1: %+v", len(indiv), indiv)
	}
	if indiv[0].RecipientID != "u-bob" || indiv[0].Kind != notify.KindReply {
		t.Fatalf("event = %+v, want reply to bob", indiv[0])
	}
	if len(f.sink.GroupedEvents()) != 0 {
		t.Fatal("reply must not also notify the post owner")
	}
}

func TestOwnPostCommentNeverNotifiesSelf(t *testing.T) {
	f := newFixture()
	alice := f.session(t, "u-alice")
	if _, err := alice.Submit(context.Background(), "thanks everyone", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if n := len(f.sink.GroupedEvents()) + len(f.sink.IndividualEvents()); n != 0 {
		t.Fatalf("self action produced %d notifications", n)
	}
}

func TestMentionsNotifyEachUserOnce(t *testing.T) {
	f := newFixture()
	carol := f.session(t, "u-carol")
	if _, err := carol.Submit(context.Background(), "cc @bob @BOB @alice", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// alice gets the owner intent, which wins over her mention
	if len(f.sink.GroupedEvents()) != 1 {
		t.Fatalf("grouped = %+v", f.sink.GroupedEvents())
	}
	indiv := f.sink.IndividualEvents()
	if len(indiv) != 1 || indiv[0].RecipientID != "u-bob" || indiv[0].Kind != notify.KindMention {
		t.Fatalf("individual = %+v, want one mention to bob", indiv)
	}
}

func TestEditRollsBackOnFailure(t *testing.T) {
	f := newFixture()
	s := f.session(t, "u-bob")
	c, err := s.Submit(context.Background(), "original", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	f.be.UpdateErr = errors.New("backend down")
	if _, err := s.Edit(context.Background(), c.ID, "edited"); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("err = %v, want ErrWriteFailed", err)
	}
	got, _ := s.store.Get(c.ID)
	if got.Body != "original" || got.Edited() {
		t.Fatalf("after rollback body = %q edited = %v", got.Body, got.Edited())
	}
}

func TestEditPendingRejected(t *testing.T) {
	f := newFixture()
	s := f.session(t, "u-bob")
	s.store.Upsert(thread.Comment{
		ID: "tmp-7", State: thread.StatePending, PostID: "p1",
		AuthorID: "u-bob", Body: "in flight", CreatedAt: time.Now(),
	})
	if _, err := s.Edit(context.Background(), "tmp-7", "changed"); !errors.Is(err, ErrPendingEdit) {
		t.Fatalf("err = %v, want ErrPendingEdit", err)
	}
}

func TestEditOthersCommentForbidden(t *testing.T) {
	f := newFixture()
	alice := f.session(t, "u-alice")
	c, err := alice.Submit(context.Background(), "mine", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	bob := f.session(t, "u-bob")
	if _, err := bob.Edit(context.Background(), c.ID, "hijack"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestDeletePendingIsLocalOnly(t *testing.T) {
	f := newFixture()
	s := f.session(t, "u-bob")
	s.store.Upsert(thread.Comment{
		ID: "tmp-7", State: thread.StatePending, PostID: "p1",
		AuthorID: "u-bob", Body: "in flight", CreatedAt: time.Now(),
	})

	// an external delete would fail loudly; a pending delete must not
	// reach the backend at all
	f.be.DeleteErr = errors.New("must not be called")
	if err := s.Delete(context.Background(), "tmp-7"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.store.Get("tmp-7"); ok {
		t.Fatal("pending comment still present")
	}
}

func TestDeleteRestoresPositionOnFailure(t *testing.T) {
	f := newFixture()
	s := f.session(t, "u-bob")
	first, _ := s.Submit(context.Background(), "first", "")
	second, _ := s.Submit(context.Background(), "second", "")
	if _, err := s.Submit(context.Background(), "third", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	f.be.DeleteErr = errors.New("backend down")
	if err := s.Delete(context.Background(), second.ID); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("err = %v, want ErrWriteFailed", err)
	}
	v := s.View()
	if len(v.Comments) != 3 || v.Comments[0].ID != first.ID || v.Comments[1].ID != second.ID {
		t.Fatalf("order after restore = %+v", v.Comments)
	}
}

func TestToggleLikeReconcilesAndNotifies(t *testing.T) {
	f := newFixture()
	alice := f.session(t, "u-alice")
	c, err := alice.Submit(context.Background(), "pic of rex", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	f.sink.Reset()

	bob := f.session(t, "u-bob")
	liked, err := bob.ToggleLike(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if !liked.ViewerHasLiked || liked.LikeCount != 1 {
		t.Fatalf("liked = %+v", liked)
	}
	indiv := f.sink.IndividualEvents()
	if len(indiv) != 1 || indiv[0].Kind != notify.KindCommentLike || indiv[0].RecipientID != "u-alice" {
		t.Fatalf("like events = %+v", indiv)
	}

	f.sink.Reset()
	unliked, err := bob.ToggleLike(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if unliked.ViewerHasLiked || unliked.LikeCount != 0 {
		t.Fatalf("unliked = %+v", unliked)
	}
	if n := len(f.sink.IndividualEvents()); n != 0 {
		t.Fatalf("unlike produced %d notifications", n)
	}
}

func TestToggleLikeRollbackOnFailure(t *testing.T) {
	f := newFixture()
	s := f.session(t, "u-bob")
	c, err := s.Submit(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	f.be.LikeErr = errors.New("backend down")
	if _, err := s.ToggleLike(context.Background(), c.ID); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("err = %v, want ErrWriteFailed", err)
	}
	got, _ := s.store.Get(c.ID)
	if got.ViewerHasLiked || got.LikeCount != 0 {
		t.Fatalf("after rollback = %+v", got)
	}
}

func TestLikePostNotifiesOwnerGrouped(t *testing.T) {
	f := newFixture()
	bob := f.session(t, "u-bob")
	bob.LikePost(context.Background())

	grouped := f.sink.GroupedEvents()
	if len(grouped) != 1 || grouped[0].Kind != notify.KindLike || grouped[0].RecipientID != "u-alice" {
		t.Fatalf("grouped = %+v", grouped)
	}
	if !strings.Contains(grouped[0].DeepLink, "action=like") {
		t.Fatalf("deep link = %q, want like action", grouped[0].DeepLink)
	}
}

func TestDeepLinkHighlightsOnLoad(t *testing.T) {
	f := newFixture()
	seed := f.session(t, "u-alice")
	root, _ := seed.Submit(context.Background(), "root", "")
	reply, err := seed.Submit(context.Background(), "reply", root.ID)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	s, err := f.eng.NewSession(context.Background(), "p1", "u-bob", SessionOptions{DeepLinkTarget: reply.ID})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)

	if !s.expand.IsExpanded(root.ID) {
		t.Fatal("deep link into a reply must expand its root")
	}
	if s.pulse.Phase() != deeplink.PhaseHighlighted {
		t.Fatalf("phase = %v, want highlighted", s.pulse.Phase())
	}
}

func TestDeepLinkTargetArrivingLate(t *testing.T) {
	f := newFixture()
	s, err := f.eng.NewSession(context.Background(), "p1", "u-bob", SessionOptions{DeepLinkTarget: "c-late"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)
	var rec recorder
	s.AddListener(rec.record)

	s.onPush(push.Event{Row: backend.Row{
		ID: "c-late", PostID: "p1", AuthorID: "u-carol", Body: "late", CreatedAt: time.Now(),
	}})
	if !rec.has(UpdateHighlight) {
		t.Fatalf("late arrival did not highlight, updates = %v", rec.types())
	}
}

func TestClosedSessionRejectsMutations(t *testing.T) {
	f := newFixture()
	s := f.session(t, "u-bob")
	s.Close()
	if _, err := s.Submit(context.Background(), "hi", ""); !errors.Is(err, ErrSessionDone) {
		t.Fatalf("err = %v, want ErrSessionDone", err)
	}
}

func TestManagerSharesAndReleasesSessions(t *testing.T) {
	f := newFixture()
	m := NewManager(f.eng)

	a, releaseA, err := m.Acquire(context.Background(), "p1", "u-bob", SessionOptions{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	b, releaseB, err := m.Acquire(context.Background(), "p1", "u-bob", SessionOptions{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if a != b {
		t.Fatal("same post and viewer must share a session")
	}

	releaseA()
	if a.isClosed() {
		t.Fatal("session closed while still held")
	}
	releaseB()
	releaseB() // idempotent
	if !a.isClosed() {
		t.Fatal("session not closed after last release")
	}
}
