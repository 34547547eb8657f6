// Package engine is the comment & reaction sync engine: one shared
// implementation of optimistic local mutation, realtime remote merge
// and notification fan-out, consumed by every view through a narrow
// session interface.
package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/petcare-platform/services/engagement/internal/backend"
	"github.com/example/petcare-platform/services/engagement/internal/mention"
	"github.com/example/petcare-platform/services/engagement/internal/notify"
	"github.com/example/petcare-platform/services/engagement/internal/profile"
	"github.com/example/petcare-platform/services/engagement/internal/push"
)

var (
	ErrEmptyContent = errors.New("comment content must not be empty")
	ErrNotFound     = errors.New("comment not found")
	ErrForbidden    = errors.New("not the author")
	ErrPendingEdit  = errors.New("comment is awaiting confirmation and cannot be edited")
	// ErrPendingReply rejects a reply whose parent has no durable id
	// yet; a provisional id must never leave the process.
	ErrPendingReply = errors.New("comment is awaiting confirmation and cannot be replied to")
	ErrSessionDone  = errors.New("session is closed")
	// ErrWriteFailed wraps a failed external write. The optimistic
	// mutation has already been rolled back; the caller surfaces a
	// dismissable notice.
	ErrWriteFailed = errors.New("write failed")
)

// Options wires the engine's collaborators. Everything is injected;
// there is no package-level client.
type Options struct {
	Backend    backend.Service
	Profiles   *profile.Resolver
	Feed       push.Feed
	Publisher  push.Publisher
	Dispatcher *notify.Dispatcher
	Mentions   *mention.Resolver
	Logger     *zap.Logger

	// HighlightDwell is how long a deep-link pulse stays applied.
	HighlightDwell time.Duration
}

type Engine struct {
	backend    backend.Service
	profiles   *profile.Resolver
	feed       push.Feed
	publisher  push.Publisher
	dispatcher *notify.Dispatcher
	mentions   *mention.Resolver
	log        *zap.Logger
	dwell      time.Duration

	// test seams
	now   func() time.Time
	newID func() string
}

func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	dwell := opts.HighlightDwell
	if dwell <= 0 {
		dwell = 3 * time.Second
	}
	return &Engine{
		backend:    opts.Backend,
		profiles:   opts.Profiles,
		feed:       opts.Feed,
		publisher:  opts.Publisher,
		dispatcher: opts.Dispatcher,
		mentions:   opts.Mentions,
		log:        log,
		dwell:      dwell,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}
