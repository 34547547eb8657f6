package deeplink

import (
	"sync"
	"time"
)

// Phase is the highlight controller state.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseLocating
	PhaseHighlighted
)

// Controller applies a timed visual pulse to a deep-linked comment:
// IDLE -> LOCATING once a target arrives and the thread has loaded,
// HIGHLIGHTED when the element is found (ancestor expanded, pulse
// applied), back to IDLE after the dwell time. A target that never
// appears falls back to IDLE silently.
type Controller struct {
	mu     sync.Mutex
	dwell  time.Duration
	phase  Phase
	target string
	timer  *time.Timer

	onHighlight func(id string)
	onClear     func(id string)
}

func NewController(dwell time.Duration, onHighlight, onClear func(id string)) *Controller {
	if dwell <= 0 {
		dwell = 3 * time.Second
	}
	if onHighlight == nil {
		onHighlight = func(string) {}
	}
	if onClear == nil {
		onClear = func(string) {}
	}
	return &Controller{dwell: dwell, onHighlight: onHighlight, onClear: onClear}
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// SetTarget records the comment id requested by an external link. The
// machine stays idle until ThreadLoaded reports the initial load done.
func (c *Controller) SetTarget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = id
}

// ThreadLoaded runs the locate step. find maps a comment id to its
// root id; expand reveals a collapsed ancestor. A missing target is a
// silent no-op (the comment may have been deleted).
func (c *Controller) ThreadLoaded(find func(id string) (rootID string, ok bool), expand func(rootID string)) {
	c.mu.Lock()
	if c.target == "" || c.phase != PhaseIdle {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseLocating
	target := c.target
	c.mu.Unlock()

	rootID, ok := find(target)
	if !ok {
		// Silent no-op: the comment may have been deleted. The target
		// is kept so a late realtime arrival can still complete the
		// pulse via Observe.
		c.mu.Lock()
		c.phase = PhaseIdle
		c.mu.Unlock()
		return
	}
	if rootID != "" && rootID != target && expand != nil {
		expand(rootID)
	}
	c.highlight(target)
}

// Observe lets the realtime merge path complete a pending locate when
// the targeted comment arrives after the initial load. Returns true
// when the highlight fired.
func (c *Controller) Observe(id, rootID string, expand func(rootID string)) bool {
	c.mu.Lock()
	if c.target == "" || id != c.target || c.phase == PhaseHighlighted {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	if rootID != "" && rootID != id && expand != nil {
		expand(rootID)
	}
	c.highlight(id)
	return true
}

// Cancel stops a pending pulse timer. Called on session teardown.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.phase = PhaseIdle
	c.target = ""
}

func (c *Controller) highlight(id string) {
	c.mu.Lock()
	c.phase = PhaseHighlighted
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.dwell, func() {
		c.mu.Lock()
		c.phase = PhaseIdle
		c.target = ""
		c.timer = nil
		c.mu.Unlock()
		c.onClear(id)
	})
	c.mu.Unlock()
	c.onHighlight(id)
}
