package engine

import (
	"context"
	"sync"
)

// Manager shares one session per (post, viewer) across concurrent
// consumers: the HTTP surface and any number of websocket streams. A
// session is torn down when its last holder releases it.
type Manager struct {
	eng *Engine

	mu       sync.Mutex
	sessions map[string]*held
}

type held struct {
	sess *Session
	refs int
}

func NewManager(eng *Engine) *Manager {
	return &Manager{eng: eng, sessions: make(map[string]*held)}
}

func key(postID, viewerID string) string { return postID + "\x00" + viewerID }

// Acquire returns the shared session for postID as viewerID, creating
// it on first use, plus a release func the caller must invoke exactly
// once when done.
func (m *Manager) Acquire(ctx context.Context, postID, viewerID string, opts SessionOptions) (*Session, func(), error) {
	k := key(postID, viewerID)

	m.mu.Lock()
	if h, ok := m.sessions[k]; ok {
		h.refs++
		m.mu.Unlock()
		if opts.DeepLinkTarget != "" {
			h.sess.HighlightTarget(opts.DeepLinkTarget)
		}
		return h.sess, m.releaseFunc(k), nil
	}
	m.mu.Unlock()

	sess, err := m.eng.NewSession(ctx, postID, viewerID, opts)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	if h, ok := m.sessions[k]; ok {
		// lost the race; keep the winner
		h.refs++
		m.mu.Unlock()
		sess.Close()
		if opts.DeepLinkTarget != "" {
			h.sess.HighlightTarget(opts.DeepLinkTarget)
		}
		return h.sess, m.releaseFunc(k), nil
	}
	m.sessions[k] = &held{sess: sess, refs: 1}
	m.mu.Unlock()
	return sess, m.releaseFunc(k), nil
}

func (m *Manager) releaseFunc(k string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			h, ok := m.sessions[k]
			if !ok {
				m.mu.Unlock()
				return
			}
			h.refs--
			if h.refs > 0 {
				m.mu.Unlock()
				return
			}
			delete(m.sessions, k)
			m.mu.Unlock()
			h.sess.Close()
		})
	}
}

// Close tears down every live session. Used on service shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, h := range m.sessions {
		all = append(all, h.sess)
	}
	m.sessions = make(map[string]*held)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
