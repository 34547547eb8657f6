package backend

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/petcare-platform/services/engagement/internal/profile"
)

// Memory is the development/test implementation of Service. Error
// fields inject failures for exercising rollback and fallback paths.
type Memory struct {
	mu       sync.RWMutex
	comments map[string]Row
	order    []string
	likes    map[string]map[string]bool // commentID -> userID -> liked
	users    map[string]profile.Profile // userID -> profile
	owners   map[string]string          // postID -> ownerID

	CreateErr error
	UpdateErr error
	DeleteErr error
	LikeErr   error
	JoinErr   error // fails ListThread to force the fallback path
	ReadErr   error // fails ListComments too
}

func NewMemory() *Memory {
	return &Memory{
		comments: make(map[string]Row),
		likes:    make(map[string]map[string]bool),
		users:    make(map[string]profile.Profile),
		owners:   make(map[string]string),
	}
}

// AddUser seeds a user. Username lookup is case-insensitive.
func (m *Memory) AddUser(p profile.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[p.ID] = p
}

// AddPost seeds a post with its owner.
func (m *Memory) AddPost(postID, ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[postID] = ownerID
}

func (m *Memory) CreateComment(_ context.Context, postID, authorID, body string, parentID *string) (Created, error) {
	if m.CreateErr != nil {
		return Created{}, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row := Row{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  authorID,
		Body:      body,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}
	m.comments[row.ID] = row
	m.order = append(m.order, row.ID)
	return Created{ID: row.ID, CreatedAt: row.CreatedAt}, nil
}

func (m *Memory) UpdateComment(_ context.Context, id, authorID, body string) (time.Time, error) {
	if m.UpdateErr != nil {
		return time.Time{}, m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.comments[id]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	if row.AuthorID != authorID {
		return time.Time{}, ErrForbidden
	}
	now := time.Now().UTC()
	row.Body = body
	row.UpdatedAt = &now
	m.comments[id] = row
	return now, nil
}

func (m *Memory) DeleteComment(_ context.Context, id, authorID string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.comments[id]
	if !ok {
		return ErrNotFound
	}
	if row.AuthorID != authorID {
		return ErrForbidden
	}
	delete(m.comments, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) SetCommentLike(_ context.Context, commentID, userID string, liked bool) (int, error) {
	if m.LikeErr != nil {
		return 0, m.LikeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[commentID]; !ok {
		return 0, ErrNotFound
	}
	if m.likes[commentID] == nil {
		m.likes[commentID] = make(map[string]bool)
	}
	if liked {
		m.likes[commentID][userID] = true
	} else {
		delete(m.likes[commentID], userID)
	}
	return len(m.likes[commentID]), nil
}

func (m *Memory) ListThread(_ context.Context, postID, viewerID string) ([]ThreadRow, error) {
	if m.JoinErr != nil {
		return nil, m.JoinErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ThreadRow
	for _, id := range m.order {
		row := m.comments[id]
		if row.PostID != postID {
			continue
		}
		author, ok := m.users[row.AuthorID]
		if !ok {
			author = profile.Placeholder(row.AuthorID)
		}
		out = append(out, ThreadRow{
			Row:            row,
			Author:         author,
			LikeCount:      len(m.likes[id]),
			ViewerHasLiked: m.likes[id][viewerID],
		})
	}
	return out, nil
}

func (m *Memory) ListComments(_ context.Context, postID string) ([]Row, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Row
	for _, id := range m.order {
		if row := m.comments[id]; row.PostID == postID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *Memory) Profiles(_ context.Context, ids []string) (map[string]profile.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]profile.Profile)
	for _, id := range ids {
		if p, ok := m.users[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *Memory) UserIDsByUsername(_ context.Context, handles []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string)
	for _, h := range handles {
		for _, p := range m.users {
			if strings.EqualFold(p.Username, h) {
				out[h] = p.ID
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) PostOwner(_ context.Context, postID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.owners[postID]
	if !ok {
		return "", ErrNotFound
	}
	return owner, nil
}
