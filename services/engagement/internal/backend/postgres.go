package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/petcare-platform/services/engagement/internal/profile"
)

// Postgres persists comments, likes and lookups in Postgres.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) CreateComment(ctx context.Context, postID, authorID, body string, parentID *string) (Created, error) {
	const q = `INSERT INTO comments (post_id, author_id, body, parent_id)
	           VALUES ($1, $2, $3, $4)
	           RETURNING id, created_at`
	var out Created
	err := s.pool.QueryRow(ctx, q, postID, authorID, body, parentID).Scan(&out.ID, &out.CreatedAt)
	return out, err
}

func (s *Postgres) UpdateComment(ctx context.Context, id, authorID, body string) (time.Time, error) {
	const q = `UPDATE comments SET body = $1, updated_at = now()
	           WHERE id = $2 AND author_id = $3
	           RETURNING updated_at`
	var updated time.Time
	err := s.pool.QueryRow(ctx, q, body, id, authorID).Scan(&updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	return updated, err
}

func (s *Postgres) DeleteComment(ctx context.Context, id, authorID string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1 AND author_id = $2`, id, authorID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) SetCommentLike(ctx context.Context, commentID, userID string, liked bool) (int, error) {
	var err error
	if liked {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO comment_likes (comment_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			commentID, userID)
	} else {
		_, err = s.pool.Exec(ctx,
			`DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`,
			commentID, userID)
	}
	if err != nil {
		return 0, err
	}
	var count int
	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM comment_likes WHERE comment_id = $1`, commentID).Scan(&count)
	return count, err
}

func (s *Postgres) ListThread(ctx context.Context, postID, viewerID string) ([]ThreadRow, error) {
	const q = `SELECT c.id, c.post_id, c.author_id, c.body, c.parent_id, c.created_at, c.updated_at,
	                  u.username, u.display_name, COALESCE(u.avatar_url, ''),
	                  (SELECT count(*) FROM comment_likes l WHERE l.comment_id = c.id),
	                  EXISTS(SELECT 1 FROM comment_likes l WHERE l.comment_id = c.id AND l.user_id = $2)
	           FROM comments c
	           JOIN users u ON u.id = c.author_id
	           WHERE c.post_id = $1
	           ORDER BY c.created_at ASC, c.id ASC`
	rows, err := s.pool.Query(ctx, q, postID, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ThreadRow
	for rows.Next() {
		var tr ThreadRow
		if err := rows.Scan(&tr.ID, &tr.PostID, &tr.AuthorID, &tr.Body, &tr.ParentID,
			&tr.CreatedAt, &tr.UpdatedAt,
			&tr.Author.Username, &tr.Author.DisplayName, &tr.Author.AvatarURL,
			&tr.LikeCount, &tr.ViewerHasLiked); err != nil {
			return nil, err
		}
		tr.Author.ID = tr.AuthorID
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *Postgres) ListComments(ctx context.Context, postID string) ([]Row, error) {
	const q = `SELECT id, post_id, author_id, body, parent_id, created_at, updated_at
	           FROM comments
	           WHERE post_id = $1
	           ORDER BY created_at ASC, id ASC`
	rows, err := s.pool.Query(ctx, q, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.PostID, &r.AuthorID, &r.Body, &r.ParentID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Postgres) Profiles(ctx context.Context, ids []string) (map[string]profile.Profile, error) {
	if len(ids) == 0 {
		return map[string]profile.Profile{}, nil
	}
	const q = `SELECT id, username, display_name, COALESCE(avatar_url, '')
	           FROM users WHERE id = ANY($1)`
	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]profile.Profile, len(ids))
	for rows.Next() {
		var p profile.Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.DisplayName, &p.AvatarURL); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (s *Postgres) UserIDsByUsername(ctx context.Context, handles []string) (map[string]string, error) {
	if len(handles) == 0 {
		return map[string]string{}, nil
	}
	lowered := make([]string, len(handles))
	for i, h := range handles {
		lowered[i] = strings.ToLower(h)
	}
	const q = `SELECT lower(username), id FROM users WHERE lower(username) = ANY($1)`
	rows, err := s.pool.Query(ctx, q, lowered)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byLower := make(map[string]string)
	for rows.Next() {
		var uname, id string
		if err := rows.Scan(&uname, &id); err != nil {
			return nil, err
		}
		byLower[uname] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]string)
	for _, h := range handles {
		if id, ok := byLower[strings.ToLower(h)]; ok {
			out[h] = id
		}
	}
	return out, nil
}

func (s *Postgres) PostOwner(ctx context.Context, postID string) (string, error) {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT owner_id FROM posts WHERE id = $1`, postID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return owner, err
}

// interface guard
var _ Service = (*Postgres)(nil)
var _ Service = (*Memory)(nil)
