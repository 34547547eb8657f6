package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores notifications relationally.
//
// Expected schema:
//
//	notifications(id uuid pk, recipient_id text, kind text, title text,
//	    body text, post_id text, deep_link text, actor_name text,
//	    actor_count int, read bool, created_at timestamptz,
//	    updated_at timestamptz)
//	notification_actors(notification_id uuid, actor_id text,
//	    primary key(notification_id, actor_id))
//	processed_events(event_id text pk, notification_id uuid,
//	    created_at timestamptz)
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ Store = (*Postgres)(nil)
var _ Store = (*Memory)(nil)

const notificationColumns = `id, recipient_id, kind, title, body, post_id, deep_link, actor_name, actor_count, read, created_at, updated_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.RecipientID, &n.Kind, &n.Title, &n.Body, &n.PostID,
		&n.DeepLink, &n.ActorName, &n.ActorCount, &n.Read, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (p *Postgres) UpsertGrouped(ctx context.Context, in GroupedInput) (Notification, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Notification{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	done, existing, err := p.claimEvent(ctx, tx, in.EventID)
	if err != nil {
		return Notification{}, err
	}
	if done {
		return existing, nil
	}

	var id string
	err = tx.QueryRow(ctx, `
		SELECT id FROM notifications
		WHERE recipient_id = $1 AND kind = $2 AND post_id = $3 AND NOT read
		ORDER BY created_at DESC LIMIT 1
		FOR UPDATE`, in.RecipientID, in.Kind, in.PostID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx, `
			INSERT INTO notifications
				(id, recipient_id, kind, title, body, post_id, deep_link, actor_name, actor_count, read, created_at, updated_at)
			VALUES (gen_random_uuid(), $1, $2, '', $3, $4, $5, $6, 0, false, now(), now())
			RETURNING id`,
			in.RecipientID, in.Kind, in.Preview, in.PostID, in.DeepLink, in.ActorName).Scan(&id)
	}
	if err != nil {
		return Notification{}, fmt.Errorf("grouped row: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO notification_actors (notification_id, actor_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, in.ActorID); err != nil {
		return Notification{}, fmt.Errorf("record actor: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `
		SELECT count(*) FROM notification_actors WHERE notification_id = $1`, id).Scan(&count); err != nil {
		return Notification{}, fmt.Errorf("count actors: %w", err)
	}

	n, err := scanNotification(tx.QueryRow(ctx, `
		UPDATE notifications
		SET title = $2, body = $3, actor_name = $4, actor_count = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+notificationColumns,
		id, GroupedTitle(in.Kind, in.ActorName, count), in.Preview, in.ActorName, count))
	if err != nil {
		return Notification{}, fmt.Errorf("fold grouped: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE processed_events SET notification_id = $2 WHERE event_id = $1`, in.EventID, id); err != nil {
		return Notification{}, fmt.Errorf("bind event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Notification{}, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func (p *Postgres) InsertIndividual(ctx context.Context, in IndividualInput) (Notification, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Notification{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	done, existing, err := p.claimEvent(ctx, tx, in.EventID)
	if err != nil {
		return Notification{}, err
	}
	if done {
		return existing, nil
	}

	n, err := scanNotification(tx.QueryRow(ctx, `
		INSERT INTO notifications
			(id, recipient_id, kind, title, body, post_id, deep_link, actor_name, actor_count, read, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, '', 1, false, now(), now())
		RETURNING `+notificationColumns,
		in.RecipientID, in.Kind, in.Title, in.Body, in.PostID, in.DeepLink))
	if err != nil {
		return Notification{}, fmt.Errorf("insert individual: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE processed_events SET notification_id = $2 WHERE event_id = $1`, in.EventID, n.ID); err != nil {
		return Notification{}, fmt.Errorf("bind event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Notification{}, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// claimEvent inserts the event id, reporting done=true when it was
// already processed and returning the notification it produced then.
func (p *Postgres) claimEvent(ctx context.Context, tx pgx.Tx, eventID string) (bool, Notification, error) {
	ct, err := tx.Exec(ctx, `
		INSERT INTO processed_events (event_id, created_at)
		VALUES ($1, now()) ON CONFLICT (event_id) DO NOTHING`, eventID)
	if err != nil {
		return false, Notification{}, fmt.Errorf("claim event: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return false, Notification{}, nil
	}
	n, err := scanNotification(tx.QueryRow(ctx, `
		SELECT `+notificationColumns+` FROM notifications n
		WHERE n.id = (SELECT notification_id FROM processed_events WHERE event_id = $1)`, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		// processed before the notification bind landed; treat as done
		return true, Notification{}, nil
	}
	if err != nil {
		return false, Notification{}, fmt.Errorf("processed lookup: %w", err)
	}
	return true, n, nil
}

func (p *Postgres) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = $1`
	if unreadOnly {
		q += ` AND NOT read`
	}
	q += ` ORDER BY updated_at DESC LIMIT $2`

	rows, err := p.pool.Query(ctx, q, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkRead(ctx context.Context, id, recipientID string) error {
	ct, err := p.pool.Exec(ctx, `
		UPDATE notifications SET read = true, updated_at = now()
		WHERE id = $1 AND recipient_id = $2 AND NOT read`, id, recipientID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := p.pool.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM notifications WHERE id = $1 AND recipient_id = $2)`,
			id, recipientID).Scan(&exists); err != nil {
			return fmt.Errorf("mark read check: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (p *Postgres) MarkAllRead(ctx context.Context, recipientID string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE notifications SET read = true, updated_at = now()
		WHERE recipient_id = $1 AND NOT read`, recipientID)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}
