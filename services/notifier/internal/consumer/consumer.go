// Package consumer drains the durable notification stream and writes
// inbox rows. Redelivered messages are absorbed by the store's
// event-id idempotency, so ack failures are harmless.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/petcare-platform/services/notifier/internal/store"
)

const (
	subjectGrouped    = "notify.grouped"
	subjectIndividual = "notify.individual"
	durableName       = "notifier"
)

// Envelope matches the wire frame published by the engagement service.
type Envelope struct {
	EventID   string          `json:"event_id"`
	CreatedAt string          `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

type groupedEvent struct {
	RecipientID string `json:"recipient_id"`
	ActorID     string `json:"actor_id"`
	Kind        string `json:"kind"`
	PostID      string `json:"post_id"`
	ActorName   string `json:"actor_name"`
	Preview     string `json:"preview"`
	DeepLink    string `json:"deep_link"`
}

type individualEvent struct {
	RecipientID string `json:"recipient_id"`
	ActorID     string `json:"actor_id"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Data        struct {
		PostID   string `json:"post_id"`
		DeepLink string `json:"deep_link"`
	} `json:"data"`
}

type Options struct {
	BatchSize int
	MaxWait   time.Duration
}

type Consumer struct {
	store store.Store
	log   *zap.Logger
	batch int
	wait  time.Duration
}

func New(st store.Store, log *zap.Logger, opts Options) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 100
	}
	wait := opts.MaxWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &Consumer{store: st, log: log, batch: batch, wait: wait}
}

// Run pulls batches from the notify stream until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, nc *nats.Conn) error {
	js, err := nc.JetStream()
	if err != nil {
		return err
	}
	sub, err := js.PullSubscribe("notify.>", durableName)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := sub.Fetch(c.batch, nats.MaxWait(c.wait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("fetch failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			if err := c.handle(ctx, m); err != nil {
				c.log.Warn("message failed, redelivering", zap.String("subject", m.Subject), zap.Error(err))
				if err := m.Nak(); err != nil {
					c.log.Warn("nak failed", zap.Error(err))
				}
				continue
			}
			if err := m.Ack(); err != nil {
				c.log.Warn("ack failed", zap.Error(err))
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m *nats.Msg) error {
	var env Envelope
	if err := json.Unmarshal(m.Data, &env); err != nil || env.EventID == "" {
		// Malformed frames can never succeed; drop them.
		c.log.Error("dropping malformed envelope", zap.String("subject", m.Subject), zap.Error(err))
		return nil
	}

	switch m.Subject {
	case subjectGrouped:
		var ev groupedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			c.log.Error("dropping malformed grouped payload", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}
		if skip(ev.RecipientID, ev.ActorID) {
			return nil
		}
		n, err := c.store.UpsertGrouped(ctx, store.GroupedInput{
			EventID:     env.EventID,
			RecipientID: ev.RecipientID,
			ActorID:     ev.ActorID,
			ActorName:   ev.ActorName,
			Kind:        ev.Kind,
			PostID:      ev.PostID,
			Preview:     ev.Preview,
			DeepLink:    ev.DeepLink,
		})
		if err != nil {
			return err
		}
		c.log.Debug("grouped folded",
			zap.String("notification_id", n.ID),
			zap.Int("actor_count", n.ActorCount))
		return nil

	case subjectIndividual:
		var ev individualEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			c.log.Error("dropping malformed individual payload", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}
		if skip(ev.RecipientID, ev.ActorID) {
			return nil
		}
		_, err := c.store.InsertIndividual(ctx, store.IndividualInput{
			EventID:     env.EventID,
			RecipientID: ev.RecipientID,
			ActorID:     ev.ActorID,
			Kind:        ev.Kind,
			Title:       ev.Title,
			Body:        ev.Body,
			PostID:      ev.Data.PostID,
			DeepLink:    ev.Data.DeepLink,
		})
		return err

	default:
		c.log.Warn("unknown subject, dropping", zap.String("subject", m.Subject))
		return nil
	}
}

// skip rechecks the self-action rule at the boundary. The publisher
// already enforces it; a buggy or stale publisher must not reach the
// inbox anyway.
func skip(recipientID, actorID string) bool {
	return recipientID == "" || recipientID == actorID
}
