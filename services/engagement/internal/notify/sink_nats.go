package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectGrouped    = "notify.grouped"
	SubjectIndividual = "notify.individual"
	streamName        = "NOTIFY"
)

// Envelope wraps a sink payload for durable consumption.
type Envelope struct {
	EventID   string          `json:"event_id"`
	CreatedAt string          `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// NATSSink publishes notification events to JetStream for the notifier
// service to drain. Delivery stays best-effort from the author's point
// of view; durability past the publish is the stream's concern.
type NATSSink struct {
	js  nats.JetStreamContext
	log *zap.Logger
}

func NewNATSSink(nc *nats.Conn, log *zap.Logger) (*NATSSink, error) {
	if log == nil {
		log = zap.NewNop()
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"notify.>"},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		log.Warn("failed to create NATS stream (may already exist)", zap.Error(err))
	}
	return &NATSSink{js: js, log: log}, nil
}

func (s *NATSSink) Grouped(ev GroupedEvent) error {
	return s.publish(SubjectGrouped, ev)
}

func (s *NATSSink) Individual(ev IndividualEvent) error {
	return s.publish(SubjectIndividual, ev)
}

func (s *NATSSink) publish(subject string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{
		EventID:   uuid.NewString(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Payload:   body,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ack, err := s.js.Publish(subject, data)
	if err != nil {
		return err
	}
	s.log.Debug("notification published",
		zap.String("subject", subject),
		zap.String("event_id", env.EventID),
		zap.Uint64("seq", ack.Sequence),
	)
	return nil
}
