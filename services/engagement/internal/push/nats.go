package push

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const subjectPrefix = "engagement.comments.created."

// NATSFeed fans created-row events out over core NATS subjects, one
// subject per post. Live-viewer delivery is ephemeral, so plain
// pub/sub fits; durable consumers (the notifier) use JetStream
// elsewhere.
type NATSFeed struct {
	nc  *nats.Conn
	log *zap.Logger
}

func NewNATSFeed(nc *nats.Conn, log *zap.Logger) *NATSFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &NATSFeed{nc: nc, log: log}
}

func (f *NATSFeed) Subscribe(_ context.Context, postID string, h Handler) (Subscription, error) {
	sub, err := f.nc.Subscribe(subjectPrefix+postID, func(m *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			f.log.Warn("push: bad event payload", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		h(ev)
	})
	if err != nil {
		return nil, err
	}
	return natsSubscription{sub: sub}, nil
}

func (f *NATSFeed) PublishCreated(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.nc.Publish(subjectPrefix+ev.PostID, data)
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s natsSubscription) Unsubscribe() error {
	if !s.sub.IsValid() {
		return nil
	}
	return s.sub.Unsubscribe()
}
