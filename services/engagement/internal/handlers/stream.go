package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/petcare-platform/internal/platform/api"
	"github.com/example/petcare-platform/internal/platform/auth"
	"github.com/example/petcare-platform/services/engagement/internal/engine"
	"github.com/example/petcare-platform/services/engagement/internal/ws"
)

type threadSnapshot struct {
	Type   string            `json:"type"`
	Thread engine.ThreadView `json:"thread"`
}

// Stream handles GET /v1/posts/{post_id}/stream, upgrading to a
// websocket that first delivers the thread snapshot and then every
// session update in apply order. Browsers cannot set headers on a
// websocket dial, so the token rides the query string.
func Stream(m *engine.Manager, hub *ws.Hub, verifier auth.JWTVerifier, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		if postID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id is required", "", nil)
			return
		}
		user, err := auth.ParseQueryToken(verifier, r.URL.Query().Get("token"))
		if err != nil {
			api.Unauthorized(w, "UNAUTHORIZED", "invalid or missing token", "")
			return
		}

		conn, err := ws.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			log.Warn("websocket upgrade failed", zap.String("post_id", postID), zap.Error(err))
			return
		}
		client := hub.Register(postID, conn)
		defer hub.Unregister(postID, client)

		opts := engine.SessionOptions{
			DeepLinkTarget: strings.TrimSpace(r.URL.Query().Get("comment_id")),
		}
		sess, release, err := m.Acquire(r.Context(), postID, user.ID, opts)
		if err != nil {
			log.Error("session acquire failed", zap.String("post_id", postID), zap.Error(err))
			return
		}
		defer release()

		remove := sess.AddListener(func(u engine.Update) {
			if !client.Send(u) {
				// Slow consumer; drop the connection, the client
				// reconnects and reloads the snapshot.
				client.Close()
			}
		})
		defer remove()

		client.Send(threadSnapshot{Type: "thread", Thread: sess.View()})

		log.Info("stream opened",
			zap.String("post_id", postID),
			zap.String("user_id", user.ID),
			zap.Int("viewers", hub.Count(postID)))
		client.ReadUntilClose()
		log.Info("stream closed",
			zap.String("post_id", postID),
			zap.String("user_id", user.ID))
	}
}
