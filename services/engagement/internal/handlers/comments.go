package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/petcare-platform/internal/platform/api"
	"github.com/example/petcare-platform/internal/platform/auth"
	"github.com/example/petcare-platform/services/engagement/internal/engine"
)

type createCommentRequest struct {
	Body    string `json:"body"`
	ReplyTo string `json:"reply_to,omitempty"`
}

type updateCommentRequest struct {
	Body string `json:"body"`
}

// GetThread handles GET /v1/posts/{post_id}/thread. A comment_id query
// parameter arms the deep-link highlight for any live stream of the
// same viewer.
func GetThread(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		if postID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id is required", "", nil)
			return
		}

		opts := engine.SessionOptions{
			DeepLinkTarget: strings.TrimSpace(r.URL.Query().Get("comment_id")),
		}
		sess, release, err := m.Acquire(r.Context(), postID, userID, opts)
		if err != nil {
			api.Internal(w, "")
			return
		}
		defer release()

		api.WriteJSON(w, http.StatusOK, sess.View())
	}
}

// CreateComment handles POST /v1/posts/{post_id}/comments.
func CreateComment(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		if postID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id is required", "", nil)
			return
		}

		var req createCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}

		sess, release, err := m.Acquire(r.Context(), postID, userID, engine.SessionOptions{})
		if err != nil {
			api.Internal(w, "")
			return
		}
		defer release()

		created, err := sess.Submit(r.Context(), req.Body, strings.TrimSpace(req.ReplyTo))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// UpdateComment handles PUT /v1/posts/{post_id}/comments/{comment_id}.
func UpdateComment(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if postID == "" || commentID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id and comment_id are required", "", nil)
			return
		}

		var req updateCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}

		sess, release, err := m.Acquire(r.Context(), postID, userID, engine.SessionOptions{})
		if err != nil {
			api.Internal(w, "")
			return
		}
		defer release()

		updated, err := sess.Edit(r.Context(), commentID, req.Body)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, updated)
	}
}

// DeleteComment handles DELETE /v1/posts/{post_id}/comments/{comment_id}.
func DeleteComment(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if postID == "" || commentID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id and comment_id are required", "", nil)
			return
		}

		sess, release, err := m.Acquire(r.Context(), postID, userID, engine.SessionOptions{})
		if err != nil {
			api.Internal(w, "")
			return
		}
		defer release()

		if err := sess.Delete(r.Context(), commentID); err != nil {
			writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ToggleCommentLike handles POST /v1/posts/{post_id}/comments/{comment_id}/like.
func ToggleCommentLike(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if postID == "" || commentID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id and comment_id are required", "", nil)
			return
		}

		sess, release, err := m.Acquire(r.Context(), postID, userID, engine.SessionOptions{})
		if err != nil {
			api.Internal(w, "")
			return
		}
		defer release()

		c, err := sess.ToggleLike(r.Context(), commentID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// LikePost handles POST /v1/posts/{post_id}/like. The reaction row
// belongs to the posts service; this endpoint only fires the owner's
// grouped notification, so it always answers 202.
func LikePost(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		if postID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id is required", "", nil)
			return
		}

		sess, release, err := m.Acquire(r.Context(), postID, userID, engine.SessionOptions{})
		if err != nil {
			api.Internal(w, "")
			return
		}
		defer release()

		sess.LikePost(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}
}

// ToggleThread handles POST /v1/posts/{post_id}/thread/{root_id}/toggle.
func ToggleThread(m *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		rootID := strings.TrimSpace(chi.URLParam(r, "root_id"))
		if postID == "" || rootID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id and root_id are required", "", nil)
			return
		}

		sess, release, err := m.Acquire(r.Context(), postID, userID, engine.SessionOptions{})
		if err != nil {
			api.Internal(w, "")
			return
		}
		defer release()

		open := sess.Toggle(rootID)
		api.WriteJSON(w, http.StatusOK, map[string]bool{"expanded": open})
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrEmptyContent):
		api.BadRequest(w, "EMPTY_BODY", "body must not be empty", "", nil)
	case errors.Is(err, engine.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "comment not found", "")
	case errors.Is(err, engine.ErrForbidden):
		api.Forbidden(w, "FORBIDDEN", "not the comment author", "")
	case errors.Is(err, engine.ErrPendingEdit), errors.Is(err, engine.ErrPendingReply):
		api.Conflict(w, "PENDING", "comment is awaiting confirmation", "", nil)
	case errors.Is(err, engine.ErrWriteFailed):
		api.WriteError(w, http.StatusBadGateway, "WRITE_FAILED", "the change could not be saved", "", nil)
	default:
		api.Internal(w, "")
	}
}
