package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/petcare-platform/internal/platform/api"
	"github.com/example/petcare-platform/internal/platform/auth"
	"github.com/example/petcare-platform/services/notifier/internal/store"
)

type listResponse struct {
	Notifications []store.Notification `json:"notifications"`
}

// List handles GET /v1/notifications?unread=true&limit=50.
func List(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		unreadOnly := strings.EqualFold(r.URL.Query().Get("unread"), "true")
		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
				limit = parsed
			}
		}

		rows, err := st.ListByRecipient(r.Context(), userID, unreadOnly, limit)
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, listResponse{Notifications: rows})
	}
}

// MarkRead handles POST /v1/notifications/{notification_id}/read.
func MarkRead(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		id := strings.TrimSpace(chi.URLParam(r, "notification_id"))
		if id == "" {
			api.BadRequest(w, "MISSING_ID", "notification_id is required", "", nil)
			return
		}

		if err := st.MarkRead(r.Context(), id, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "notification not found", "")
				return
			}
			api.Internal(w, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// MarkAllRead handles POST /v1/notifications/read-all.
func MarkAllRead(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		if err := st.MarkAllRead(r.Context(), userID); err != nil {
			api.Internal(w, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
