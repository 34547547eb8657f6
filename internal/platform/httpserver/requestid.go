package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const defaultRequestIDHeader = "X-Request-Id"

type ctxKeyRequestID struct{}

// RequestIDFromContext returns the request id attached by
// RequestIDMiddleware, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return v
}

// RequestIDMiddleware tags every request with an id read from headerName,
// minting one when the caller sent none. The id is echoed back on the
// response so clients can quote it when reporting a failed call.
func RequestIDMiddleware(headerName string) func(next http.Handler) http.Handler {
	if strings.TrimSpace(headerName) == "" {
		headerName = defaultRequestIDHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(headerName))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(headerName, id)
			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), ctxKeyRequestID{}, id)))
		})
	}
}
