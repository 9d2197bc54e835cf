package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"healthcert/pkg/requestcontext"
)

const requestIDHeader = "X-Request-Id"

// RequestID stamps a correlation ID on every request. An inbound header wins so
// upstream proxies can correlate across services; otherwise one is minted.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
