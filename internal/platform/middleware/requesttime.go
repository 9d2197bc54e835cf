package middleware

import (
	"net/http"
	"time"

	"healthcert/pkg/requestcontext"
)

// RequestTime stamps a single effective time per request so every component in
// one build call evaluates against the same clock.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
