package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthcert/internal/platform/middleware"
)

// NewRouter wires the public endpoints. Issuance routes require a bearer token
// carrying the subject's proofing claims.
func NewRouter(h *Handler, jwtSigningKey string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RequestTime)

	r.Get("/healthz", h.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(jwtSigningKey))
		r.Post("/certificates/{scenario}", h.handleBuild)
	})

	return r
}
