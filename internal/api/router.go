package api

import (
	"net/http"

	"github.com/ashureev/lanne/internal/identity"
	"github.com/ashureev/lanne/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the service routes with the global middleware stack.
// The handler's limiter, when set, throttles the pipeline routes.
func NewRouter(h *Handler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(corsOrigins))
	r.Use(identity.Middleware)

	h.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(middleware.RateLimit(h.limiter, identity.CallerKey))
		}
		h.RegisterPipelineRoutes(r)
	})

	return r
}
