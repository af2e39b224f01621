package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/znz-systems/mailgate/internal/ratelimit"
	"github.com/znz-systems/mailgate/internal/web/handlers"
	"github.com/znz-systems/mailgate/internal/web/middleware"
)

// RouterDeps holds all dependencies needed to build the router.
type RouterDeps struct {
	MailboxAPI *handlers.MailboxAPIHandler
	InboundAPI *handlers.InboundAPIHandler
	Limiter    *ratelimit.Limiter
	Metrics    http.Handler
	Health     http.Handler // serves /live and /ready
}

// NewRouter wires all routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.CORS)

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.NotFound)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if deps.Health != nil {
		r.Method(http.MethodGet, "/live", deps.Health)
		r.Method(http.MethodGet, "/ready", deps.Health)
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Mail provider webhook (bearer token when configured)
	r.Post("/inbound", deps.InboundAPI.HandleReceiveEmail)

	// Key-gated mailbox API (rate limited)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.Limiter))

		r.Post("/create", deps.MailboxAPI.HandleCreate)
		r.Post("/verify", deps.MailboxAPI.HandleVerify)
		r.Get("/inbox", deps.MailboxAPI.HandleInbox)
		r.Post("/inbox", deps.MailboxAPI.HandleInbox)
		r.Post("/delete", deps.MailboxAPI.HandleDelete)
	})

	return r
}
