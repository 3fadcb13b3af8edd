// Package api exposes document upload, status and chat over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/tenantrag/internal/api/handlers"
	"github.com/nikhilbhutani/tenantrag/internal/api/middleware"
	"github.com/nikhilbhutani/tenantrag/internal/auth"
	"github.com/nikhilbhutani/tenantrag/internal/config"
	"github.com/nikhilbhutani/tenantrag/internal/document"
	"github.com/nikhilbhutani/tenantrag/internal/storage"
)

// Deps are the services the HTTP layer is built from.
type Deps struct {
	Config   *config.Config
	Docs     document.Store
	Files    storage.Storage
	Queue    handlers.Enqueuer
	Pipeline handlers.Asker
	// Clients checks that a tenant is an active client. Optional: without it
	// any validly signed token is accepted and widget chat is disabled.
	Clients auth.ActiveChecker
	Checks  map[string]handlers.Check
	Logger  *slog.Logger
}

type Router struct {
	mux  *chi.Mux
	deps Deps
	jwt  *auth.JWTMiddleware
}

func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Router{
		mux:  chi.NewRouter(),
		deps: deps,
		jwt:  auth.NewJWTMiddleware(deps.Config.Auth.JWTSecret, deps.Clients, deps.Logger),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	cfg := rt.deps.Config.Server

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	docH := handlers.NewDocumentHandler(rt.deps.Docs, rt.deps.Files, rt.deps.Queue, cfg.MaxUploadBytes, rt.deps.Logger)
	var widgetClients handlers.ClientChecker
	if rt.deps.Clients != nil {
		widgetClients = rt.deps.Clients
	}
	ragH := handlers.NewRAGHandler(rt.deps.Pipeline, widgetClients, rt.deps.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Embedded widgets identify the tenant by client token in the body.
		r.Post("/widget/chat", ragH.WidgetChat)

		r.Group(func(r chi.Router) {
			r.Use(rt.jwt.Authenticate)

			r.Route("/documents", func(r chi.Router) {
				r.Post("/", docH.Upload)
				r.Get("/", docH.List)
				r.Get("/{id}", docH.Get)
				r.Get("/{id}/download", docH.Download)
			})

			r.Post("/chat", ragH.Chat)
			r.Delete("/knowledge-base", ragH.DeleteKnowledgeBase)
		})
	})

	return r
}
