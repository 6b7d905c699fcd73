package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/appforge/engine/internal/api/handlers"
	mw "github.com/appforge/engine/internal/api/middleware"
)

type Dependencies struct {
	HMACSecret         []byte
	AuthHandler        *handlers.AuthHandler
	ProjectsHandler    *handlers.ProjectsHandler
	DeploymentsHandler *handlers.DeploymentsHandler
	TasksHandler       *handlers.TasksHandler
	CredentialsHandler *handlers.CredentialsHandler
	QuotaHandler       *handlers.QuotaHandler
	ChatHandler        *handlers.ChatHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(mw.RateLimit(10, 20))
	r.Use(chimid.Compress(5))

	// Health endpoints
	hh := handlers.NewHealthHandler()
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	r.Route("/api/v1", func(api chi.Router) {
		// Auth routes (public)
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", dep.AuthHandler.Register)
			ar.Post("/login", dep.AuthHandler.Login)
			ar.Post("/logout", dep.AuthHandler.Logout)
			ar.Post("/refresh", dep.AuthHandler.Refresh)
		})

		// Protected routes
		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.HMACSecret))

			// Deployments: the single write entry point
			protected.Post("/deployments", dep.DeploymentsHandler.Create)

			// Projects: read side of the pipeline plus deletion
			protected.Route("/projects", func(pr chi.Router) {
				pr.Get("/", dep.ProjectsHandler.List)
				pr.Get("/{id}", dep.ProjectsHandler.Get)
				pr.Get("/{id}/logs", dep.ProjectsHandler.Logs)
				pr.Delete("/{id}", dep.ProjectsHandler.Delete)
			})

			// Tasks
			protected.Get("/tasks/{id}", dep.TasksHandler.Get)

			// Credentials
			protected.Route("/credentials", func(cr chi.Router) {
				cr.Put("/", dep.CredentialsHandler.Put)
				cr.Get("/", dep.CredentialsHandler.Get)
			})

			// Quota
			protected.Get("/quota", dep.QuotaHandler.Get)

			// Chat (requirement refinement, streamed)
			protected.Post("/chat", dep.ChatHandler.Stream)
		})
	})

	return r
}
