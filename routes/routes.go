// Package routes configures the HTTP router.
package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/brightsmile/dental-assistant/app"
	"github.com/brightsmile/dental-assistant/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Conversation endpoints
		r.Post("/chat", deps.ChatHandler.HandleChat)
		r.Route("/chat/sessions", func(r chi.Router) {
			r.Get("/", deps.ChatHandler.HandleListSessions)
			r.Post("/", deps.ChatHandler.HandleCreateSession)
			r.Get("/{id}", deps.ChatHandler.HandleGetSession)
			r.Delete("/{id}", deps.ChatHandler.HandleEndSession)
			r.Get("/{id}/history", deps.ChatHandler.HandleHistory)
			r.Get("/{id}/stats", deps.ChatHandler.HandleSessionStats)
		})

		// Direct knowledge base search (no session, no generation)
		r.Post("/search", deps.SearchHandler.HandleSearch)
		r.Get("/search/recent", deps.SearchHandler.HandleRecentSearches)

		// Vector index administration
		r.Route("/index", func(r chi.Router) {
			r.Post("/rebuild", deps.SearchHandler.HandleRebuildIndex)
			r.Get("/stats", deps.SearchHandler.HandleIndexStats)
		})

		// Knowledge base authoring
		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", deps.KnowledgeHandler.HandleList)
			r.Post("/", deps.KnowledgeHandler.HandleCreate)
			r.Post("/batch", deps.KnowledgeHandler.HandleBatchCreate)
			r.Get("/categories", deps.KnowledgeHandler.HandleCategories)
			r.Get("/sources", deps.KnowledgeHandler.HandleSources)
			r.Get("/stats", deps.KnowledgeHandler.HandleStats)
			r.Get("/{id}", deps.KnowledgeHandler.HandleGet)
			r.Put("/{id}", deps.KnowledgeHandler.HandleUpdate)
			r.Patch("/{id}/active", deps.KnowledgeHandler.HandleSetActive)
			r.Delete("/{id}", deps.KnowledgeHandler.HandleDelete)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
