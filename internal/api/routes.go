package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/superplane/internal/config"
	"github.com/yegors/superplane/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(services Services, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(services, cfg, log),
		middleware: NewMiddleware(log),
		config:     cfg,
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	router.Route("/api/v1", func(router chi.Router) {
		router.Use(r.middleware.JSONOnly)

		// Search
		router.Post("/search", r.handler.StartSearch)
		router.Get("/search", r.handler.GetSearch)
		router.Delete("/search", r.handler.CancelSearch)
		router.Get("/search/history", r.handler.GetSearchHistory)

		// Position
		router.Post("/position", r.handler.PushPosition)
		router.Get("/position", r.handler.GetPosition)

		// Favorites
		router.Get("/favorites", r.handler.GetFavorites)
		router.Post("/favorites", r.handler.AddFavorite)
		router.Delete("/favorites/{id}", r.handler.RemoveFavorite)

		// Settings
		router.Get("/settings", r.handler.GetSettings)
		router.Put("/settings", r.handler.UpdateSettings)

		router.Get("/health", r.handler.GetHealth)
	})

	return router
}
