package rest

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"memoir-backend/application/services"
	"memoir-backend/interfaces/http/rest/handlers"
	"memoir-backend/interfaces/http/rest/middleware"
	pkgerrors "memoir-backend/pkg/errors"
	"memoir-backend/pkg/observability"
	"memoir-backend/pkg/ratelimit"
)

// Router creates and configures the HTTP router
type Router struct {
	spaces        *services.MemorySpaceService
	conversations *services.ConversationService
	stories       *services.StoryService
	db            *sql.DB
	metrics       *observability.Collector
	appBaseURL    string
	enableCORS    bool
	debug         bool
	logger        *zap.Logger
}

// RouterConfig carries the dependencies the router wires into handlers
type RouterConfig struct {
	Spaces        *services.MemorySpaceService
	Conversations *services.ConversationService
	Stories       *services.StoryService
	DB            *sql.DB
	Metrics       *observability.Collector
	AppBaseURL    string
	EnableCORS    bool
	Debug         bool
	Logger        *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		spaces:        cfg.Spaces,
		conversations: cfg.Conversations,
		stories:       cfg.Stories,
		db:            cfg.DB,
		metrics:       cfg.Metrics,
		appBaseURL:    cfg.AppBaseURL,
		enableCORS:    cfg.EnableCORS,
		debug:         cfg.Debug,
		logger:        cfg.Logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.metrics))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	errorHandler := pkgerrors.NewErrorHandler(rt.logger, rt.debug)

	// Turns and story generation each cost a model call
	llmLimiter := ratelimit.NewTokenBucketLimiter(20, time.Second)

	// Health and observability
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/memory-spaces", func(r chi.Router) {
			spaceHandler := handlers.NewMemorySpaceHandler(rt.spaces, errorHandler, rt.logger, rt.appBaseURL)
			r.Post("/", spaceHandler.Create)
			r.Get("/{spaceID}", spaceHandler.Get)
		})

		r.Route("/conversations", func(r chi.Router) {
			conversationHandler := handlers.NewConversationHandler(rt.conversations, errorHandler, rt.logger)
			r.With(middleware.RateLimit(llmLimiter, errorHandler)).Post("/chat", conversationHandler.Chat)
			r.Get("/history", conversationHandler.History)
		})

		r.Route("/stories", func(r chi.Router) {
			storyHandler := handlers.NewStoryHandler(rt.stories, errorHandler, rt.logger)
			r.With(middleware.RateLimit(llmLimiter, errorHandler)).Post("/generate", storyHandler.Generate)
			r.Get("/by-memory-space/{spaceID}", storyHandler.ListByMemorySpace)
			r.Get("/by-email/{email}", storyHandler.ListByMemberEmail)
			r.Get("/{storyID}", storyHandler.Get)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests by pinging the database
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := rt.db.PingContext(ctx); err != nil {
		rt.logger.Warn("readiness check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
