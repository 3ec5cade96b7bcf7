package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/conorfennell/lingosrs/internal/domain"
	"github.com/conorfennell/lingosrs/internal/srs"
	decksync "github.com/conorfennell/lingosrs/internal/sync"
)

// CardService is the card API the server exposes. *srs.Service satisfies it.
type CardService interface {
	CreateCard(ctx context.Context, userID string, in srs.CreateCardInput) (*domain.Card, error)
	GetCard(ctx context.Context, userID, cardID string) (*domain.Card, error)
	ListCards(ctx context.Context, userID string, q srs.ListQuery) (*srs.CardPage, error)
	UpdateCard(ctx context.Context, userID, cardID string, in srs.UpdateCardInput) (*domain.Card, error)
	DeleteCard(ctx context.Context, userID, cardID string) error
	ListDueCards(ctx context.Context, userID string) ([]domain.Card, error)
	SubmitReview(ctx context.Context, userID, cardID string, rating domain.Rating) (*srs.ReviewResult, error)
	PreviewReview(ctx context.Context, userID, cardID string) (*srs.Preview, error)
	ReviewHistory(ctx context.Context, userID, cardID string, limit int) ([]domain.ReviewLog, error)
}

// SourceService manages deck sources. *sync.Syncer satisfies it.
type SourceService interface {
	AddSource(ctx context.Context, userID, path string, lang domain.Language) (*domain.Source, error)
	ListSources(ctx context.Context, userID string) ([]domain.Source, error)
	RemoveSource(ctx context.Context, userID, id string) error
	SyncUser(ctx context.Context, userID string) ([]decksync.Report, error)
}

// Options configures a Server.
type Options struct {
	Logger         *zap.Logger
	Auth           *Authenticator
	CORSOrigins    []string
	RequestTimeout time.Duration
	// Metrics serves /metrics. Defaults to the global Prometheus registry.
	Metrics http.Handler
	// Health reports whether dependencies are reachable.
	Health func(ctx context.Context) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	cards   CardService
	sources SourceService
	logger  *zap.Logger
	router  chi.Router
	opts    Options
}

// NewServer creates and configures a new server. sources may be nil, in
// which case the source routes are not mounted.
func NewServer(cards CardService, sources SourceService, opts Options) (*Server, error) {
	if opts.Auth == nil {
		return nil, fmt.Errorf("an authenticator is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}

	s := &Server{
		cards:   cards,
		sources: sources,
		logger:  opts.Logger,
		router:  chi.NewRouter(),
		opts:    opts,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth())
	r.Handle("/metrics", s.opts.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.opts.Auth.Middleware)
		r.Use(middleware.Timeout(s.opts.RequestTimeout))

		r.Route("/flashcards", func(r chi.Router) {
			r.Get("/", s.handleListCards())
			r.Post("/", s.handleCreateCard())
			r.Get("/review-queue", s.handleReviewQueue())
			r.Post("/review", s.handleSubmitReview())
			r.Get("/{id}", s.handleGetCard())
			r.Patch("/{id}", s.handleUpdateCard())
			r.Delete("/{id}", s.handleDeleteCard())
			r.Get("/{id}/preview", s.handlePreview())
			r.Get("/{id}/reviews", s.handleReviewHistory())
		})

		if s.sources != nil {
			r.Get("/sources", s.handleListSources())
			r.Post("/sources", s.handleAddSource())
			r.Delete("/sources/{id}", s.handleDeleteSource())
			r.Post("/sync", s.handlePostSync())
		}
	})
}

// handleHealth reports liveness and, when configured, dependency health.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Health != nil {
			if err := s.opts.Health(r.Context()); err != nil {
				s.logger.Warn("health check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
