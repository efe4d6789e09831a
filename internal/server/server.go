// Package server provides the HTTP API for principia.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hyperjump/principia/internal/config"
	"github.com/hyperjump/principia/internal/models"
	"github.com/hyperjump/principia/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Answerer answers questions. *pipeline.Pipeline implements it.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question string, evaluate bool) (*models.AnswerRecord, error)
}

// ArticleService adds and removes knowledge base articles, keeping the vector index in step.
// *indexer.Indexer implements it.
type ArticleService interface {
	AddArticle(ctx context.Context, in *models.ArticleInput) (*models.Article, error)
	DeleteArticle(ctx context.Context, id string) error
}

// VectorCounter reports how many passages the vector index holds.
type VectorCounter interface {
	Count(ctx context.Context) (int64, error)
}

// SystemInfo describes the configured backends for the health and status endpoints.
type SystemInfo struct {
	Version        string
	VectorBackend  string
	Collection     string
	EmbeddingModel string
	ChatModel      string
	Reranker       string
	// DiskPaths are measured for the status endpoint.
	DiskPaths []string
	// Directories returns the watched corpus directories; nil when not watching.
	Directories func() []string
}

// Deps are the services the server delegates to.
type Deps struct {
	Pipeline Answerer
	Articles ArticleService
	Storage  storage.Storage
	Index    VectorCounter
	Info     SystemInfo
}

// Server is the HTTP server for the principia API.
type Server struct {
	deps   Deps
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		deps:   deps,
		config: cfg,
		logger: logger,
	}
}

// Handler returns the routed API with middleware applied.
func (s *Server) Handler() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Get("/examples", s.handleExamples)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/articles", s.handleListArticles)
		r.Post("/articles", s.handleAddArticle)
		r.Delete("/articles/{id}", s.handleDeleteArticle)
	})

	return otelhttp.NewHandler(r, "principia")
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
