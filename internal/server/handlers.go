package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/principia/internal/models"
	"github.com/hyperjump/principia/internal/storage"
	"go.uber.org/zap"
)

const (
	maxBodyBytes     = 1 << 20
	maxArticleBytes  = 16 << 20
	defaultPageLimit = 50
	maxPageLimit     = 500
)

type chatResponse struct {
	Answer     string             `json:"answer"`
	Sources    []string           `json:"sources"`
	NumDocs    int                `json:"num_docs_used"`
	Evaluation *models.Evaluation `json:"evaluation,omitempty"`
	ElapsedMS  int64              `json:"elapsed_ms"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message":       "Welcome to the Isaac Newton knowledge API",
		"version":       s.deps.Info.Version,
		"health":        "/health",
		"chat_endpoint": "/chat",
		"examples":      "/examples",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.deps.Index.Count(r.Context())
	if err != nil {
		s.logger.Error("health: vector count failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"message": err.Error(),
		})
		return
	}
	info := s.deps.Info
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"message": "principia is running",
		"system_info": map[string]any{
			"vector_store":     info.VectorBackend,
			"collection":       info.Collection,
			"knowledge_chunks": count,
			"embedding_model":  info.EmbeddingModel,
			"llm_model":        info.ChatModel,
			"reranker":         info.Reranker,
		},
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var q models.Question
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&q); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	evaluate := q.ShouldEvaluate()
	s.logger.Debug("chat request", zap.String("question", q.Question), zap.Bool("evaluate", evaluate))

	record, err := s.deps.Pipeline.AnswerQuestion(r.Context(), q.Question, evaluate)
	if err != nil {
		s.respondFailure(w, "chat", err)
		return
	}
	s.respondJSON(w, http.StatusOK, chatResponse{
		Answer:     record.Answer,
		Sources:    record.Sources,
		NumDocs:    record.NumDocs,
		Evaluation: record.Evaluation,
		ElapsedMS:  record.ElapsedMS,
	})
}

func (s *Server) handleExamples(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string][]string{"example_questions": models.ExampleQuestions})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	articles, err := s.deps.Storage.CountArticles(ctx)
	if err != nil {
		s.logger.Error("status: count articles failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunks, err := s.deps.Storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	vectors, err := s.deps.Index.Count(ctx)
	if err != nil {
		s.logger.Error("status: count vectors failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	info := s.deps.Info
	resp := map[string]any{
		"articles": articles,
		"chunks":   chunks,
		"vectors":  vectors,
		"config": map[string]any{
			"vector_backend":  info.VectorBackend,
			"collection":      info.Collection,
			"embedding_model": info.EmbeddingModel,
			"chat_model":      info.ChatModel,
			"reranker":        info.Reranker,
		},
	}
	if len(info.DiskPaths) > 0 {
		if n, err := storage.DiskUsage(info.DiskPaths...); err == nil {
			resp["disk_usage_bytes"] = n
		}
	}
	if info.Directories != nil {
		resp["directories"] = info.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultPageLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	articles, err := s.deps.Storage.ListArticles(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list articles failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.deps.Storage.CountArticles(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"articles": articles,
		"offset":   offset,
		"limit":    limit,
		"total":    total,
	})
}

func (s *Server) handleAddArticle(w http.ResponseWriter, r *http.Request) {
	var input models.ArticleInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxArticleBytes)).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("add article request", zap.String("title", input.Title))
	article, err := s.deps.Articles.AddArticle(r.Context(), &input)
	if err != nil {
		s.respondFailure(w, "add article", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, article)
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete article request", zap.String("id", id))
	if err := s.deps.Articles.DeleteArticle(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "article not found")
			return
		}
		s.respondFailure(w, "delete article", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// respondFailure maps an operation error to a status code: validation errors are the
// caller's fault, service errors are upstream failures, and anything else is ours.
func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error(op+" failed", zap.Error(err))
	var se *models.ServiceError
	if errors.As(err, &se) {
		body := map[string]string{"error": err.Error()}
		if se.Stage != "" {
			body["stage"] = string(se.Stage)
		}
		s.respondJSON(w, http.StatusBadGateway, body)
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
