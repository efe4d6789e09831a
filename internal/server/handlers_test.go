package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/principia/internal/config"
	"github.com/hyperjump/principia/internal/embedding"
	"github.com/hyperjump/principia/internal/indexer"
	"github.com/hyperjump/principia/internal/models"
	"github.com/hyperjump/principia/internal/storage"
	"github.com/hyperjump/principia/internal/vector"
	"go.uber.org/zap"
)

type fakeAnswerer struct {
	record   *models.AnswerRecord
	err      error
	question string
	evaluate bool
}

func (f *fakeAnswerer) AnswerQuestion(_ context.Context, question string, evaluate bool) (*models.AnswerRecord, error) {
	f.question, f.evaluate = question, evaluate
	if f.err != nil {
		return nil, f.err
	}
	rec := *f.record
	rec.Question = question
	if !evaluate {
		rec.Evaluation = nil
	}
	return &rec, nil
}

type brokenIndex struct{}

func (brokenIndex) Count(context.Context) (int64, error) {
	return 0, errors.New("qdrant unreachable")
}

type testServer struct {
	srv      *Server
	handler  http.Handler
	answerer *fakeAnswerer
	store    *storage.SQLiteStorage
	vectors  *vector.MemoryIndex
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "articles.db")
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	vecIdx, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(store, embedding.NewMockEmbedder(8), vecIdx,
		indexer.NewChunker(80, models.SourceWikipedia))

	answerer := &fakeAnswerer{record: &models.AnswerRecord{
		Answer:  "Newton formulated three laws of motion.",
		Sources: []string{"Newton's laws of motion", "Newton's laws of motion"},
		NumDocs: 2,
		Evaluation: &models.Evaluation{
			Retrieval: &models.RetrievalMetrics{AvgSimilarity: 0.7, MaxSimilarity: 0.8, NumDocs: 2},
			Answer:    &models.AnswerMetrics{GroundingScore: 0.9, AnswerRelevance: 0.8},
		},
	}}
	srv := NewServer(Deps{
		Pipeline: answerer,
		Articles: idx,
		Storage:  store,
		Index:    vecIdx,
		Info: SystemInfo{
			Version:        "test",
			VectorBackend:  "memory",
			Collection:     "newton_knowledge",
			EmbeddingModel: "mock",
			ChatModel:      "mock",
			Reranker:       "lexical",
			DiskPaths:      []string{dbPath},
			Directories:    func() []string { return []string{"/srv/corpus"} },
		},
	}, &config.ServerConfig{Port: 8000}, zap.NewNop())
	return &testServer{srv: srv, handler: srv.Handler(), answerer: answerer, store: store, vectors: vecIdx}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHandleRoot(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]string
	decode(t, w, &out)
	if out["chat_endpoint"] != "/chat" || out["version"] != "test" {
		t.Errorf("root: got %v", out)
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Status     string         `json:"status"`
		SystemInfo map[string]any `json:"system_info"`
	}
	decode(t, w, &out)
	if out.Status != "healthy" {
		t.Errorf("status field: got %q", out.Status)
	}
	if out.SystemInfo["vector_store"] != "memory" || out.SystemInfo["knowledge_chunks"] != float64(0) {
		t.Errorf("system_info: got %v", out.SystemInfo)
	}
}

func TestHandleHealth_Unhealthy(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.deps.Index = brokenIndex{}
	ts.handler = ts.srv.Handler()

	w := ts.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", w.Code)
	}
	var out map[string]string
	decode(t, w, &out)
	if out["status"] != "unhealthy" || !strings.Contains(out["message"], "qdrant unreachable") {
		t.Errorf("body: got %v", out)
	}
}

func TestHandleChat(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/chat", `{"question": "What are Newton's laws?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", w.Code, w.Body.String())
	}
	if !ts.answerer.evaluate {
		t.Error("evaluate should default to true")
	}
	var out chatResponse
	decode(t, w, &out)
	if out.Answer == "" || out.NumDocs != 2 || len(out.Sources) != 2 {
		t.Errorf("chat response: got %+v", out)
	}
	if out.Evaluation == nil || out.Evaluation.Answer.GroundingScore != 0.9 {
		t.Errorf("evaluation: got %+v", out.Evaluation)
	}
}

func TestHandleChat_EvaluateFalse(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/chat", `{"question": "Who was Isaac Newton?", "evaluate": false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if ts.answerer.evaluate {
		t.Error("evaluate should be false")
	}
	var out map[string]any
	decode(t, w, &out)
	if _, ok := out["evaluation"]; ok {
		t.Errorf("evaluation should be omitted: %v", out)
	}
}

func TestHandleChat_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		err       error
		wantCode  int
		wantStage string
	}{
		{"malformed body", `{"question":`, nil, http.StatusBadRequest, ""},
		{"validation", `{"question": " "}`, &models.ValidationError{Field: "question", Message: "question cannot be empty"}, http.StatusBadRequest, ""},
		{"upstream", `{"question": "q"}`, &models.ServiceError{Stage: models.StageEmbed, Service: "openai", Err: errors.New("rate limited")}, http.StatusBadGateway, "embed"},
		{"internal", `{"question": "q"}`, errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.answerer.err = tt.err
			w := ts.do(t, http.MethodPost, "/chat", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d", w.Code, tt.wantCode)
			}
			var out map[string]string
			decode(t, w, &out)
			if out["error"] == "" {
				t.Error("expected error message")
			}
			if out["stage"] != tt.wantStage {
				t.Errorf("stage: got %q, want %q", out["stage"], tt.wantStage)
			}
		})
	}
}

func TestHandleExamples(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/examples", "")
	var out struct {
		ExampleQuestions []string `json:"example_questions"`
	}
	decode(t, w, &out)
	if len(out.ExampleQuestions) != 7 || out.ExampleQuestions[0] != "Who was Isaac Newton?" {
		t.Errorf("examples: got %v", out.ExampleQuestions)
	}
}

func TestArticlesLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/articles",
		`{"title": "Opticks", "url": "https://en.wikipedia.org/wiki/Opticks", "content": "Opticks is a book by Isaac Newton. It describes the refraction of light."}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add: got %d: %s", w.Code, w.Body.String())
	}
	var article models.Article
	decode(t, w, &article)
	if article.ID == "" || article.ChunkCount == 0 {
		t.Fatalf("article: got %+v", article)
	}
	if n, _ := ts.vectors.Count(context.Background()); n == 0 {
		t.Error("expected passages in the vector index")
	}

	w = ts.do(t, http.MethodGet, "/api/v1/articles?limit=10", "")
	var list struct {
		Articles []models.Article `json:"articles"`
		Total    int              `json:"total"`
	}
	decode(t, w, &list)
	if list.Total != 1 || len(list.Articles) != 1 || list.Articles[0].Title != "Opticks" {
		t.Errorf("list: got %+v", list)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/status", "")
	var status map[string]any
	decode(t, w, &status)
	if status["articles"] != float64(1) || status["vectors"] == float64(0) {
		t.Errorf("status: got %v", status)
	}
	if _, ok := status["disk_usage_bytes"]; !ok {
		t.Errorf("status should report disk usage: %v", status)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/articles/"+article.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: got %d: %s", w.Code, w.Body.String())
	}
	if n, _ := ts.vectors.Count(context.Background()); n != 0 {
		t.Errorf("vectors after delete: got %d", n)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/articles/"+article.ID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", w.Code)
	}
}

func TestHandleAddArticle_Invalid(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/v1/articles", `{"title": "", "content": "x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
	w = ts.do(t, http.MethodPost, "/api/v1/articles", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleListArticles_BadParams(t *testing.T) {
	ts := newTestServer(t)
	for _, q := range []string{"?offset=-1", "?limit=0", "?limit=abc"} {
		w := ts.do(t, http.MethodGet, "/api/v1/articles"+q, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", q, w.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)
	r := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Errorf("expected CORS headers, got %v", w.Header())
	}
}
