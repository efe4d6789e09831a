package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/principia/internal/config"
	"github.com/hyperjump/principia/internal/embedding"
	"github.com/hyperjump/principia/internal/evaluator"
	"github.com/hyperjump/principia/internal/extract"
	"github.com/hyperjump/principia/internal/generate"
	"github.com/hyperjump/principia/internal/indexer"
	"github.com/hyperjump/principia/internal/models"
	"github.com/hyperjump/principia/internal/pipeline"
	"github.com/hyperjump/principia/internal/rerank"
	"github.com/hyperjump/principia/internal/server"
	"github.com/hyperjump/principia/internal/storage"
	"github.com/hyperjump/principia/internal/synthesizer"
	"github.com/hyperjump/principia/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Storage     storage.Storage
	Embedder    embedding.Embedder
	VectorIndex vector.VectorIndex
	Reranker    *rerank.Reranker
	Generator   generate.Completer
	Judge       generate.Completer
	Pipeline    *pipeline.Pipeline
	Indexer     *indexer.Indexer
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Reranker != nil {
		_ = c.Reranker.Close()
	}
}

// initializeComponents builds every service once; the pipeline and the indexer share the
// embedder and the vector index.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	var err error
	c.Storage, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	c.Embedder, err = embedding.New(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	c.VectorIndex, err = vector.NewVectorIndex(ctx, cfg.Vector, cfg.Embedding.Dimensions, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Info("vector index initialized",
		zap.String("backend", cfg.Vector.Backend),
		zap.String("collection", cfg.Vector.Collection))

	c.Reranker, err = rerank.NewFromConfig(cfg.Rerank, logger)
	if err != nil {
		return nil, err
	}

	c.Generator, err = generate.New(ctx, cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation model: %w", err)
	}
	c.Judge, err = generate.New(ctx, cfg.Judge.ModelConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize judge model: %w", err)
	}

	synthOpts := []synthesizer.Option{synthesizer.WithLogger(logger)}
	if cfg.Generation.Temperature != nil {
		synthOpts = append(synthOpts, synthesizer.WithTemperature(*cfg.Generation.Temperature))
	}
	if cfg.Generation.MaxTokens > 0 {
		synthOpts = append(synthOpts, synthesizer.WithMaxTokens(cfg.Generation.MaxTokens))
	}

	evalOpts := []evaluator.Option{
		evaluator.WithLogger(logger),
		evaluator.WithContextChars(cfg.Judge.ContextChars),
		evaluator.WithFallback(cfg.Judge.Fallback),
		evaluator.WithJudgeMaxTokens(cfg.Judge.MaxTokens),
	}
	if cfg.Judge.Temperature != nil {
		evalOpts = append(evalOpts, evaluator.WithJudgeTemperature(*cfg.Judge.Temperature))
	}

	c.Pipeline, err = pipeline.New(pipeline.Deps{
		Embedder:    c.Embedder,
		Index:       c.VectorIndex,
		Reranker:    c.Reranker,
		Synthesizer: synthesizer.New(c.Generator, synthOpts...),
		Evaluator:   evaluator.New(c.Embedder, c.Judge, evalOpts...),
	},
		pipeline.WithCandidates(cfg.Rerank.Candidates),
		pipeline.WithTopK(cfg.Rerank.TopK),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	c.Indexer = indexer.NewIndexer(
		c.Storage,
		embedding.NewCached(c.Embedder, cfg.Embedding.CacheSize),
		c.VectorIndex,
		indexer.NewChunker(cfg.Ingest.ChunkSize, models.SourceType(cfg.Ingest.SourceType)),
		indexer.WithLogger(logger),
		indexer.WithLoader(extract.NewLoader(cfg.Ingest.Extensions...)),
		indexer.WithCollection(cfg.Vector.Collection),
	)

	ok = true
	return c, nil
}

// systemInfo describes the running configuration for the health and status endpoints.
func systemInfo(cfg *config.Config, c *Components) server.SystemInfo {
	info := server.SystemInfo{
		Version:        version,
		VectorBackend:  cfg.Vector.Backend,
		Collection:     cfg.Vector.Collection,
		EmbeddingModel: cfg.Embedding.Model,
		ChatModel:      cfg.Generation.Model,
		DiskPaths:      []string{cfg.Storage.DatabasePath, cfg.Vector.IndexPath},
	}
	if c.Reranker != nil {
		info.Reranker = c.Reranker.Scorer().Name()
	}
	if c.Generator != nil {
		info.ChatModel = c.Generator.Model()
	}
	return info
}
