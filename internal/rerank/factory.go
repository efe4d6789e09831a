package rerank

import (
	"fmt"

	"github.com/hyperjump/principia/internal/config"
	"github.com/hyperjump/principia/internal/models"
	"go.uber.org/zap"
)

// CrossEncoderOptions locates the ONNX model, its vocabulary, and optionally the onnxruntime library.
type CrossEncoderOptions struct {
	ModelPath   string
	VocabPath   string
	LibraryPath string
	MaxTokens   int
}

// NewFromConfig builds the reranker selected by cfg. When the cross-encoder cannot be
// loaded, it falls back to the lexical scorer and logs a warning.
func NewFromConfig(cfg config.RerankConfig, logger *zap.Logger) (*Reranker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var scorer Scorer
	switch cfg.Backend {
	case "cross-encoder":
		ce, err := NewCrossEncoder(CrossEncoderOptions{
			ModelPath:   cfg.ModelPath,
			VocabPath:   cfg.VocabPath,
			LibraryPath: cfg.LibraryPath,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			logger.Warn("cross-encoder unavailable, using lexical reranking",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
			scorer = NewLexicalScorer()
		} else {
			scorer = ce
		}
	case "lexical":
		scorer = NewLexicalScorer()
	default:
		return nil, &models.ConfigurationError{Key: "rerank.backend", Message: fmt.Sprintf("unknown value %q", cfg.Backend)}
	}
	return New(scorer, WithPassageChars(cfg.PassageChars), WithLogger(logger)), nil
}
