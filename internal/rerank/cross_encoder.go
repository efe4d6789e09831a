//go:build cgo
// +build cgo

package rerank

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/principia/pkg/utils"
	ort "github.com/yalue/onnxruntime_go"
)

// CrossEncoder scores (query, passage) pairs with an ONNX export of a BERT cross-encoder
// such as ms-marco-MiniLM-L-6-v2. It requires CGO and the onnxruntime shared library.
type CrossEncoder struct {
	session   *ort.AdvancedSession
	tokenizer PairTokenizer
	maxTokens int
	// Pre-allocated tensors for Run(); we update input data and read the logit.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewCrossEncoder loads the model and vocabulary. The ONNX environment is initialized once per process.
func NewCrossEncoder(opts CrossEncoderOptions) (*CrossEncoder, error) {
	tokenizer, err := LoadWordPiece(opts.VocabPath)
	if err != nil {
		return nil, err
	}
	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	shape := ort.NewShape(1, int64(maxTokens))
	inputIDsTensor, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	attentionMaskTensor, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		inputIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	tokenTypeIDsTensor, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"logits"},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &CrossEncoder{
		session:             session,
		tokenizer:           tokenizer,
		maxTokens:           maxTokens,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}, nil
}

// Score runs one inference per passage and maps each logit through a sigmoid.
func (c *CrossEncoder) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	scores := make([]float64, len(passages))
	for i, passage := range passages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inputIDs, attentionMask, tokenTypeIDs := c.tokenizer.EncodePair(query, passage, c.maxTokens)
		copy(c.inputIDsTensor.GetData(), inputIDs)
		copy(c.attentionMaskTensor.GetData(), attentionMask)
		copy(c.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

		if err := c.session.Run(); err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}
		scores[i] = utils.Sigmoid(float64(c.outputTensor.GetData()[0]))
	}
	return scores, nil
}

func (c *CrossEncoder) Name() string { return "cross-encoder" }

// Close destroys the session and tensors.
func (c *CrossEncoder) Close() error {
	var err error
	if c.session != nil {
		err = c.session.Destroy()
		c.session = nil
	}
	if c.inputIDsTensor != nil {
		_ = c.inputIDsTensor.Destroy()
		c.inputIDsTensor = nil
	}
	if c.attentionMaskTensor != nil {
		_ = c.attentionMaskTensor.Destroy()
		c.attentionMaskTensor = nil
	}
	if c.tokenTypeIDsTensor != nil {
		_ = c.tokenTypeIDsTensor.Destroy()
		c.tokenTypeIDsTensor = nil
	}
	if c.outputTensor != nil {
		_ = c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	return err
}
