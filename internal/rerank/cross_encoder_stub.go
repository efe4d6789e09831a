//go:build !cgo
// +build !cgo

package rerank

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("cross-encoder reranking requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// CrossEncoder stub type when built without CGO (see cross_encoder.go for real implementation).
type CrossEncoder struct{}

// NewCrossEncoder returns an error when built without CGO (ONNX not available).
func NewCrossEncoder(_ CrossEncoderOptions) (*CrossEncoder, error) {
	return nil, errNoCGO
}

func (c *CrossEncoder) Score(context.Context, string, []string) ([]float64, error) {
	return nil, errNoCGO
}

func (c *CrossEncoder) Name() string { return "cross-encoder" }

func (c *CrossEncoder) Close() error { return nil }
