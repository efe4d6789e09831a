package generate

import (
	"context"
	"strings"
)

var _ Completer = (*MockCompleter)(nil)

// MockCompleter answers offline by echoing the first sentence of the prompt's context.
// It is meant for local development and tests.
type MockCompleter struct {
	Reply string
}

func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string, _ *CompleteOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Reply != "" {
		return m.Reply, nil
	}
	_, rest, ok := strings.Cut(prompt, "Context:")
	if !ok {
		return "I don't know.", nil
	}
	rest = strings.TrimSpace(rest)
	if i := strings.Index(rest, ". "); i >= 0 {
		rest = rest[:i+1]
	}
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "I don't know.", nil
	}
	return rest, nil
}

func (m *MockCompleter) Model() string { return "mock" }
