package generate

import (
	"context"

	"golang.org/x/time/rate"
)

// Limited wraps a Completer so every request first waits on a shared rate limiter.
type Limited struct {
	Completer
	limiter *rate.Limiter
}

func NewLimited(c Completer, limiter *rate.Limiter) *Limited {
	return &Limited{Completer: c, limiter: limiter}
}

func (l *Limited) Complete(ctx context.Context, prompt string, options *CompleteOptions) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.Completer.Complete(ctx, prompt, options)
}
