package ai

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
)

// ResilientProvider wraps a Provider with retry and an overall timeout.
// Planner calls can run for minutes against slow models; the timeout bounds
// a single planning attempt, not the whole project.
type ResilientProvider struct {
	inner Provider
}

func NewResilientProvider(inner Provider) *ResilientProvider {
	return &ResilientProvider{inner: inner}
}

func (p *ResilientProvider) ID() string {
	return p.inner.ID()
}

func (p *ResilientProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	r := retry.New[*CompletionResponse](retry.Config{
		MaxAttempts:   2,
		InitialDelay:  time.Second,
		BackoffPolicy: retry.BackoffExponential,
	})

	t := timeout.New[*CompletionResponse](timeout.Config{
		DefaultTimeout: 300 * time.Second,
	})

	return t.Execute(ctx, 300*time.Second, func(ctx context.Context) (*CompletionResponse, error) {
		return r.Do(ctx, func(ctx context.Context) (*CompletionResponse, error) {
			return p.inner.Complete(ctx, req)
		})
	})
}
