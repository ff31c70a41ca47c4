package s2_components

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/conviction/internal/contracts"
)

// SafeProvider bounds a provider with a timeout and turns panics into failed readings
type SafeProvider struct {
	inner   contracts.ComponentProvider
	timeout time.Duration
}

// NewSafeProvider wraps inner. timeout <= 0 only honours the caller's context.
func NewSafeProvider(inner contracts.ComponentProvider, timeout time.Duration) *SafeProvider {
	return &SafeProvider{inner: inner, timeout: timeout}
}

// Name returns the wrapped component name
func (p *SafeProvider) Name() string { return p.inner.Name() }

// Evaluate never panics and returns once the deadline passes even if inner is still running
func (p *SafeProvider) Evaluate(ctx context.Context, req contracts.ComponentRequest) contracts.Reading {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	done := make(chan contracts.Reading, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- contracts.Failed(fmt.Errorf("provider %s panicked: %v", p.inner.Name(), r))
			}
		}()
		done <- p.inner.Evaluate(ctx, req)
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return contracts.Failed(fmt.Errorf("provider %s: %w", p.inner.Name(), ctx.Err()))
	}
}
