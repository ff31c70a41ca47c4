package s2_components

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/logger"
)

// DefaultProviderTimeout bounds each provider call inside a registry
const DefaultProviderTimeout = 10 * time.Second

// Registry holds the component providers used for scoring
// ⭐ SSOT: 컴포넌트 제공자 목록은 여기서만
type Registry struct {
	providers map[string]contracts.ComponentProvider
	timeout   time.Duration
	logger    *logger.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(timeout time.Duration, log *logger.Logger) *Registry {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Registry{
		providers: make(map[string]contracts.ComponentProvider),
		timeout:   timeout,
		logger:    log.Module("components"),
	}
}

// Register adds providers, wrapping each in a SafeProvider. A later provider replaces an earlier one of the same name.
func (r *Registry) Register(providers ...contracts.ComponentProvider) *Registry {
	for _, p := range providers {
		r.providers[p.Name()] = NewSafeProvider(p, r.timeout)
	}
	return r
}

// Names returns the registered component names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EvaluateAll runs every provider concurrently and returns one reading per component.
// Weighted policy components with no provider are reported Unavailable so the engine substitutes them.
func (r *Registry) EvaluateAll(ctx context.Context, req contracts.ComponentRequest, policy contracts.WeightPolicy) map[string]contracts.Reading {
	readings := make(map[string]contracts.Reading, len(r.providers)+len(policy.Weights))
	var mu sync.Mutex
	var g errgroup.Group

	for name, p := range r.providers {
		g.Go(func() error {
			reading := p.Evaluate(ctx, req)
			mu.Lock()
			readings[name] = reading
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // providers report failures as readings

	for _, name := range policy.ComponentNames() {
		if _, ok := readings[name]; !ok && policy.IsWeighted(name) {
			readings[name] = contracts.Unavailable("no provider configured")
		}
	}

	log := r.logger
	if l := logger.FromContext(ctx, nil); l != nil {
		log = l.Module("components")
	}
	if !log.Enabled(zerolog.DebugLevel) {
		return readings
	}

	for _, name := range sortedKeys(readings) {
		if rd := readings[name]; !rd.IsAvailable() {
			log.WithFields(map[string]interface{}{
				"ticker":    req.Ticker(),
				"component": name,
				"source":    rd.Source(),
				"reason":    rd.Reason(),
			}).Debug("Component unavailable")
		}
	}

	return readings
}

func sortedKeys(m map[string]contracts.Reading) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
