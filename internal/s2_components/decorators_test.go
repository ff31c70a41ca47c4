package s2_components

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/config"
	"github.com/wonny/conviction/pkg/httputil"
	"github.com/wonny/conviction/pkg/logger"
	"github.com/wonny/conviction/pkg/redis"
)

type funcProvider struct {
	name  string
	calls int
	fn    func(ctx context.Context) contracts.Reading
}

func (p *funcProvider) Name() string { return p.name }

func (p *funcProvider) Evaluate(ctx context.Context, _ contracts.ComponentRequest) contracts.Reading {
	p.calls++
	return p.fn(ctx)
}

func TestSafeProvider_RecoversPanic(t *testing.T) {
	p := NewSafeProvider(&funcProvider{name: "news_sentiment", fn: func(context.Context) contracts.Reading {
		panic("nil map")
	}}, time.Second)

	r := p.Evaluate(context.Background(), request(txn("CMC", "A", asOf, contracts.TransactionBuy)))
	assert.False(t, r.IsAvailable())
	assert.Equal(t, contracts.SourceError, r.Source())
	assert.Contains(t, r.Reason(), "panicked")
}

func TestSafeProvider_Timeout(t *testing.T) {
	p := NewSafeProvider(&funcProvider{name: "options_flow", fn: func(ctx context.Context) contracts.Reading {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return contracts.ScoreReading(1, "late", nil)
	}}, 20*time.Millisecond)

	r := p.Evaluate(context.Background(), request(txn("CMC", "A", asOf, contracts.TransactionBuy)))
	assert.Equal(t, contracts.SourceError, r.Source())
	assert.Contains(t, r.Reason(), "deadline")
}

func TestSafeProvider_PassesThrough(t *testing.T) {
	p := NewSafeProvider(&funcProvider{name: "x", fn: func(context.Context) contracts.Reading {
		return contracts.ScoreReading(0.7, "ok", nil)
	}}, 0)

	score, ok := p.Evaluate(context.Background(), request(txn("CMC", "A", asOf, contracts.TransactionBuy))).Score()
	require.True(t, ok)
	assert.Equal(t, 0.7, score)
}

func TestCachedProvider_DisabledCacheIsPassthrough(t *testing.T) {
	inner := &funcProvider{name: "short_interest", fn: func(context.Context) contracts.Reading {
		return contracts.ScoreReading(0.4, "market_data", nil)
	}}
	cache := redis.NewCache(redis.NewFromClient(nil), "test")
	p := NewCachedProvider(inner, cache, logger.NewNop())

	req := request(txn("CMC", "A", asOf, contracts.TransactionBuy))
	p.Evaluate(context.Background(), req)
	p.Evaluate(context.Background(), req)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "short_interest", p.Name())
}

func TestRemoteProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/news_sentiment/CMC":
			_, _ = w.Write([]byte(`{"score":0.8,"multiplier":1.1,"source":"newsapi"}`))
		case "/news_sentiment/EMPTY":
			_, _ = w.Write([]byte(`{}`))
		case "/news_sentiment/ERR":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	httpClient := httputil.New(&config.Config{}, logger.NewNop()).DisableRetry()
	p := NewRemoteProvider(contracts.ComponentNewsSentiment, server.URL+"/", httpClient)

	r := p.Evaluate(context.Background(), request(txn("cmc", "A", asOf, contracts.TransactionBuy)))
	score, _ := r.Score()
	mult, _ := r.Multiplier()
	assert.Equal(t, 0.8, score)
	assert.Equal(t, 1.1, mult)
	assert.Equal(t, "newsapi", r.Source())

	assert.Equal(t, contracts.SourceUnavailable,
		p.Evaluate(context.Background(), request(txn("NONE", "A", asOf, contracts.TransactionBuy))).Source())
	assert.Equal(t, contracts.SourceUnavailable,
		p.Evaluate(context.Background(), request(txn("EMPTY", "A", asOf, contracts.TransactionBuy))).Source())
	assert.Equal(t, contracts.SourceError,
		p.Evaluate(context.Background(), request(txn("ERR", "A", asOf, contracts.TransactionBuy))).Source())

	unconfigured := NewRemoteProvider(contracts.ComponentOptionsFlow, "", httpClient)
	assert.False(t, unconfigured.Evaluate(context.Background(), request(txn("CMC", "A", asOf, contracts.TransactionBuy))).IsAvailable())
}

func TestRegistry_EvaluateAll(t *testing.T) {
	reg := NewRegistry(time.Second, logger.NewNop()).Register(
		NewFilingSpeedProvider(),
		NewStalenessProvider(),
		&funcProvider{name: contracts.ComponentOptionsFlow, fn: func(context.Context) contracts.Reading {
			panic("upstream bug")
		}},
	)

	policy := contracts.DefaultWeightPolicy()
	readings := reg.EvaluateAll(context.Background(), request(txn("CMC", "A", asOf.AddDate(0, 0, -3), contracts.TransactionBuy)), policy)

	for _, name := range policy.ComponentNames() {
		assert.Contains(t, readings, name)
	}
	assert.Contains(t, readings, contracts.ComponentStaleness)

	assert.True(t, readings[contracts.ComponentFilingSpeed].IsAvailable())
	assert.Equal(t, contracts.SourceError, readings[contracts.ComponentOptionsFlow].Source())
	assert.Equal(t, "no provider configured", readings[contracts.ComponentNewsSentiment].Reason())
	assert.Equal(t, []string{contracts.ComponentFilingSpeed, contracts.ComponentOptionsFlow, contracts.ComponentStaleness}, reg.Names())
}
