package brain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/internal/s1_context"
	"github.com/wonny/conviction/internal/s2_components"
	"github.com/wonny/conviction/pkg/logger"
)

var now = time.Date(2024, 6, 21, 15, 0, 0, 0, time.UTC)

type stubEvaluator struct {
	readings map[string]contracts.Reading
	lastReq  contracts.ComponentRequest
}

func (s *stubEvaluator) EvaluateAll(_ context.Context, req contracts.ComponentRequest, policy contracts.WeightPolicy) map[string]contracts.Reading {
	s.lastReq = req
	out := make(map[string]contracts.Reading)
	for _, name := range policy.ComponentNames() {
		out[name] = contracts.Unavailable("stub")
	}
	for name, r := range s.readings {
		out[name] = r
	}
	return out
}

type stubMarket struct {
	price float64
	err   error
}

func (m *stubMarket) Quote(_ context.Context, ticker string) (*contracts.PriceQuote, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &contracts.PriceQuote{Ticker: ticker, Price: m.price, AsOf: now}, nil
}

func (m *stubMarket) ShortInterest(_ context.Context, _ string) (*contracts.ShortInterest, error) {
	return nil, contracts.ErrUnavailable
}

func (m *stubMarket) PriceHistory(_ context.Context, _ string, _, _ time.Time) ([]contracts.PriceBar, error) {
	return nil, contracts.ErrUnavailable
}

func (m *stubMarket) EarningsDates(_ context.Context, _ string) ([]time.Time, error) {
	return nil, contracts.ErrUnavailable
}

func canonical(ticker, insider string, daysAgo int) contracts.CanonicalTransaction {
	day := now.AddDate(0, 0, -daysAgo)
	return contracts.CanonicalTransaction{
		RawTransaction: contracts.RawTransaction{
			Ticker:          ticker,
			InsiderName:     insider,
			TransactionDate: day,
			FilingDate:      day.AddDate(0, 0, 1),
			Shares:          1000,
			PricePerShare:   decimal.NewFromInt(100),
			TotalValue:      decimal.NewFromInt(100_000),
			TransactionType: contracts.TransactionBuy,
		},
		DuplicateCount: 1,
		GroupedShares:  1000,
		GroupedValue:   decimal.NewFromInt(100_000),
	}
}

func defaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Policy:             contracts.DefaultWeightPolicy(),
		AccumulationPolicy: s1_context.DefaultAccumulationPolicy(),
		WindowDays:         30,
		MaxAgeDays:         90,
	}
}

func newTestScorer(t *testing.T, eval ComponentEvaluator, market contracts.MarketData) *Scorer {
	t.Helper()
	s, err := NewScorer(defaultScorerConfig(), eval, market, logger.NewNop())
	require.NoError(t, err)
	return s.WithClock(func() time.Time { return now })
}

func TestScorer_AllProvidersUnavailable(t *testing.T) {
	s := newTestScorer(t, &stubEvaluator{}, nil)

	res, err := s.Score(context.Background(), canonical("CMC", "A", 3), nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, res.FinalScore, 1e-9)
	assert.Equal(t, contracts.CategorySkip, res.SignalStrength)
	assert.True(t, res.InsufficientData)

	// 단독 내부자 1.10 → 0.55 → WEAK_BUY
	require.NotNil(t, res.Decision)
	assert.Equal(t, contracts.CategoryWeakBuy, res.Decision.Category)
	assert.InDelta(t, 1.10, res.Decision.ConfidenceMultiplier, 1e-9)

	assert.Equal(t, contracts.TimingUnknown, res.Timing.Category)
	assert.Equal(t, contracts.StalenessFresh, res.Staleness.Category)
	assert.Equal(t, now, res.ScoredAt)
	assert.Equal(t, "CMC", res.Transaction.Ticker)
}

func TestScorer_AccumulationFromHistory(t *testing.T) {
	eval := &stubEvaluator{}
	s := newTestScorer(t, eval, nil)

	history := []contracts.CanonicalTransaction{
		canonical("CMC", "A", 3),
		canonical("CMC", "B", 10),
		canonical("CMC", "C", 20),
		canonical("CMC", "D", 45), // 창 밖
		canonical("XYZ", "E", 1),
	}

	res, err := s.Score(context.Background(), history[0], history)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Accumulation.InsiderCount)
	assert.Equal(t, []string{"A", "B", "C"}, res.Accumulation.InsiderNames)
	assert.InDelta(t, 1.40, res.Decision.ConfidenceMultiplier, 1e-9)
	assert.Equal(t, 3, eval.lastReq.Accumulation.InsiderCount)
	assert.Len(t, eval.lastReq.History, len(history))
}

func TestScorer_AppendsTransactionToHistory(t *testing.T) {
	eval := &stubEvaluator{}
	s := newTestScorer(t, eval, nil)

	res, err := s.Score(context.Background(), canonical("CMC", "A", 3), []contracts.CanonicalTransaction{canonical("CMC", "B", 4)})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Accumulation.InsiderCount)
	assert.Len(t, eval.lastReq.History, 2)
}

func TestScorer_StaleSignalFiltered(t *testing.T) {
	s := newTestScorer(t, &stubEvaluator{}, nil)

	_, err := s.Score(context.Background(), canonical("CMC", "A", 91), nil)
	assert.True(t, errors.Is(err, ErrStaleSignal))

	_, err = s.Score(context.Background(), canonical("CMC", "A", 90), nil)
	assert.NoError(t, err)
}

func TestScorer_TimingFromQuote(t *testing.T) {
	eval := &stubEvaluator{}
	s := newTestScorer(t, eval, &stubMarket{price: 110})

	res, err := s.Score(context.Background(), canonical("CMC", "A", 10), nil)
	require.NoError(t, err)

	assert.Equal(t, contracts.TimingOptimal, res.Timing.Category)
	assert.InDelta(t, 10.0, res.Timing.PriceChangePct, 1e-9)
	assert.Equal(t, contracts.TimingOptimal, eval.lastReq.Timing.Category)

	failing := newTestScorer(t, &stubEvaluator{}, &stubMarket{err: errors.New("timeout")})
	res, err = failing.Score(context.Background(), canonical("CMC", "A", 10), nil)
	require.NoError(t, err)
	assert.Equal(t, contracts.TimingUnknown, res.Timing.Category)
}

func TestScorer_StrongSignal(t *testing.T) {
	eval := &stubEvaluator{readings: map[string]contracts.Reading{}}
	for _, name := range contracts.DefaultWeightPolicy().ComponentNames() {
		eval.readings[name] = contracts.ScoreReading(0.8, "stub", nil)
	}
	eval.readings[contracts.ComponentFilingSpeed] = contracts.ScoreAndMultiplierReading(1.0, 1.4, "stub", nil)
	s := newTestScorer(t, eval, nil)

	res, err := s.Score(context.Background(), canonical("CMC", "A", 3), nil)
	require.NoError(t, err)

	// 0.8×0.85 + 1.0×0.15 = 0.83, × 1.4 → 1.0 (clamp)
	assert.InDelta(t, 0.83, res.WeightedScore, 1e-9)
	assert.Equal(t, 1.0, res.FinalScore)
	assert.Equal(t, contracts.CategoryStrongBuy, res.Decision.Category)
	assert.False(t, res.InsufficientData)
}

func TestScorer_CancelledContext(t *testing.T) {
	s := newTestScorer(t, &stubEvaluator{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Score(ctx, canonical("CMC", "A", 3), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewScorer_Policy(t *testing.T) {
	cfg := defaultScorerConfig()
	cfg.Policy.Weights[contracts.ComponentInsiderCluster] = 0.31 // 합 1.11

	s, err := NewScorer(cfg, &stubEvaluator{}, nil, logger.NewNop())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Policy().WeightSum(), 1e-9)

	bad := defaultScorerConfig()
	bad.Policy.NeutralScore = 2
	_, err = NewScorer(bad, &stubEvaluator{}, nil, logger.NewNop())
	assert.ErrorIs(t, err, contracts.ErrInvalidPolicy)
}

func TestScorer_WithRegistry(t *testing.T) {
	reg := s2_components.NewRegistry(time.Second, logger.NewNop()).Register(
		s2_components.NewInsiderClusterProvider(),
		s2_components.NewFilingSpeedProvider(),
		s2_components.NewCommitmentProvider(0),
		s2_components.NewEntryTimingProvider(),
		s2_components.NewStalenessProvider(),
		s2_components.NewRedFlagProvider(nil),
	)
	s := newTestScorer(t, reg, &stubMarket{price: 102})

	history := []contracts.CanonicalTransaction{canonical("CMC", "A", 3), canonical("CMC", "B", 5)}
	res, err := s.Score(context.Background(), history[0], history)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.FinalScore, 0.0)
	assert.LessOrEqual(t, res.FinalScore, 1.0)

	cluster, ok := res.Component(contracts.ComponentInsiderCluster)
	require.True(t, ok)
	assert.False(t, cluster.Substituted)
	assert.InDelta(t, 0.5, cluster.Score, 1e-9)

	news, ok := res.Component(contracts.ComponentNewsSentiment)
	require.True(t, ok)
	assert.True(t, news.Substituted)
	assert.Equal(t, 0.5, news.Score)

	staleness, ok := res.Component(contracts.ComponentStaleness)
	require.True(t, ok)
	assert.Equal(t, 1.0, staleness.Multiplier)
}
