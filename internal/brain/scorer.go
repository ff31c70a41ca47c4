package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/internal/s1_context"
	"github.com/wonny/conviction/internal/s3_fusion"
	"github.com/wonny/conviction/internal/s4_category"
	"github.com/wonny/conviction/pkg/logger"
)

// ErrStaleSignal marks transactions older than the configured max age
var ErrStaleSignal = errors.New("signal older than max age")

// ScorerConfig holds the per-run scoring parameters
type ScorerConfig struct {
	Policy             contracts.WeightPolicy
	AccumulationPolicy s1_context.AccumulationPolicy
	WindowDays         int
	MaxAgeDays         int // 0 = no filter
}

// ComponentEvaluator supplies one reading per component for a request
type ComponentEvaluator interface {
	EvaluateAll(ctx context.Context, req contracts.ComponentRequest, policy contracts.WeightPolicy) map[string]contracts.Reading
}

// Scorer runs S1 → S2 → S3 → S4 for one canonical transaction
// ⭐ SSOT: 단일 거래 스코어링 흐름은 여기서만
type Scorer struct {
	engine       *s3_fusion.Engine
	components   ComponentEvaluator
	accumulation *s1_context.AccumulationDetector
	timing       *s1_context.TimingAnalyzer
	market       contracts.MarketData
	cfg          ScorerConfig
	now          func() time.Time
	logger       *logger.Logger
}

// NewScorer creates a scorer. A policy whose weights drift from 1.0 is normalized;
// any other invalid policy is rejected. market may be nil (timing becomes UNKNOWN).
func NewScorer(cfg ScorerConfig, components ComponentEvaluator, market contracts.MarketData, log *logger.Logger) (*Scorer, error) {
	if err := cfg.Policy.Validate(); err != nil {
		normalized := cfg.Policy.Normalized()
		if nerr := normalized.Validate(); nerr != nil {
			return nil, fmt.Errorf("weight policy: %w", err)
		}
		log.WithFields(map[string]interface{}{
			"version":    cfg.Policy.Version,
			"weight_sum": cfg.Policy.WeightSum(),
		}).Warn("Weight policy normalized")
		cfg.Policy = normalized
	}

	return &Scorer{
		engine:       s3_fusion.NewEngine(log),
		components:   components,
		accumulation: s1_context.NewAccumulationDetector(cfg.AccumulationPolicy),
		timing:       s1_context.NewTimingAnalyzer(),
		market:       market,
		cfg:          cfg,
		now:          time.Now,
		logger:       log.Module("scorer"),
	}, nil
}

// WithClock overrides the time source
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Policy returns the weight policy in use
func (s *Scorer) Policy() contracts.WeightPolicy {
	return s.cfg.Policy
}

// Score computes the conviction result for txn. history is every known transaction
// for the batch (txn included or not); it drives accumulation and commitment.
func (s *Scorer) Score(ctx context.Context, txn contracts.CanonicalTransaction, history []contracts.CanonicalTransaction) (*contracts.ConvictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	ticker := txn.Key().Ticker

	// S1: 컨텍스트 신호
	staleness := s1_context.CalculateStaleness(txn.TransactionDate, now)
	if s1_context.ShouldFilter(staleness.DaysOld, s.cfg.MaxAgeDays) {
		return nil, fmt.Errorf("%s %d days old: %w", ticker, staleness.DaysOld, ErrStaleSignal)
	}

	if !containsKey(history, txn.Key()) {
		history = append(append(make([]contracts.CanonicalTransaction, 0, len(history)+1), history...), txn)
	}
	acc := s.accumulation.Detect(ticker, history, s.cfg.WindowDays, now)
	timing := s.analyzeTiming(ctx, txn, now)

	// S2: 컴포넌트
	req := contracts.ComponentRequest{
		Transaction:  txn,
		History:      history,
		Accumulation: acc,
		Timing:       timing,
		AsOf:         now,
	}
	readings := s.components.EvaluateAll(ctx, req, s.cfg.Policy)

	// S3: 융합
	result := s.engine.Fuse(ticker, readings, s.cfg.Policy)

	// S4: 카테고리 (매집 신뢰도 반영)
	decision := s4_category.Categorize(result.FinalScore, acc.ConfidenceMultiplier)

	txnCopy := txn
	result.Decision = &decision
	result.Accumulation = &acc
	result.Timing = &timing
	result.Staleness = &staleness
	result.Transaction = &txnCopy
	result.ScoredAt = now

	s.logger.WithFields(map[string]interface{}{
		"ticker":   ticker,
		"insider":  txn.InsiderName,
		"final":    result.FinalScore,
		"category": string(decision.Category),
		"coverage": result.Coverage,
	}).Debug("Scored transaction")

	return &result, nil
}

// analyzeTiming classifies entry timing from a live quote; any failure yields UNKNOWN
func (s *Scorer) analyzeTiming(ctx context.Context, txn contracts.CanonicalTransaction, now time.Time) contracts.TimingContext {
	price, _ := txn.PricePerShare.Float64()
	if s.market == nil || price <= 0 {
		return s1_context.UnknownTiming()
	}

	quote, err := s.market.Quote(ctx, txn.Key().Ticker)
	if err != nil || quote == nil {
		if err != nil && !errors.Is(err, contracts.ErrUnavailable) {
			s.logger.WithError(err).WithField("ticker", txn.Key().Ticker).Warn("Quote failed, timing unknown")
		}
		return s1_context.UnknownTiming()
	}

	return s.timing.Analyze(s1_context.TimingInput{
		Ticker:             txn.Key().Ticker,
		TransactionDate:    txn.TransactionDate,
		CurrentPrice:       quote.Price,
		PriceAtTransaction: price,
	}, now)
}

func containsKey(txns []contracts.CanonicalTransaction, key contracts.DedupKey) bool {
	for _, t := range txns {
		if t.Key() == key {
			return true
		}
	}
	return false
}
