package brain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/logger"
)

type fakeScorer struct {
	inFlight int32
	peak     int32
	delay    time.Duration
	mu       sync.Mutex
	seen     []string
	histLen  int
}

func (f *fakeScorer) Score(ctx context.Context, txn contracts.CanonicalTransaction, history []contracts.CanonicalTransaction) (*contracts.ConvictionResult, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, cur) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	f.seen = append(f.seen, txn.Ticker)
	f.histLen = len(history)
	f.mu.Unlock()

	switch txn.Ticker {
	case "BAD":
		return nil, errors.New("provider exploded")
	case "OLD":
		return nil, fmt.Errorf("OLD: %w", ErrStaleSignal)
	}
	return &contracts.ConvictionResult{Ticker: txn.Ticker, FinalScore: float64(len(txn.Ticker)) / 10}, nil
}

func tickers(names ...string) []contracts.CanonicalTransaction {
	out := make([]contracts.CanonicalTransaction, 0, len(names))
	for _, n := range names {
		out = append(out, canonical(n, "A", 1))
	}
	return out
}

func TestScoreAll_Sequential(t *testing.T) {
	scorer := &fakeScorer{}
	b := NewBatchCoordinator(scorer, BatchConfig{SequentialThreshold: 5, MaxWorkers: 3}, nil, logger.NewNop())

	res, err := b.ScoreAll(context.Background(), tickers("AA", "BAD", "OLD", "CCCC"))
	require.NoError(t, err)

	assert.Len(t, res.Results, 2)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "BAD", res.Failures[0].Ticker)
	assert.Contains(t, res.Failures[0].Error, "exploded")
	assert.Equal(t, 1, res.Filtered)
	assert.NotEqual(t, uuid.Nil, res.RunID)

	// 순차 처리: 입력 순서 유지, 동시 실행 없음
	assert.Equal(t, []string{"AA", "BAD", "OLD", "CCCC"}, scorer.seen)
	assert.Equal(t, int32(1), scorer.peak)
}

func TestScoreAll_BoundedConcurrency(t *testing.T) {
	scorer := &fakeScorer{delay: 10 * time.Millisecond}
	b := NewBatchCoordinator(scorer, BatchConfig{SequentialThreshold: 5, MaxWorkers: 3}, nil, logger.NewNop())

	names := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		names = append(names, fmt.Sprintf("T%02d", i))
	}
	names = append(names, "BAD")

	res, err := b.ScoreAll(context.Background(), tickers(names...))
	require.NoError(t, err)

	assert.Len(t, res.Results, 20)
	assert.Len(t, res.Failures, 1)
	assert.LessOrEqual(t, scorer.peak, int32(3))
	assert.Greater(t, res.Duration, time.Duration(0))

	contracts.SortByScore(res.Results)
	assert.Equal(t, "T00", res.Results[0].Ticker)
}

func TestScoreAll_Empty(t *testing.T) {
	b := NewBatchCoordinator(&fakeScorer{}, BatchConfig{}, nil, logger.NewNop())

	res, err := b.ScoreAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Empty(t, res.Failures)
}

func TestScoreAll_CancelledContext(t *testing.T) {
	b := NewBatchCoordinator(&fakeScorer{}, BatchConfig{}, nil, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := b.ScoreAll(ctx, tickers("AA", "BB"))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Results)
}
