package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/conviction/internal/brain"
	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/internal/strategyconfig"
	"github.com/wonny/conviction/pkg/logger"
)

type fakeScorer struct {
	got    []contracts.RawTransaction
	dryRun bool
	err    error
}

func (f *fakeScorer) ScoreRaw(ctx context.Context, raw []contracts.RawTransaction, dryRun bool) (*brain.RunResult, error) {
	f.got = raw
	f.dryRun = dryRun
	if f.err != nil {
		return nil, f.err
	}
	return &brain.RunResult{
		Success:        true,
		RawCount:       len(raw),
		CanonicalCount: len(raw),
		Batch: &brain.BatchResult{
			RunID:    uuid.New(),
			Results:  []*contracts.ConvictionResult{{Ticker: raw[0].Ticker, FinalScore: 0.7}},
			Filtered: 0,
		},
		Duration: 5 * time.Millisecond,
	}, nil
}

type fakeResults struct {
	byTicker map[string]*contracts.ConvictionResult
	err      error
}

func (f *fakeResults) SaveBatch(ctx context.Context, runID string, results []*contracts.ConvictionResult) error {
	return nil
}

func (f *fakeResults) GetLatestByTicker(ctx context.Context, ticker string) (*contracts.ConvictionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.byTicker[ticker]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return r, nil
}

func newTestRouter(h *ScoringHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/score", h.Score).Methods("POST")
	r.HandleFunc("/api/results/{ticker}", h.GetLatest).Methods("GET")
	r.HandleFunc("/api/policy", h.GetPolicy).Methods("GET")
	return r
}

func TestScore(t *testing.T) {
	scorer := &fakeScorer{}
	h := NewScoringHandler(scorer, nil, nil, logger.NewNop())

	body, err := json.Marshal(ScoreRequest{
		Transactions: []contracts.RawTransaction{{
			Ticker:          "CMC",
			InsiderName:     "Jane Doe",
			TransactionDate: time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC),
			Shares:          1000,
		}},
		DryRun: true,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/score", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, scorer.dryRun)
	require.Len(t, scorer.got, 1)

	var resp ScoreResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 1, resp.RawCount)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "CMC", resp.Results[0].Ticker)
}

func TestScore_BadRequests(t *testing.T) {
	h := NewScoringHandler(&fakeScorer{}, nil, nil, logger.NewNop())
	router := newTestRouter(h)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"empty", `{"transactions":[]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/score", bytes.NewBufferString(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestScore_ScorerError(t *testing.T) {
	h := NewScoringHandler(&fakeScorer{err: errors.New("boom")}, nil, nil, logger.NewNop())

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/score",
		bytes.NewBufferString(`{"transactions":[{"ticker":"CMC","insider_name":"A"}]}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetLatest(t *testing.T) {
	results := &fakeResults{byTicker: map[string]*contracts.ConvictionResult{
		"CMC": {Ticker: "CMC", FinalScore: 0.8, SignalStrength: "BUY"},
	}}
	h := NewScoringHandler(&fakeScorer{}, results, nil, logger.NewNop())
	router := newTestRouter(h)

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results/CMC", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ResultResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "CMC", resp.Result.Ticker)
		assert.Contains(t, resp.Explanation, "CMC")
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results/XYZ", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("store error", func(t *testing.T) {
		failing := NewScoringHandler(&fakeScorer{}, &fakeResults{err: errors.New("db down")}, nil, logger.NewNop())
		rec := httptest.NewRecorder()
		newTestRouter(failing).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results/CMC", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("no store", func(t *testing.T) {
		bare := NewScoringHandler(&fakeScorer{}, nil, nil, logger.NewNop())
		rec := httptest.NewRecorder()
		newTestRouter(bare).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results/CMC", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGetPolicy(t *testing.T) {
	snap := &strategyconfig.PolicySnapshot{PolicyID: "insider_conviction", PolicyVersion: "v2.1", PolicyHash: "abc"}
	h := NewScoringHandler(&fakeScorer{}, nil, snap, logger.NewNop())

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/policy", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "v2.1")
}
