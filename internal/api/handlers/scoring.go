package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/conviction/internal/brain"
	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/internal/strategyconfig"
	"github.com/wonny/conviction/pkg/logger"
)

// maxScoreRequestSize bounds the number of filings accepted per request
const maxScoreRequestSize = 1000

// RawScorer scores raw filings end to end
type RawScorer interface {
	ScoreRaw(ctx context.Context, raw []contracts.RawTransaction, dryRun bool) (*brain.RunResult, error)
}

// ScoringHandler handles scoring API endpoints
// ⭐ SSOT: 스코어링 API 핸들러는 이 구조체에서만
type ScoringHandler struct {
	scorer  RawScorer
	results contracts.ResultRepository
	policy  *strategyconfig.PolicySnapshot
	logger  *logger.Logger
}

// NewScoringHandler creates a new scoring handler. results may be nil (no persistence).
func NewScoringHandler(scorer RawScorer, results contracts.ResultRepository, policy *strategyconfig.PolicySnapshot, log *logger.Logger) *ScoringHandler {
	return &ScoringHandler{
		scorer:  scorer,
		results: results,
		policy:  policy,
		logger:  log,
	}
}

// ScoreRequest represents a scoring request
type ScoreRequest struct {
	Transactions []contracts.RawTransaction `json:"transactions"`
	DryRun       bool                       `json:"dry_run"`
}

// ScoreResponse represents a scoring response
type ScoreResponse struct {
	RunID          string                        `json:"run_id"`
	RawCount       int                           `json:"raw_count"`
	CanonicalCount int                           `json:"canonical_count"`
	Filtered       int                           `json:"filtered"`
	Results        []*contracts.ConvictionResult `json:"results"`
	Failures       []brain.ItemFailure           `json:"failures,omitempty"`
	DurationMs     int64                         `json:"duration_ms"`
}

// Score normalizes and scores the posted filings
// POST /api/score
func (h *ScoringHandler) Score(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Transactions) == 0 {
		respondError(w, http.StatusBadRequest, "transactions must not be empty")
		return
	}
	if len(req.Transactions) > maxScoreRequestSize {
		respondError(w, http.StatusRequestEntityTooLarge, "too many transactions")
		return
	}

	run, err := h.scorer.ScoreRaw(ctx, req.Transactions, req.DryRun)
	if err != nil {
		logger.FromContext(r.Context(), h.logger).WithError(err).Error("Scoring request failed")
		respondError(w, http.StatusInternalServerError, "Scoring failed")
		return
	}

	resp := ScoreResponse{
		RawCount:       run.RawCount,
		CanonicalCount: run.CanonicalCount,
		DurationMs:     run.Duration.Milliseconds(),
		Results:        []*contracts.ConvictionResult{},
	}
	if run.Batch != nil {
		resp.RunID = run.Batch.RunID.String()
		resp.Filtered = run.Batch.Filtered
		resp.Results = run.Batch.Results
		resp.Failures = run.Batch.Failures
	}

	respondJSON(w, http.StatusOK, resp)
}

// ResultResponse wraps a stored result with its explanation
type ResultResponse struct {
	Result      *contracts.ConvictionResult `json:"result"`
	Explanation string                      `json:"explanation"`
}

// GetLatest returns the latest stored result for a ticker
// GET /api/results/{ticker}
func (h *ScoringHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		respondError(w, http.StatusServiceUnavailable, "Result store not configured")
		return
	}

	ticker := mux.Vars(r)["ticker"]
	res, err := h.results.GetLatestByTicker(r.Context(), ticker)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No result for ticker")
		return
	}
	if err != nil {
		logger.FromContext(r.Context(), h.logger).WithError(err).WithField("ticker", ticker).Error("Failed to get result")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve result")
		return
	}

	respondJSON(w, http.StatusOK, ResultResponse{Result: res, Explanation: res.Explain()})
}

// GetPolicy returns the active weight policy snapshot
// GET /api/policy
func (h *ScoringHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	if h.policy == nil {
		respondError(w, http.StatusNotFound, "No policy snapshot")
		return
	}
	respondJSON(w, http.StatusOK, h.policy)
}
