package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/conviction/internal/contracts"
)

// ResultRepository implements contracts.ResultRepository
// ⭐ SSOT: 컨빅션 결과 저장/조회는 여기서만
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new result repository
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// SaveBatch stores one batch run in a single transaction
func (r *ResultRepository) SaveBatch(ctx context.Context, runID string, results []*contracts.ConvictionResult) error {
	if len(results) == 0 {
		return nil
	}

	query := `
		INSERT INTO insider.conviction_results (
			run_id, ticker, insider_name, transaction_date,
			final_score, weighted_score, total_multiplier,
			category, policy_version, insufficient_data,
			payload, scored_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	batch := &pgx.Batch{}
	for _, res := range results {
		row, err := resultRow(res)
		if err != nil {
			return fmt.Errorf("failed to encode result for %s: %w", res.Ticker, err)
		}
		batch.Queue(query, append([]interface{}{runID}, row...)...)
	}

	// 한 run의 결과는 전부 저장되거나 전부 롤백
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert results: %w", err)
		}
		return nil
	})
}

// GetLatestByTicker returns the most recently scored result for ticker
func (r *ResultRepository) GetLatestByTicker(ctx context.Context, ticker string) (*contracts.ConvictionResult, error) {
	query := `
		SELECT payload
		FROM insider.conviction_results
		WHERE ticker = $1
		ORDER BY scored_at DESC, id DESC
		LIMIT 1
	`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, strings.ToUpper(ticker)).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("result for %s: %w", ticker, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query result: %w", err)
	}

	var res contracts.ConvictionResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("failed to decode result payload: %w", err)
	}
	return &res, nil
}

// resultRow maps a result onto the insert columns after run_id
func resultRow(res *contracts.ConvictionResult) ([]interface{}, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}

	category := res.SignalStrength
	if res.Decision != nil {
		category = res.Decision.Category
	}

	var insider, txDate interface{}
	if res.Transaction != nil {
		insider = res.Transaction.InsiderName
		txDate = res.Transaction.TransactionDate
	}

	return []interface{}{
		res.Ticker, insider, txDate,
		res.FinalScore, res.WeightedScore, res.TotalMultiplier,
		string(category), res.PolicyVersion, res.InsufficientData,
		payload, res.ScoredAt,
	}, nil
}
