package repos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/conviction/internal/contracts"
)

// TransactionRepository implements contracts.TransactionRepository
// ⭐ SSOT: 내부자 거래 저장/조회는 여기서만
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const selectTransactions = `
	SELECT
		ticker, insider_name, COALESCE(insider_title, ''),
		transaction_date, filing_date,
		shares, price_per_share, total_value, transaction_type,
		filing_count
	FROM insider.transactions
`

// FetchSince returns raw filings traded on or after since, oldest first
func (r *TransactionRepository) FetchSince(ctx context.Context, since time.Time) ([]contracts.RawTransaction, error) {
	query := selectTransactions + `
		WHERE transaction_date >= $1
		ORDER BY transaction_date, id
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return scanTransactions(rows)
}

// GetByTicker returns raw filings for one ticker traded on or after since
func (r *TransactionRepository) GetByTicker(ctx context.Context, ticker string, since time.Time) ([]contracts.RawTransaction, error) {
	query := selectTransactions + `
		WHERE ticker = $1 AND transaction_date >= $2
		ORDER BY transaction_date, id
	`

	rows, err := r.pool.Query(ctx, query, strings.ToUpper(ticker), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for %s: %w", ticker, err)
	}
	return scanTransactions(rows)
}

// SaveBatch stores raw filings. Identical copies inside one batch become a
// single row whose filing_count is the copy count, so reading the rows back
// reproduces the same duplicate groups the stream path scores. Re-delivering
// the same batch is a no-op; a later delivery with more copies raises the count.
// Returns the number of rows inserted or updated.
func (r *TransactionRepository) SaveBatch(ctx context.Context, txns []contracts.RawTransaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO insider.transactions (
			ticker, insider_name, insider_title,
			transaction_date, filing_date,
			shares, price_per_share, total_value, transaction_type,
			filing_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (ticker, insider_name, transaction_date, shares,
			COALESCE(price_per_share, 0), COALESCE(filing_date, DATE '1970-01-01'), total_value, transaction_type)
		DO UPDATE SET filing_count = EXCLUDED.filing_count
		WHERE insider.transactions.filing_count < EXCLUDED.filing_count
	`

	copies := collapseCopies(txns)

	batch := &pgx.Batch{}
	for _, c := range copies {
		batch.Queue(query, append(insertArgs(c.txn), c.count)...)
	}

	stored := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for _, c := range copies {
			tag, err := br.Exec()
			if err != nil {
				return fmt.Errorf("failed to insert transaction (%s): %w", c.txn.Ticker, err)
			}
			stored += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}

	return stored, nil
}

type filingCopies struct {
	txn   contracts.RawTransaction
	count int
}

// collapseCopies folds filings that map onto the same stored row, keeping
// first-appearance order
func collapseCopies(txns []contracts.RawTransaction) []filingCopies {
	index := make(map[string]int, len(txns))
	out := make([]filingCopies, 0, len(txns))

	for _, t := range txns {
		key := storedIdentity(t)
		if i, ok := index[key]; ok {
			out[i].count++
			continue
		}
		index[key] = len(out)
		out = append(out, filingCopies{txn: t, count: 1})
	}
	return out
}

// storedIdentity mirrors the columns of uq_transactions_filing
func storedIdentity(t contracts.RawTransaction) string {
	txType := t.TransactionType
	if txType == "" {
		txType = contracts.TransactionBuy
	}
	filed := ""
	if !t.FilingDate.IsZero() {
		filed = t.FilingDate.Format("2006-01-02")
	}
	return strings.Join([]string{
		strings.ToUpper(strings.TrimSpace(t.Ticker)),
		strings.TrimSpace(t.InsiderName),
		t.TransactionDate.Format("2006-01-02"),
		filed,
		fmt.Sprint(t.Shares),
		t.PricePerShare.String(),
		t.TotalValue.String(),
		string(txType),
	}, "|")
}

// insertArgs maps a filing onto the insert columns.
// Zero price and zero filing date are stored as NULL.
func insertArgs(t contracts.RawTransaction) []interface{} {
	var title, filingDate, price interface{}
	if t.InsiderTitle != "" {
		title = t.InsiderTitle
	}
	if !t.FilingDate.IsZero() {
		filingDate = t.FilingDate
	}
	if !t.PricePerShare.IsZero() {
		price = t.PricePerShare
	}

	txType := t.TransactionType
	if txType == "" {
		txType = contracts.TransactionBuy
	}

	return []interface{}{
		strings.ToUpper(strings.TrimSpace(t.Ticker)),
		strings.TrimSpace(t.InsiderName),
		title,
		t.TransactionDate,
		filingDate,
		t.Shares,
		price,
		t.TotalValue,
		string(txType),
	}
}

func scanTransactions(rows pgx.Rows) ([]contracts.RawTransaction, error) {
	defer rows.Close()

	var out []contracts.RawTransaction
	for rows.Next() {
		var (
			t          contracts.RawTransaction
			filingDate *time.Time
			price      decimal.NullDecimal
			txType     string
			copies     int
		)

		err := rows.Scan(
			&t.Ticker, &t.InsiderName, &t.InsiderTitle,
			&t.TransactionDate, &filingDate,
			&t.Shares, &price, &t.TotalValue, &txType,
			&copies,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if filingDate != nil {
			t.FilingDate = *filingDate
		}
		if price.Valid {
			t.PricePerShare = price.Decimal
		}
		t.TransactionType = contracts.TransactionType(txType)

		// 사본 수만큼 펼쳐서 정규화 시 duplicate_count 가 복원되도록
		for i := 0; i < max(copies, 1); i++ {
			out = append(out, t)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}
