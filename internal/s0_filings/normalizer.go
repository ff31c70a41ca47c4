package s0_filings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/logger"
)

// Normalizer collapses repeated filings of one economic event into canonical transactions
// ⭐ SSOT: 원본 거래 중복 제거/그룹핑은 여기서만
type Normalizer struct {
	validate *validator.Validate
	logger   *logger.Logger
}

// NewNormalizer creates a new normalizer
func NewNormalizer(log *logger.Logger) *Normalizer {
	return &Normalizer{
		validate: validator.New(),
		logger:   log,
	}
}

// Normalize groups raw filings by (ticker, insider, day, shares, price).
// Output holds one record per key in order of first appearance; the first record of
// each group is the representative. Malformed records are dropped with a warning.
func (n *Normalizer) Normalize(raw []contracts.RawTransaction) []contracts.CanonicalTransaction {
	singles := make([]contracts.CanonicalTransaction, 0, len(raw))
	for i, t := range raw {
		if err := n.Check(t); err != nil {
			n.logger.WithFields(map[string]interface{}{
				"index":  i,
				"ticker": t.Ticker,
				"reason": err.Error(),
			}).Warn("Dropping malformed transaction")
			continue
		}
		singles = append(singles, contracts.CanonicalTransaction{
			RawTransaction: clean(t),
			DuplicateCount: 1,
			GroupedShares:  t.Shares,
			GroupedValue:   t.TotalValue,
		})
	}

	grouped := group(singles)

	n.logger.WithFields(map[string]interface{}{
		"input":   len(raw),
		"dropped": len(raw) - len(singles),
		"unique":  len(grouped),
	}).Debug("Deduplicated transactions")

	return grouped
}

// Merge re-groups already canonical records, summing their counts and totals.
// Merge(Normalize(x)) == Normalize(x).
func (n *Normalizer) Merge(canonical []contracts.CanonicalTransaction) []contracts.CanonicalTransaction {
	return group(canonical)
}

// Check validates one raw filing at the boundary
func (n *Normalizer) Check(t contracts.RawTransaction) error {
	if err := n.validate.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", contracts.ErrInvalidTransaction, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", contracts.ErrInvalidTransaction, err)
	}

	if strings.TrimSpace(t.Ticker) == "" || strings.TrimSpace(t.InsiderName) == "" {
		return fmt.Errorf("%w: blank ticker or insider", contracts.ErrInvalidTransaction)
	}
	if t.TotalValue.IsNegative() {
		return fmt.Errorf("%w: negative total value", contracts.ErrInvalidTransaction)
	}
	if t.PricePerShare.IsNegative() {
		return fmt.Errorf("%w: negative price", contracts.ErrInvalidTransaction)
	}
	return nil
}

// clean normalizes the identity fields of a representative record
func clean(t contracts.RawTransaction) contracts.RawTransaction {
	t.Ticker = strings.ToUpper(strings.TrimSpace(t.Ticker))
	t.InsiderName = strings.TrimSpace(t.InsiderName)
	if t.TransactionType == "" {
		t.TransactionType = contracts.TransactionBuy
	}
	return t
}

// group folds records sharing a dedup key into the first one seen
func group(in []contracts.CanonicalTransaction) []contracts.CanonicalTransaction {
	index := make(map[contracts.DedupKey]int, len(in))
	out := make([]contracts.CanonicalTransaction, 0, len(in))

	for _, c := range in {
		key := c.Key()
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, c)
			continue
		}

		g := &out[i]
		g.DuplicateCount += c.DuplicateCount
		g.GroupedShares += c.GroupedShares
		g.GroupedValue = g.GroupedValue.Add(c.GroupedValue)
	}

	return out
}
