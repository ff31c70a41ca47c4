package openinsider

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/wonny/conviction/internal/contracts"
)

// column headers of the screener table
const (
	colFilingDate = "filing date"
	colTradeDate  = "trade date"
	colTicker     = "ticker"
	colInsider    = "insider name"
	colTitle      = "title"
	colTradeType  = "trade type"
	colPrice      = "price"
	colQty        = "qty"
	colValue      = "value"
)

var requiredColumns = []string{colTradeDate, colTicker, colInsider, colQty}

// ParseTable extracts raw filings from the screener HTML.
// Columns are located by header text; rows that fail to parse are skipped.
func ParseTable(r io.Reader) ([]contracts.RawTransaction, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	table := doc.Find("table.tinytable").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("filings table not found")
	}

	columns := make(map[string]int)
	table.Find("thead tr th").Each(func(i int, s *goquery.Selection) {
		name := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(s.Text(), " ", " ")), " "))
		columns[name] = i
	})
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, fmt.Errorf("column %q not found", col)
		}
	}

	var out []contracts.RawTransaction
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td").Map(func(_ int, s *goquery.Selection) string {
			return strings.TrimSpace(s.Text())
		})

		cell := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(cells) {
				return ""
			}
			return cells[i]
		}

		txn, ok := parseRow(cell)
		if ok {
			out = append(out, txn)
		}
	})

	return out, nil
}

func parseRow(cell func(string) string) (contracts.RawTransaction, bool) {
	tradeDate, err := parseDate(cell(colTradeDate))
	if err != nil {
		return contracts.RawTransaction{}, false
	}
	shares, err := parseInt(cell(colQty))
	if err != nil {
		return contracts.RawTransaction{}, false
	}

	filingDate, _ := parseDate(cell(colFilingDate))

	txn := contracts.RawTransaction{
		Ticker:          strings.ToUpper(cell(colTicker)),
		InsiderName:     cell(colInsider),
		InsiderTitle:    cell(colTitle),
		TransactionDate: tradeDate,
		FilingDate:      filingDate,
		Shares:          abs(shares),
		PricePerShare:   parseMoney(cell(colPrice)),
		TotalValue:      parseMoney(cell(colValue)).Abs(),
		TransactionType: parseTradeType(cell(colTradeType)),
	}
	return txn, true
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseInt(s string) (int64, error) {
	s = strings.NewReplacer(",", "", "+", "").Replace(s)
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// parseMoney reads "$1,234.50" / "+$99,450"; zero when unparsable
func parseMoney(s string) decimal.Decimal {
	s = strings.NewReplacer("$", "", ",", "", "+", "").Replace(strings.TrimSpace(s))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTradeType(s string) contracts.TransactionType {
	switch {
	case strings.HasPrefix(s, "S"):
		return contracts.TransactionSale
	case strings.HasPrefix(s, "M"), strings.HasPrefix(s, "X"):
		return contracts.TransactionExercise
	default:
		return contracts.TransactionBuy
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
