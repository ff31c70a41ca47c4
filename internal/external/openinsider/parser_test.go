package openinsider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/config"
	"github.com/wonny/conviction/pkg/httputil"
	"github.com/wonny/conviction/pkg/logger"
)

const sampleHTML = `<html><body>
<table class="tinytable">
<thead><tr>
<th>X</th><th>Filing&nbsp;Date</th><th>Trade&nbsp;Date</th><th>Ticker</th><th>Insider Name</th>
<th>Title</th><th>Trade&nbsp;Type</th><th>Price</th><th>Qty</th><th>Owned</th><th>ΔOwn</th><th>Value</th>
</tr></thead>
<tbody>
<tr><td></td><td>2024-03-06 16:05:11</td><td>2024-03-05</td><td><a>CMC</a></td><td>Doe Jane</td>
<td>CEO</td><td>P - Purchase</td><td>$99.45</td><td>+1,000</td><td>10,000</td><td>+11%</td><td>+$99,450</td></tr>
<tr><td>M</td><td>2024-03-07 09:00:00</td><td>2024-03-01</td><td>abc</td><td>Roe John</td>
<td>Dir</td><td>S - Sale</td><td>$10.00</td><td>-500</td><td>0</td><td>-100%</td><td>-$5,000</td></tr>
<tr><td></td><td>bad</td><td>not a date</td><td>XYZ</td><td>Nobody</td>
<td></td><td>P - Purchase</td><td>$1</td><td>1</td><td>1</td><td></td><td>$1</td></tr>
</tbody>
</table></body></html>`

func TestParseTable(t *testing.T) {
	rows, err := ParseTable(strings.NewReader(sampleHTML))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "CMC", first.Ticker)
	assert.Equal(t, "Doe Jane", first.InsiderName)
	assert.Equal(t, "CEO", first.InsiderTitle)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), first.TransactionDate)
	assert.Equal(t, time.Date(2024, 3, 6, 16, 5, 11, 0, time.UTC), first.FilingDate)
	assert.Equal(t, int64(1000), first.Shares)
	assert.True(t, decimal.RequireFromString("99.45").Equal(first.PricePerShare))
	assert.True(t, decimal.NewFromInt(99450).Equal(first.TotalValue))
	assert.Equal(t, contracts.TransactionBuy, first.TransactionType)

	second := rows[1]
	assert.Equal(t, "ABC", second.Ticker)
	assert.Equal(t, int64(500), second.Shares)
	assert.Equal(t, contracts.TransactionSale, second.TransactionType)
	assert.True(t, decimal.NewFromInt(5000).Equal(second.TotalValue))
}

func TestParseTable_MissingTable(t *testing.T) {
	_, err := ParseTable(strings.NewReader("<html><body><p>maintenance</p></body></html>"))
	assert.Error(t, err)
}

func TestParseTable_MissingColumn(t *testing.T) {
	html := `<table class="tinytable"><thead><tr><th>Ticker</th></tr></thead><tbody></tbody></table>`
	_, err := ParseTable(strings.NewReader(html))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trade date")
}

func TestFetchSince(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleHTML))
	}))
	defer server.Close()

	httpClient := httputil.New(&config.Config{}, logger.NewNop()).DisableRetry()
	c := NewClient(httpClient, server.URL, logger.NewNop())

	rows, err := c.FetchSince(context.Background(), time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CMC", rows[0].Ticker)

	all, err := c.FetchSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestParseMoney(t *testing.T) {
	assert.True(t, decimal.RequireFromString("1234.5").Equal(parseMoney("$1,234.50")))
	assert.True(t, decimal.Zero.Equal(parseMoney("n/a")))
	assert.True(t, decimal.RequireFromString("-5000").Equal(parseMoney("-$5,000")))
}
