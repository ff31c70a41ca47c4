package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/config"
	"github.com/wonny/conviction/pkg/httputil"
	"github.com/wonny/conviction/pkg/logger"
	"github.com/wonny/conviction/pkg/redis"
)

// Client handles communication with the market data HTTP API
// ⭐ SSOT: 시세/공매도 API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	cache      *redis.Cache
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new market data client. cache may be disabled.
func NewClient(cfg config.MarketDataConfig, httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger) *Client {
	if cfg.APIKey != "" {
		httpClient.WithHeader("X-API-Key", cfg.APIKey)
	}
	return &Client{
		httpClient: httpClient,
		cache:      cache,
		logger:     log.Module("marketdata"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

type quoteResponse struct {
	Ticker string    `json:"ticker"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"as_of"`
}

type shortInterestResponse struct {
	Ticker            string    `json:"ticker"`
	ShortPercentFloat float64   `json:"short_percent_float"` // 0-1
	SharesShort       int64     `json:"shares_short"`
	AverageVolume     int64     `json:"average_volume"`
	AsOf              time.Time `json:"as_of"`
}

type historyResponse struct {
	Ticker string `json:"ticker"`
	Bars   []struct {
		Date  string  `json:"date"` // YYYY-MM-DD
		Close float64 `json:"close"`
	} `json:"bars"`
}

type earningsResponse struct {
	Ticker string   `json:"ticker"`
	Dates  []string `json:"dates"` // YYYY-MM-DD
}

const dateLayout = "2006-01-02"

// Quote returns the latest price for ticker
func (c *Client) Quote(ctx context.Context, ticker string) (*contracts.PriceQuote, error) {
	ticker = strings.ToUpper(ticker)

	var quote contracts.PriceQuote
	err := c.cache.GetOrSet(ctx, redis.QuoteKey(ticker), &quote, redis.TTLShort, func() (interface{}, error) {
		var resp quoteResponse
		if err := c.get(ctx, "/v1/quote/"+url.PathEscape(ticker), &resp); err != nil {
			return nil, err
		}
		if resp.Price <= 0 {
			return nil, fmt.Errorf("%w: no price for %s", contracts.ErrUnavailable, ticker)
		}
		return contracts.PriceQuote{Ticker: ticker, Price: resp.Price, AsOf: resp.AsOf}, nil
	})
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// ShortInterest returns short interest as percent of float and days to cover
func (c *Client) ShortInterest(ctx context.Context, ticker string) (*contracts.ShortInterest, error) {
	ticker = strings.ToUpper(ticker)

	var si contracts.ShortInterest
	err := c.cache.GetOrSet(ctx, redis.ShortInterestKey(ticker), &si, redis.TTLMedium, func() (interface{}, error) {
		var resp shortInterestResponse
		if err := c.get(ctx, "/v1/short-interest/"+url.PathEscape(ticker), &resp); err != nil {
			return nil, err
		}
		return contracts.ShortInterest{
			Ticker:       ticker,
			PercentFloat: resp.ShortPercentFloat * 100,
			DaysToCover:  DaysToCover(resp.SharesShort, resp.AverageVolume),
			AsOf:         resp.AsOf,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &si, nil
}

// PriceHistory returns daily closes between from and to, oldest first
func (c *Client) PriceHistory(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PriceBar, error) {
	ticker = strings.ToUpper(ticker)
	fromDay, toDay := from.Format(dateLayout), to.Format(dateLayout)

	var bars []contracts.PriceBar
	err := c.cache.GetOrSet(ctx, redis.PriceHistoryKey(ticker, fromDay, toDay), &bars, redis.TTLDaily, func() (interface{}, error) {
		query := url.Values{"from": {fromDay}, "to": {toDay}}
		var resp historyResponse
		if err := c.get(ctx, "/v1/history/"+url.PathEscape(ticker)+"?"+query.Encode(), &resp); err != nil {
			return nil, err
		}

		out := make([]contracts.PriceBar, 0, len(resp.Bars))
		for _, b := range resp.Bars {
			day, err := time.Parse(dateLayout, b.Date)
			if err != nil || b.Close <= 0 {
				continue
			}
			out = append(out, contracts.PriceBar{Date: day, Close: b.Close})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return bars, nil
}

// EarningsDates returns the announcement dates the vendor knows for ticker
func (c *Client) EarningsDates(ctx context.Context, ticker string) ([]time.Time, error) {
	ticker = strings.ToUpper(ticker)

	var dates []time.Time
	err := c.cache.GetOrSet(ctx, redis.EarningsKey(ticker), &dates, redis.TTLDaily, func() (interface{}, error) {
		var resp earningsResponse
		if err := c.get(ctx, "/v1/earnings/"+url.PathEscape(ticker), &resp); err != nil {
			return nil, err
		}

		out := make([]time.Time, 0, len(resp.Dates))
		for _, d := range resp.Dates {
			if day, err := time.Parse(dateLayout, d); err == nil {
				out = append(out, day)
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return dates, nil
}

// DaysToCover is short shares over average daily volume, 0 when volume is unknown
func DaysToCover(sharesShort, avgVolume int64) float64 {
	if avgVolume <= 0 {
		return 0
	}
	return float64(sharesShort) / float64(avgVolume)
}

func (c *Client) get(ctx context.Context, path string, dest interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: market data base URL not configured", contracts.ErrUnavailable)
	}

	err := c.httpClient.GetJSON(ctx, c.baseURL+path, dest)

	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", contracts.ErrUnavailable, path)
	}
	if err != nil {
		c.logger.WithError(err).WithField("path", path).Warn("Market data request failed")
		return fmt.Errorf("market data request failed: %w", err)
	}
	return nil
}
