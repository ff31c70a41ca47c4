package openinsider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/httputil"
	"github.com/wonny/conviction/pkg/logger"
)

// DefaultBaseURL is the public screener page listing the latest insider purchases
const DefaultBaseURL = "http://openinsider.com/latest-insider-purchases-25k"

// Client scrapes the insider filings table
// ⭐ SSOT: 내부자 거래 스크래핑은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new filings scraper client
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.Module("openinsider"),
		baseURL:    baseURL,
	}
}

// FetchSince returns raw filings whose transaction date is on or after since
func (c *Client) FetchSince(ctx context.Context, since time.Time) ([]contracts.RawTransaction, error) {
	html, err := c.fetchHTML(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}

	rows, err := ParseTable(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	sinceDay := since.Truncate(24 * time.Hour)
	out := make([]contracts.RawTransaction, 0, len(rows))
	for _, r := range rows {
		if !since.IsZero() && r.TransactionDate.Before(sinceDay) {
			continue
		}
		out = append(out, r)
	}

	c.logger.WithFields(map[string]interface{}{
		"parsed": len(rows),
		"kept":   len(out),
		"since":  since.Format("2006-01-02"),
	}).Info("Fetched insider filings")

	return out, nil
}

func (c *Client) fetchHTML(ctx context.Context, url string) (string, error) {
	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}
