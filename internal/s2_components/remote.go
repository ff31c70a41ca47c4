package s2_components

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/httputil"
)

// remoteResponse is the payload served by an external component service
type remoteResponse struct {
	Score      *float64               `json:"score"`
	Multiplier *float64               `json:"multiplier"`
	Source     string                 `json:"source"`
	Detail     map[string]interface{} `json:"detail"`
}

// RemoteProvider fetches a component from an HTTP service at GET {base}/{component}/{ticker}.
// Used for options flow, earnings and news sentiment.
type RemoteProvider struct {
	name       string
	baseURL    string
	httpClient *httputil.Client
}

// NewRemoteProvider creates a provider for one remote component
func NewRemoteProvider(name, baseURL string, httpClient *httputil.Client) *RemoteProvider {
	return &RemoteProvider{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Name returns the component name
func (p *RemoteProvider) Name() string { return p.name }

// Evaluate calls the remote service; 404 and empty payloads are Unavailable
func (p *RemoteProvider) Evaluate(ctx context.Context, req contracts.ComponentRequest) contracts.Reading {
	if p.baseURL == "" {
		return contracts.Unavailable("component service not configured")
	}

	endpoint := fmt.Sprintf("%s/%s/%s", p.baseURL, url.PathEscape(p.name), url.PathEscape(req.Ticker()))

	var resp remoteResponse
	if err := p.httpClient.GetJSON(ctx, endpoint, &resp); err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return contracts.Unavailable("no data")
		}
		return contracts.Failed(err)
	}

	source := resp.Source
	if source == "" {
		source = "remote"
	}
	return readingFrom(resp.Score, resp.Multiplier, source, resp.Detail)
}

// readingFrom builds a reading from optional score and multiplier values
func readingFrom(score, multiplier *float64, source string, detail contracts.Detail) contracts.Reading {
	switch {
	case score != nil && multiplier != nil:
		return contracts.ScoreAndMultiplierReading(*score, *multiplier, source, detail)
	case score != nil:
		return contracts.ScoreReading(*score, source, detail)
	case multiplier != nil:
		return contracts.MultiplierReading(*multiplier, source, detail)
	default:
		return contracts.Unavailable("empty payload")
	}
}
