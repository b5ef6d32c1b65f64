// Package finnhub fetches historical candles from the Finnhub REST API.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chartdesk/internal/model"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://finnhub.io/api/v1"

// Client implements model.CandleFetcher against /stock/candle.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client. A zero timeout means 10s.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchCandles requests one resolution over [req.From, req.To]. A "no_data"
// response is returned as is; callers treat it as an empty batch.
func (c *Client) FetchCandles(ctx context.Context, req model.FetchRequest) (*model.CandleBatch, error) {
	if !req.Resolution.Valid() {
		return nil, fmt.Errorf("finnhub: invalid resolution %q", req.Resolution)
	}

	q := url.Values{}
	q.Set("symbol", strings.ToUpper(req.Symbol))
	q.Set("resolution", string(req.Resolution))
	q.Set("from", strconv.FormatInt(req.From, 10))
	q.Set("to", strconv.FormatInt(req.To, 10))
	if c.apiKey != "" {
		q.Set("token", c.apiKey)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stock/candle?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("finnhub: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("finnhub: candle %s: %w", req.Symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("finnhub: candle %s: status %d: %s", req.Symbol, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var batch model.CandleBatch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("finnhub: decode candle %s: %w", req.Symbol, err)
	}
	return &batch, nil
}
