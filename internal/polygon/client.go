// Package polygon is the REST client for the Polygon-style options market
// data API. One analysis request maps to at most one chain fetch plus one
// previous-close fetch; the indicator pipelines never call the network.
package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/tradepilot-indicators/internal/chain"
)

// MarketData is the single inbound dependency of the analysis layer.
type MarketData interface {
	GetOptionChain(ctx context.Context, symbol string, params ChainParams) (*chain.OptionChain, error)
	GetPreviousClose(ctx context.Context, symbol string) (float64, error)
}

// ChainParams constrains the fetched chain.
type ChainParams struct {
	ExpirationDate string // exact expiration (YYYY-MM-DD), empty for all
	MaxExpiryDays  int    // 0 means no upper bound
	Limit          int    // contracts per page, 0 for the server default
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

var _ MarketData = (*Client)(nil)

// GetOptionChain fetches the full chain snapshot for symbol, following
// next_url pagination until the API stops returning pages.
func (c *Client) GetOptionChain(ctx context.Context, symbol string, params ChainParams) (*chain.OptionChain, error) {
	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.ExpirationDate != "" {
		query.Set("expiration_date", params.ExpirationDate)
	} else if params.MaxExpiryDays > 0 {
		maxExpiry := time.Now().AddDate(0, 0, params.MaxExpiryDays).Format(expirationLayout)
		query.Set("expiration_date.lte", maxExpiry)
	}

	reqURL := fmt.Sprintf("%s/v3/snapshot/options/%s", c.baseURL, symbol)
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	oc := &chain.OptionChain{
		Symbol:    symbol,
		FetchedAt: time.Now().UTC(),
	}

	for reqURL != "" {
		var page chainSnapshotResponse
		if err := c.getJSON(ctx, reqURL, &page); err != nil {
			return nil, fmt.Errorf("fetching option chain for %s: %w", symbol, err)
		}

		for _, cs := range page.Results {
			contract, ok := cs.toContract()
			if !ok {
				continue
			}
			oc.Contracts = append(oc.Contracts, contract)
		}

		reqURL = page.NextURL
	}

	if len(oc.Contracts) == 0 {
		return nil, ErrNoOptions
	}

	c.logger.Debug("fetched option chain",
		zap.String("symbol", symbol),
		zap.Int("contracts", len(oc.Contracts)),
	)
	return oc, nil
}

// GetPreviousClose returns the prior session's closing price for symbol.
func (c *Client) GetPreviousClose(ctx context.Context, symbol string) (float64, error) {
	reqURL := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev", c.baseURL, symbol)

	var resp prevCloseResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return 0, fmt.Errorf("fetching previous close for %s: %w", symbol, err)
	}
	if len(resp.Results) == 0 {
		return 0, ErrSymbolNotFound
	}
	return resp.Results[0].Close, nil
}

// getJSON performs a rate-limited GET with retries and decodes the body.
// 404 and auth failures are terminal; 429 and 5xx are retried with
// exponential backoff.
func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	c.logger.Debug("requesting", zap.String("url", reqURL))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrSymbolNotFound
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return ErrAuthFailed
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
