package polygon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testClient(baseURL string, retryCount int) *Client {
	logger, _ := zap.NewDevelopment()
	return NewClient(baseURL, "test-key", 100, 30*time.Second, 10*time.Millisecond, retryCount, logger)
}

func snapshotJSON(contractType string, strike float64) map[string]any {
	return map[string]any{
		"details": map[string]any{
			"ticker":          "O:SPY260918C00500000",
			"contract_type":   contractType,
			"strike_price":    strike,
			"expiration_date": "2026-09-18",
		},
		"day":                map[string]any{"volume": 1200, "close": 2.5},
		"open_interest":      3000,
		"greeks":             map[string]any{"delta": 0.5, "gamma": 0.02, "theta": -0.05, "vega": 0.1, "rho": 0.03},
		"implied_volatility": 0.22,
	}
}

func TestGetOptionChain_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("expected Bearer test-key, got %s", auth)
		}
		if r.URL.Path != "/v3/snapshot/options/SPY" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if limit := r.URL.Query().Get("limit"); limit != "250" {
			t.Errorf("expected limit=250, got %s", limit)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"results": []any{
				snapshotJSON("call", 500),
				snapshotJSON("put", 495),
				snapshotJSON("other", 490), // unknown type is dropped
			},
		})
	}))
	defer server.Close()

	client := testClient(server.URL, 0)

	oc, err := client.GetOptionChain(context.Background(), "SPY", ChainParams{Limit: 250})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(oc.Contracts) != 2 {
		t.Fatalf("contracts = %d, want 2", len(oc.Contracts))
	}
	c := oc.Contracts[0]
	if c.Strike != 500 || c.Volume != 1200 || c.OpenInterest != 3000 {
		t.Errorf("unexpected contract: %+v", c)
	}
	if c.Greeks == nil || c.Greeks.Delta != 0.5 {
		t.Errorf("greeks not decoded: %+v", c.Greeks)
	}
	if c.Expiration.Format("2006-01-02") != "2026-09-18" {
		t.Errorf("expiration = %v", c.Expiration)
	}
}

func TestGetOptionChain_FollowsPagination(t *testing.T) {
	var server *httptest.Server
	pages := 0
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"status":  "OK",
			"results": []any{snapshotJSON("call", float64(490+pages*10))},
		}
		if pages == 1 {
			resp["next_url"] = server.URL + "/v3/snapshot/options/SPY?cursor=abc"
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := testClient(server.URL, 0)

	oc, err := client.GetOptionChain(context.Background(), "SPY", ChainParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages != 2 {
		t.Errorf("pages fetched = %d, want 2", pages)
	}
	if len(oc.Contracts) != 2 {
		t.Errorf("contracts = %d, want 2", len(oc.Contracts))
	}
}

func TestGetOptionChain_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(server.URL, 0)

	_, err := client.GetOptionChain(context.Background(), "NOPE", ChainParams{})
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestGetOptionChain_EmptyChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "OK", "results": []any{}})
	}))
	defer server.Close()

	client := testClient(server.URL, 0)

	_, err := client.GetOptionChain(context.Background(), "SPY", ChainParams{})
	if !errors.Is(err, ErrNoOptions) {
		t.Errorf("expected ErrNoOptions, got %v", err)
	}
}

func TestGetOptionChain_RateLimitedRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(server.URL, 2)

	_, err := client.GetOptionChain(context.Background(), "SPY", ChainParams{})
	if err == nil {
		t.Fatal("expected error for rate limiting")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited in chain, got %v", err)
	}

	// Initial attempt + 2 retries
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestGetOptionChain_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := testClient(server.URL, 3)

	_, err := client.GetOptionChain(context.Background(), "SPY", ChainParams{})
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}

func TestGetPreviousClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/aggs/ticker/SPY/prev" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"c": 560.25}},
		})
	}))
	defer server.Close()

	client := testClient(server.URL, 0)

	price, err := client.GetPreviousClose(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 560.25 {
		t.Errorf("price = %v, want 560.25", price)
	}
}

func TestGetPreviousClose_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer server.Close()

	client := testClient(server.URL, 0)

	_, err := client.GetPreviousClose(context.Background(), "NOPE")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestIsDataUnavailable(t *testing.T) {
	for _, err := range []error{ErrSymbolNotFound, ErrNoOptions, ErrRateLimited, ErrAuthFailed} {
		if !IsDataUnavailable(err) {
			t.Errorf("IsDataUnavailable(%v) = false, want true", err)
		}
	}
	if IsDataUnavailable(errors.New("connection reset")) {
		t.Error("arbitrary errors should not count as data unavailability")
	}
}
