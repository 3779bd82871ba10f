package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/wallet-snapshots/internal/retry"
)

// DefaultHyperliquidURL is the production Hyperliquid info endpoint.
const DefaultHyperliquidURL = "https://api.hyperliquid.xyz/info"

// HyperliquidClient fetches clearinghouse state for wallet addresses.
type HyperliquidClient struct {
	apiURL   string
	client   *http.Client
	limiter  *rate.Limiter
	retryCfg *retry.Config
}

// HyperliquidOption configures a HyperliquidClient.
type HyperliquidOption func(*HyperliquidClient)

// WithHyperliquidURL overrides the info endpoint, mainly for tests.
func WithHyperliquidURL(u string) HyperliquidOption {
	return func(c *HyperliquidClient) { c.apiURL = u }
}

// WithHyperliquidHTTPClient sets a custom http.Client.
func WithHyperliquidHTTPClient(client *http.Client) HyperliquidOption {
	return func(c *HyperliquidClient) { c.client = client }
}

// WithHyperliquidRetry sets the retry/backoff policy.
func WithHyperliquidRetry(cfg *retry.Config) HyperliquidOption {
	return func(c *HyperliquidClient) { c.retryCfg = cfg }
}

// WithHyperliquidRateLimit caps outgoing requests per second.
func WithHyperliquidRateLimit(rps float64) HyperliquidOption {
	return func(c *HyperliquidClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewHyperliquidClient creates a Hyperliquid info API client.
func NewHyperliquidClient(opts ...HyperliquidOption) *HyperliquidClient {
	c := &HyperliquidClient{
		apiURL:   DefaultHyperliquidURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		retryCfg: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies this upstream in logs and cache keys.
func (c *HyperliquidClient) Name() string { return "hyperliquid" }

// stateRequest is the info-endpoint request envelope.
type stateRequest struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// FetchState fetches the clearinghouse state document for one address. A 200
// response with an unparseable body is a hard failure, not a retry trigger.
func (c *HyperliquidClient) FetchState(ctx context.Context, address string) (json.RawMessage, error) {
	payload, err := json.Marshal(stateRequest{Type: "clearinghouseState", User: address})
	if err != nil {
		return nil, fmt.Errorf("build hyperliquid payload: %w", err)
	}

	body, err := doFetch(ctx, c.client, c.limiter, c.retryCfg, c.Name(), func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build hyperliquid request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("hyperliquid JSON parse error; body=%s", truncate(body, 500))
	}
	return json.RawMessage(body), nil
}
