package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/wallet-snapshots/internal/retry"
)

const (
	// DefaultDeBankBaseURL is the production DeBank Pro API host.
	DefaultDeBankBaseURL = "https://pro-openapi.debank.com"

	debankProtocolListPath = "/v1/user/all_complex_protocol_list"
)

// DeBankClient fetches the complex protocol list for wallet addresses.
type DeBankClient struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	retryCfg *retry.Config
}

// DeBankOption configures a DeBankClient.
type DeBankOption func(*DeBankClient)

// WithDeBankBaseURL overrides the API host, mainly for tests.
func WithDeBankBaseURL(u string) DeBankOption {
	return func(c *DeBankClient) { c.baseURL = u }
}

// WithDeBankHTTPClient sets a custom http.Client.
func WithDeBankHTTPClient(client *http.Client) DeBankOption {
	return func(c *DeBankClient) { c.client = client }
}

// WithDeBankRetry sets the retry/backoff policy.
func WithDeBankRetry(cfg *retry.Config) DeBankOption {
	return func(c *DeBankClient) { c.retryCfg = cfg }
}

// WithDeBankRateLimit caps outgoing requests per second.
func WithDeBankRateLimit(rps float64) DeBankOption {
	return func(c *DeBankClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewDeBankClient creates a DeBank API client.
func NewDeBankClient(apiKey string, opts ...DeBankOption) *DeBankClient {
	c := &DeBankClient{
		baseURL:  DefaultDeBankBaseURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		retryCfg: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies this upstream in logs and cache keys.
func (c *DeBankClient) Name() string { return "debank" }

// FetchProtocolList fetches all protocol positions for one address. A JSON
// null body counts as an empty list, matching the upstream's behavior for
// unused wallets.
func (c *DeBankClient) FetchProtocolList(ctx context.Context, address string) ([]json.RawMessage, error) {
	body, err := doFetch(ctx, c.client, c.limiter, c.retryCfg, c.Name(), func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s%s?id=%s", c.baseURL, debankProtocolListPath, url.QueryEscape(address))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("build debank request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("AccessKey", c.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	return DecodeProtocolList(body)
}

// DecodeProtocolList splits a protocol-list response body into its entries.
// It is exported so cached payloads decode through the same path as live
// ones.
func DecodeProtocolList(body []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("debank response parse error: %w; body=%s", err, truncate(body, 500))
	}
	return items, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
