package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wallet-snapshots/internal/errors"
	"github.com/wallet-snapshots/internal/retry"
)

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     16 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDeBankClientFetchProtocolList(t *testing.T) {
	t.Run("success decodes entries and sends credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, debankProtocolListPath, r.URL.Path)
			assert.Equal(t, "0xabc", r.URL.Query().Get("id"))
			assert.Equal(t, "secret", r.Header.Get("AccessKey"))
			w.Write([]byte(`[{"id":"aave"},{"id":"compound"}]`))
		}))
		defer srv.Close()

		c := NewDeBankClient("secret", WithDeBankBaseURL(srv.URL), WithDeBankRetry(fastRetry()))
		items, err := c.FetchProtocolList(context.Background(), "0xabc")
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("null body is an empty list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`null`))
		}))
		defer srv.Close()

		c := NewDeBankClient("k", WithDeBankBaseURL(srv.URL), WithDeBankRetry(fastRetry()))
		items, err := c.FetchProtocolList(context.Background(), "0xabc")
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("503 four times then 200 succeeds after full backoff ladder", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 4 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`[{"id":"aave"}]`))
		}))
		defer srv.Close()

		c := NewDeBankClient("k", WithDeBankBaseURL(srv.URL), WithDeBankRetry(fastRetry()))
		start := time.Now()
		items, err := c.FetchProtocolList(context.Background(), "0xabc")
		require.NoError(t, err)
		assert.Len(t, items, 1)
		assert.EqualValues(t, 5, calls.Load())
		// 4 backoff sleeps: 1 + 2 + 4 + 8 units.
		assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	})

	t.Run("404 fails immediately with the body attached, no retry", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"no such user"}`))
		}))
		defer srv.Close()

		c := NewDeBankClient("k", WithDeBankBaseURL(srv.URL), WithDeBankRetry(fastRetry()))
		_, err := c.FetchProtocolList(context.Background(), "0xabc")

		var fetchErr *apperrors.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
		assert.False(t, fetchErr.Retryable)
		assert.Contains(t, fetchErr.Body, "no such user")
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("persistent 429 exhausts retries and reports the attempt count", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`slow down`))
		}))
		defer srv.Close()

		c := NewDeBankClient("k", WithDeBankBaseURL(srv.URL), WithDeBankRetry(fastRetry()))
		_, err := c.FetchProtocolList(context.Background(), "0xabc")

		var fetchErr *apperrors.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.True(t, fetchErr.Retryable)
		assert.Equal(t, http.StatusTooManyRequests, fetchErr.StatusCode)
		assert.Equal(t, 5, fetchErr.Attempts)
		assert.EqualValues(t, 5, calls.Load())
	})

	t.Run("malformed body is a parse error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{oops`))
		}))
		defer srv.Close()

		c := NewDeBankClient("k", WithDeBankBaseURL(srv.URL), WithDeBankRetry(fastRetry()))
		_, err := c.FetchProtocolList(context.Background(), "0xabc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse error")
	})
}

func TestRetryableFetch(t *testing.T) {
	assert.True(t, retryableFetch(apperrors.NewFetchTransportError("debank", errors.New("connection reset"))))
	assert.True(t, retryableFetch(apperrors.NewFetchStatusError("debank", http.StatusServiceUnavailable, "", true)))
	assert.False(t, retryableFetch(apperrors.NewFetchStatusError("debank", http.StatusNotFound, "", false)))
	assert.False(t, retryableFetch(errors.New("invalid request")))
}

func TestDeBankClientBuildFailureNotRetried(t *testing.T) {
	// A base URL that cannot form a valid request fails deterministically;
	// the retry ladder (1s first delay here) must not be entered.
	cfg := &retry.Config{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}
	c := NewDeBankClient("k", WithDeBankBaseURL("http://127.0.0.1:0/%zz"), WithDeBankRetry(cfg))

	start := time.Now()
	_, err := c.FetchProtocolList(context.Background(), "0xabc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build debank request")
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestHyperliquidClientFetchState(t *testing.T) {
	t.Run("posts the clearinghouseState envelope", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			body, _ := io.ReadAll(r.Body)
			var req map[string]string
			require.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, "clearinghouseState", req["type"])
			assert.Equal(t, "0xdef", req["user"])
			w.Write([]byte(`{"marginSummary":{"equity":"1234.5"}}`))
		}))
		defer srv.Close()

		c := NewHyperliquidClient(WithHyperliquidURL(srv.URL), WithHyperliquidRetry(fastRetry()))
		raw, err := c.FetchState(context.Background(), "0xdef")
		require.NoError(t, err)
		assert.JSONEq(t, `{"marginSummary":{"equity":"1234.5"}}`, string(raw))
	})

	t.Run("invalid JSON with 200 status is a hard failure", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Write([]byte(`<html>gateway</html>`))
		}))
		defer srv.Close()

		c := NewHyperliquidClient(WithHyperliquidURL(srv.URL), WithHyperliquidRetry(fastRetry()))
		_, err := c.FetchState(context.Background(), "0xdef")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JSON parse error")
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("502 is retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		c := NewHyperliquidClient(WithHyperliquidURL(srv.URL), WithHyperliquidRetry(fastRetry()))
		_, err := c.FetchState(context.Background(), "0xdef")
		require.NoError(t, err)
		assert.EqualValues(t, 2, calls.Load())
	})
}
