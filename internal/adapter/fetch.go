// Package adapter implements the upstream API clients. Each client performs
// one request per wallet address with rate limiting and bounded
// retry/backoff on transient failures.
package adapter

import (
	"context"
	"errors"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	apperrors "github.com/wallet-snapshots/internal/errors"
	"github.com/wallet-snapshots/internal/retry"
)

// isRetryableStatus reports whether a response status is worth retrying:
// rate limiting and server-side 5xx failures. Everything else non-2xx fails
// immediately.
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// retryableFetch reports whether a failed attempt should be repeated.
// Transport failures and retryable statuses qualify. Anything that is not a
// FetchError never touched the network (request building, context) and will
// fail the same way every time.
func retryableFetch(err error) bool {
	var fetchErr *apperrors.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Retryable
	}
	return false
}

// doFetch runs one request-building function under the shared rate-limit and
// retry policy, returning the successful response body. On failure the
// returned error wraps a FetchError carrying the last status, body and
// attempt count.
func doFetch(ctx context.Context, client *http.Client, limiter *rate.Limiter, cfg *retry.Config, source string, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	retryCfg := *cfg
	retryCfg.Retryable = retryableFetch

	var (
		body        []byte
		lastAttempt int
	)
	err := retry.Do(ctx, &retryCfg, func(ctx context.Context, attempt int) error {
		lastAttempt = attempt

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req, err := build(ctx)
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err != nil {
			return apperrors.NewFetchTransportError(source, err)
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return apperrors.NewFetchTransportError(source, err)
		}

		if resp.StatusCode != http.StatusOK {
			return apperrors.NewFetchStatusError(source, resp.StatusCode, string(respBody), isRetryableStatus(resp.StatusCode))
		}

		body = respBody
		return nil
	})
	if err != nil {
		var fetchErr *apperrors.FetchError
		if errors.As(err, &fetchErr) {
			fetchErr.Attempts = lastAttempt
		}
		return nil, err
	}
	return body, nil
}
