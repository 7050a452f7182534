package engine

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Backoff bounds for DoWithRetry.
var (
	retryInitialInterval = 500 * time.Millisecond
	retryMaxInterval     = 5 * time.Second
)

// StatusError reports a non-OK HTTP status.
type StatusError struct {
	StatusCode int
	Snippet    string
}

func (e *StatusError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Snippet)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// DoWithRetry sends the request built by newReq. Transport errors and
// retryable statuses (429, 5xx) are retried up to maxRetries extra times with
// exponential backoff; maxRetries <= 0 means exactly one attempt.
// Any non-200 response that is not retried is returned as *StatusError.
func DoWithRetry(ctx context.Context, client *http.Client, maxRetries int, newReq func(context.Context) (*http.Request, error)) (*http.Response, error) {
	IncrFetchRequests()

	operation := func() (*http.Response, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		serr := &StatusError{StatusCode: resp.StatusCode, Snippet: string(snippet)}
		if IsRetryableStatus(resp.StatusCode) {
			return nil, serr
		}
		return nil, backoff.Permanent(serr)
	}

	tries := uint(1)
	if maxRetries > 0 {
		tries += uint(maxRetries)
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval

	resp, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(tries))
	if err != nil {
		IncrFetchErrors()
		return nil, err
	}
	return resp, nil
}

// ReadBody reads at most limit bytes of the response body, handling gzip if
// the server sent it despite transparent decompression being bypassed.
func ReadBody(resp *http.Response, limit int64) ([]byte, error) {
	var r io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" && !resp.Uncompressed {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(io.LimitReader(r, limit))
}
