package sources

// YouTube implementation is split across files by responsibility:
//   youtube.go            client, shared HTTP plumbing (rate limit, retry, cookies)
//   youtube_innertube.go  Innertube API types, constants, request context builder
//   youtube_version.go    randomized WEB client version
//   youtube_next.go       /next → transcript params token
//   youtube_transcript.go /get_transcript JSON action tree → segments
//   youtube_watch.go      watch page scrape: captionTracks + fallback params
//   youtube_timedtext.go  legacy timedtext XML captions and track selection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// Response body caps.
const (
	maxJSONBody  = 3 * 1024 * 1024
	maxWatchBody = 6 * 1024 * 1024
	maxXMLBody   = 2 * 1024 * 1024
)

// YouTube talks to the undocumented YouTube web endpoints.
// All methods are safe for concurrent use.
type YouTube struct {
	BaseURL    string
	HTTP       *http.Client
	Browser    *engine.BrowserClient // optional; used for the watch page only
	MaxRetries int
	Limiter    *rate.Limiter // nil = unlimited
	Now        func() time.Time
	IntN       func(n int) int // random source for client versions
}

// NewYouTube builds a client from engine config. The HTTP client is copied and
// given a cookie jar so consent cookies persist across calls.
func NewYouTube(c *engine.Config) *YouTube {
	hc := *c.HTTPClient
	if hc.Jar == nil {
		if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
			hc.Jar = jar
		}
	}
	y := &YouTube{
		BaseURL:    c.YouTubeBaseURL,
		HTTP:       &hc,
		Browser:    c.BrowserClient,
		MaxRetries: c.MaxRetries,
		Now:        time.Now,
		IntN:       rand.IntN,
	}
	if c.RateLimit > 0 {
		y.Limiter = rate.NewLimiter(rate.Limit(c.RateLimit), c.RateBurst)
	}
	return y
}

func (y *YouTube) endpoint(path string) string { return y.BaseURL + path }

// do sends one request through the limiter and retry policy and returns the
// body of a 200 response. Non-200 statuses come back as *engine.StatusError.
func (y *YouTube) do(ctx context.Context, method, url string, body []byte, headers map[string]string, cookies []*http.Cookie, limit int64) ([]byte, error) {
	resp, err := engine.DoWithRetry(ctx, y.HTTP, y.MaxRetries, func(ctx context.Context) (*http.Request, error) {
		if y.Limiter != nil {
			if err := y.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
		}
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, r)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		for _, c := range cookies {
			req.AddCookie(c)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return engine.ReadBody(resp, limit)
}
