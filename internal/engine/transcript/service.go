// Package transcript fetches YouTube transcripts through an ordered fallback
// chain of acquisition methods and caches the result per video.
package transcript

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/engine/store"
)

// Error is a constant error value.
type Error string

func (e Error) Error() string { return string(e) }

// ErrAllMethodsExhausted is returned when no method produced segments.
const ErrAllMethodsExhausted = Error("all transcript methods exhausted")

// Result is the transcript as returned to callers and stored in the cache.
type Result = engine.TranscriptResult

// Fetcher is the set of YouTube calls the chain is built from.
// *sources.YouTube implements it.
type Fetcher interface {
	ParamsViaNextAPI(ctx context.Context, videoID string) (string, error)
	TranscriptViaInternalAPI(ctx context.Context, videoID, params string) ([]engine.Segment, error)
	WatchPage(ctx context.Context, videoID string) *sources.WatchData
	TranscriptViaTimedtext(ctx context.Context, baseURL string) ([]engine.Segment, error)
}

// Options tune a single Get call.
type Options struct {
	PreferredLanguage string // default: the service language ("en")
	UseCache          *bool  // nil means true
}

// Service runs the fallback chain. It is safe for concurrent use.
type Service struct {
	store    store.Store
	fetch    Fetcher
	timeout  time.Duration
	lang     string
	dedup    bool
	group    singleflight.Group
	breakers map[string]*gobreaker.CircuitBreaker
	methods  []method
	now      func() time.Time
}

// New wires a Service from engine config. A nil store disables caching.
func New(st store.Store, f Fetcher, c *engine.Config) *Service {
	s := &Service{
		store:   st,
		fetch:   f,
		timeout: c.CallTimeout,
		lang:    c.DefaultLanguage,
		dedup:   c.DedupInFlight,
		now:     time.Now,
	}
	if s.lang == "" {
		s.lang = "en"
	}
	s.methods = s.chain()
	if c.BreakerFailures > 0 {
		s.breakers = make(map[string]*gobreaker.CircuitBreaker, len(s.methods))
		for _, m := range s.methods {
			s.breakers[m.name] = newBreaker(m.name, c.BreakerFailures, c.BreakerCooldown)
		}
	}
	return s
}

// Get returns the transcript for videoID, from cache when allowed, otherwise
// from the first method in the chain that yields segments. Per-method failures
// are logged and skipped; only total exhaustion or cancellation of ctx is an
// error. With in-flight de-duplication a cancelled caller stops waiting but the
// shared fetch runs on for the callers still joined to it.
func (s *Service) Get(ctx context.Context, videoID string, opts Options) (*Result, error) {
	engine.IncrTranscriptRequests()

	lang := opts.PreferredLanguage
	if lang == "" {
		lang = s.lang
	}
	if opts.UseCache == nil || *opts.UseCache {
		if r := s.load(ctx, videoID); r != nil {
			return r, nil
		}
	}

	if !s.dedup {
		return s.fetchAndStore(ctx, videoID, lang)
	}

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own ctx is done.
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(videoID+"|"+lang, func() (any, error) {
		return s.fetchAndStore(detached, videoID, lang)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		r := res.Val.(*Result)
		if res.Shared {
			slog.Debug("transcript: joined in-flight fetch", slog.String("id", videoID))
			r = cloneResult(r)
		}
		return r, nil
	}
}

func (s *Service) fetchAndStore(ctx context.Context, videoID, lang string) (*Result, error) {
	var r *Result
	err := engine.TrackOperation(ctx, "transcript "+videoID, func(ctx context.Context) error {
		var err error
		r, err = s.run(ctx, videoID, lang)
		return err
	})
	if err != nil {
		engine.IncrTranscriptFailures()
		return nil, err
	}
	s.save(ctx, r)
	return r, nil
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func cloneResult(r *Result) *Result {
	c := *r
	c.Segments = append([]engine.Segment(nil), r.Segments...)
	c.AvailableLanguages = append([]engine.CaptionTrackMeta(nil), r.AvailableLanguages...)
	return &c
}
