package transcript

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
)

// attempt carries state between the stages of one chain run.
type attempt struct {
	videoID    string
	lang       string
	params     string // from /next
	usedParams string // last params sent to /get_transcript
	watch      *sources.WatchData
}

// method is one stage of the chain. Stages with an empty tag only gather
// inputs for later stages; tagged stages end the chain when they return
// segments.
type method struct {
	name  string
	tag   engine.Method
	ready func(a *attempt) bool
	run   func(ctx context.Context, a *attempt) ([]engine.Segment, error)
}

// chain lists the acquisition stages in the order they are tried.
func (s *Service) chain() []method {
	return []method{
		{
			name: "next_api",
			run: func(ctx context.Context, a *attempt) ([]engine.Segment, error) {
				p, err := s.fetch.ParamsViaNextAPI(ctx, a.videoID)
				if err != nil {
					return nil, err
				}
				a.params = p
				return nil, nil
			},
		},
		{
			name:  "internal_api",
			tag:   engine.MethodInternalAPI,
			ready: func(a *attempt) bool { return a.params != "" },
			run: func(ctx context.Context, a *attempt) ([]engine.Segment, error) {
				a.usedParams = a.params
				return s.fetch.TranscriptViaInternalAPI(ctx, a.videoID, a.params)
			},
		},
		{
			name: "watch_page",
			run: func(ctx context.Context, a *attempt) ([]engine.Segment, error) {
				wd := s.fetch.WatchPage(ctx, a.videoID)
				if wd == nil {
					wd = &sources.WatchData{}
				}
				a.watch = wd
				if wd.Playability != "" {
					slog.Info("transcript: video not playable",
						slog.String("id", a.videoID), slog.String("reason", wd.Playability))
				}
				if len(wd.Tracks) == 0 && wd.Params == "" {
					slog.Debug("transcript: watch page has no caption tracks or params", slog.String("id", a.videoID))
				}
				return nil, nil
			},
		},
		{
			name: "internal_api_html",
			tag:  engine.MethodInternalAPIHTML,
			ready: func(a *attempt) bool {
				return a.watch != nil && a.watch.Params != "" && a.watch.Params != a.usedParams
			},
			run: func(ctx context.Context, a *attempt) ([]engine.Segment, error) {
				a.usedParams = a.watch.Params
				return s.fetch.TranscriptViaInternalAPI(ctx, a.videoID, a.watch.Params)
			},
		},
		{
			name:  "timedtext",
			tag:   engine.MethodTimedtext,
			ready: func(a *attempt) bool { return a.watch != nil && len(a.watch.Tracks) > 0 },
			run: func(ctx context.Context, a *attempt) ([]engine.Segment, error) {
				baseURL := sources.ExtractBaseURL(a.watch.Tracks, a.lang)
				if baseURL == "" {
					return nil, nil
				}
				return s.fetch.TranscriptViaTimedtext(ctx, baseURL)
			},
		},
	}
}

// run walks the chain until a tagged stage returns segments.
func (s *Service) run(ctx context.Context, videoID, lang string) (*Result, error) {
	a := &attempt{videoID: videoID, lang: lang}

	for _, m := range s.methods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.ready != nil && !m.ready(a) {
			slog.Debug("transcript: method skipped", slog.String("id", videoID), slog.String("method", m.name))
			continue
		}

		engine.IncrMethodAttempt(m.name)
		segs, err := s.call(ctx, m, a)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("transcript: method failed",
				slog.String("id", videoID), slog.String("method", m.name), slog.Any("error", err))
			continue
		}
		if m.tag == "" {
			engine.IncrMethodSuccess(m.name)
			continue
		}
		if len(segs) == 0 {
			slog.Debug("transcript: method returned no segments", slog.String("id", videoID), slog.String("method", m.name))
			continue
		}

		engine.IncrMethodSuccess(m.name)
		slog.Debug("transcript: fetched",
			slog.String("id", videoID), slog.String("method", m.name), slog.Int("segments", len(segs)))
		return s.result(a, m.tag, segs), nil
	}
	return nil, ErrAllMethodsExhausted
}

// call runs one stage under the per-call timeout and its circuit breaker.
func (s *Service) call(ctx context.Context, m method, a *attempt) ([]engine.Segment, error) {
	cctx, cancel := s.callContext(ctx)
	defer cancel()

	cb := s.breakers[m.name]
	if cb == nil {
		return m.run(cctx, a)
	}
	v, err := cb.Execute(func() (any, error) {
		return m.run(cctx, a)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		engine.IncrBreakerRejects()
	}
	segs, _ := v.([]engine.Segment)
	return segs, err
}

func (s *Service) result(a *attempt, tag engine.Method, segs []engine.Segment) *Result {
	langs := make([]engine.CaptionTrackMeta, 0)
	if a.watch != nil {
		for _, t := range a.watch.Tracks {
			langs = append(langs, t.Meta())
		}
	}
	return &Result{
		VideoID:            a.videoID,
		Method:             tag,
		Segments:           segs,
		TotalSegments:      len(segs),
		AvailableLanguages: langs,
		FetchedAt:          s.now().UTC().Format(time.RFC3339),
	}
}

func newBreaker(name string, failures int, cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool { return !tripsBreaker(err) },
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("transcript: breaker state change",
				slog.String("method", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
}

// tripsBreaker reports whether err says the endpoint itself is unhealthy:
// transport errors, timeouts, 429 and 5xx.
func tripsBreaker(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, sources.ErrNoTranscriptToken):
		return false
	}
	var se *engine.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}
