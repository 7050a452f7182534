package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/engine/store"
)

const testVideo = "dQw4w9WgXcQ"

// fakeFetcher records calls and delegates to optional hooks. A nil hook fails.
type fakeFetcher struct {
	next      func(ctx context.Context) (string, error)
	internal  func(ctx context.Context, params string) ([]engine.Segment, error)
	watch     func(ctx context.Context) *sources.WatchData
	timedtext func(ctx context.Context, baseURL string) ([]engine.Segment, error)

	mu    sync.Mutex
	calls []string
}

var errFake = errors.New("fake upstream failure")

func (f *fakeFetcher) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeFetcher) ParamsViaNextAPI(ctx context.Context, _ string) (string, error) {
	f.record("next")
	if f.next == nil {
		return "", errFake
	}
	return f.next(ctx)
}

func (f *fakeFetcher) TranscriptViaInternalAPI(ctx context.Context, _ string, params string) ([]engine.Segment, error) {
	f.record("internal:" + params)
	if f.internal == nil {
		return nil, errFake
	}
	return f.internal(ctx, params)
}

func (f *fakeFetcher) WatchPage(ctx context.Context, _ string) *sources.WatchData {
	f.record("watch")
	if f.watch == nil {
		return &sources.WatchData{}
	}
	return f.watch(ctx)
}

func (f *fakeFetcher) TranscriptViaTimedtext(ctx context.Context, baseURL string) ([]engine.Segment, error) {
	f.record("timedtext:" + baseURL)
	if f.timedtext == nil {
		return nil, errFake
	}
	return f.timedtext(ctx, baseURL)
}

var testSegments = []engine.Segment{
	{Index: 0, Start: 0, End: 1.5, Duration: 1.5, Text: "never gonna"},
	{Index: 1, Start: 1.5, End: 3, Duration: 1.5, Text: "give you up"},
}

func asr() *string { s := "asr"; return &s }

var testTracks = []engine.CaptionTrack{
	{Language: "English", LanguageCode: "en", VssID: ".en", BaseURL: "https://tt/en"},
	{Language: "Russian", LanguageCode: "ru", VssID: "a.ru", Kind: asr(), BaseURL: "https://tt/ru"},
}

func params(p string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return p, nil }
}

func segments(segs []engine.Segment) func(context.Context, string) ([]engine.Segment, error) {
	return func(context.Context, string) ([]engine.Segment, error) { return segs, nil }
}

func serverError(context.Context, string) ([]engine.Segment, error) {
	return nil, &engine.StatusError{StatusCode: http.StatusInternalServerError}
}

func newTestService(t *testing.T, st store.Store, f Fetcher, mutate ...func(*engine.Config)) *Service {
	t.Helper()
	c := engine.Config{CallTimeout: time.Second, DefaultLanguage: "en", DedupInFlight: true}
	for _, m := range mutate {
		m(&c)
	}
	s := New(st, f, &c)
	s.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.FixedZone("X", 3600)) }
	return s
}

func noCache() Options {
	f := false
	return Options{UseCache: &f}
}

func TestGet_InternalAPI(t *testing.T) {
	mem := store.NewMemory(0)
	f := &fakeFetcher{next: params("p1"), internal: segments(testSegments)}
	s := newTestService(t, mem, f)

	r, err := s.Get(context.Background(), testVideo, Options{})
	require.NoError(t, err)
	assert.Equal(t, engine.MethodInternalAPI, r.Method)
	assert.Equal(t, testVideo, r.VideoID)
	assert.Equal(t, 2, r.TotalSegments)
	assert.Equal(t, testSegments, r.Segments)
	assert.Empty(t, r.AvailableLanguages)
	assert.Equal(t, "2026-03-10T11:00:00Z", r.FetchedAt)
	assert.Equal(t, []string{"next", "internal:p1"}, f.Calls())

	_, err = mem.Get(context.Background(), CacheKey(testVideo))
	assert.NoError(t, err)
}

func TestGet_CacheIdempotent(t *testing.T) {
	f := &fakeFetcher{next: params("p1"), internal: segments(testSegments)}
	s := newTestService(t, store.NewMemory(0), f)

	first, err := s.Get(context.Background(), testVideo, Options{})
	require.NoError(t, err)
	second, err := s.Get(context.Background(), testVideo, Options{})
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached result differs (-first +second):\n%s", diff)
	}
	assert.Len(t, f.Calls(), 2, "second call must be served from cache")

	_, err = s.Get(context.Background(), testVideo, noCache())
	require.NoError(t, err)
	assert.Len(t, f.Calls(), 4, "UseCache=false refetches")
}

func TestGet_FallbackToTimedtext(t *testing.T) {
	mem := store.NewMemory(0)
	f := &fakeFetcher{
		next:     params("p1"),
		internal: serverError,
		watch: func(context.Context) *sources.WatchData {
			return &sources.WatchData{Tracks: testTracks, Params: "p2"}
		},
		timedtext: segments(testSegments),
	}
	s := newTestService(t, mem, f)

	r, err := s.Get(context.Background(), testVideo, Options{PreferredLanguage: "ru"})
	require.NoError(t, err)
	assert.Equal(t, engine.MethodTimedtext, r.Method)
	assert.Equal(t, []string{"next", "internal:p1", "watch", "internal:p2", "timedtext:https://tt/ru"}, f.Calls())
	require.Len(t, r.AvailableLanguages, 2)
	assert.Equal(t, engine.CaptionTrackMeta{Language: "Russian", LanguageCode: "ru", VssID: "a.ru", Kind: asr()}, r.AvailableLanguages[1])

	cached, err := s.Get(context.Background(), testVideo, Options{})
	require.NoError(t, err)
	assert.Equal(t, engine.MethodTimedtext, cached.Method)
	assert.Len(t, f.Calls(), 5)
}

func TestGet_InternalAPIFromWatchParams(t *testing.T) {
	f := &fakeFetcher{
		internal: segments(testSegments),
		watch: func(context.Context) *sources.WatchData {
			return &sources.WatchData{Params: "html"}
		},
	}
	s := newTestService(t, store.NewMemory(0), f)

	r, err := s.Get(context.Background(), testVideo, Options{})
	require.NoError(t, err)
	assert.Equal(t, engine.MethodInternalAPIHTML, r.Method)
	assert.Equal(t, []string{"next", "watch", "internal:html"}, f.Calls())
}

func TestGet_SameParamsNotRetried(t *testing.T) {
	f := &fakeFetcher{
		next:     params("same"),
		internal: segments(nil),
		watch: func(context.Context) *sources.WatchData {
			return &sources.WatchData{Tracks: testTracks[:1], Params: "same"}
		},
		timedtext: segments(testSegments),
	}
	s := newTestService(t, store.NewMemory(0), f)

	r, err := s.Get(context.Background(), testVideo, Options{PreferredLanguage: "fr"})
	require.NoError(t, err)
	assert.Equal(t, engine.MethodTimedtext, r.Method)
	assert.Equal(t, []string{"next", "internal:same", "watch", "timedtext:https://tt/en"}, f.Calls())
}

func TestGet_Exhausted(t *testing.T) {
	mem := store.NewMemory(0)
	f := &fakeFetcher{
		next:     params("p1"),
		internal: serverError,
		watch: func(context.Context) *sources.WatchData {
			return &sources.WatchData{Tracks: testTracks, Params: "p2"}
		},
		timedtext: segments(nil),
	}
	s := newTestService(t, mem, f)

	r, err := s.Get(context.Background(), testVideo, Options{})
	assert.Nil(t, r)
	require.ErrorIs(t, err, ErrAllMethodsExhausted)
	assert.Contains(t, err.Error(), "exhausted")
	assert.Equal(t, 0, mem.Len(), "nothing cached on exhaustion")
}

func TestGet_NothingAvailable(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestService(t, store.NewMemory(0), f)

	_, err := s.Get(context.Background(), testVideo, Options{})
	require.ErrorIs(t, err, ErrAllMethodsExhausted)
	assert.Equal(t, []string{"next", "watch"}, f.Calls())
}

func TestGet_PerCallTimeoutIsNonFatal(t *testing.T) {
	f := &fakeFetcher{
		next: func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		watch: func(context.Context) *sources.WatchData {
			return &sources.WatchData{Tracks: testTracks}
		},
		timedtext: segments(testSegments),
	}
	s := newTestService(t, store.NewMemory(0), f, func(c *engine.Config) { c.CallTimeout = 20 * time.Millisecond })

	r, err := s.Get(context.Background(), testVideo, Options{})
	require.NoError(t, err)
	assert.Equal(t, engine.MethodTimedtext, r.Method)
}

func TestGet_ParentCancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeFetcher{
		next: func(context.Context) (string, error) {
			cancel()
			return "", context.Canceled
		},
	}
	s := newTestService(t, store.NewMemory(0), f, func(c *engine.Config) { c.DedupInFlight = false })

	_, err := s.Get(ctx, testVideo, Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"next"}, f.Calls())
}

// flakyStore fails reads and/or writes on demand.
type flakyStore struct {
	*store.Memory
	failGet, failSet bool
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failGet {
		return nil, errors.New("disk on fire")
	}
	return s.Memory.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key string, v []byte) error {
	if s.failSet {
		return errors.New("disk full")
	}
	return s.Memory.Set(ctx, key, v)
}

func TestGet_CacheErrorsAreNonFatal(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory(0), failGet: true, failSet: true}
	f := &fakeFetcher{next: params("p1"), internal: segments(testSegments)}
	s := newTestService(t, st, f)

	r, err := s.Get(context.Background(), testVideo, Options{})
	require.NoError(t, err)
	assert.Equal(t, engine.MethodInternalAPI, r.Method)
	assert.Equal(t, 0, st.Len())
}

func TestGet_CorruptCacheEntryIsMiss(t *testing.T) {
	mem := store.NewMemory(0)
	require.NoError(t, mem.Set(context.Background(), CacheKey(testVideo), []byte("{not json")))
	f := &fakeFetcher{next: params("p1"), internal: segments(testSegments)}
	s := newTestService(t, mem, f)

	r, err := s.Get(context.Background(), testVideo, Options{})
	require.NoError(t, err)
	assert.Equal(t, testSegments, r.Segments)
	assert.Len(t, f.Calls(), 2)
}

func TestGet_BreakerSkipsFailingMethod(t *testing.T) {
	f := &fakeFetcher{
		watch: func(context.Context) *sources.WatchData {
			return &sources.WatchData{Tracks: testTracks}
		},
		timedtext: segments(testSegments),
	}
	s := newTestService(t, store.NewMemory(0), f, func(c *engine.Config) {
		c.BreakerFailures = 1
		c.BreakerCooldown = time.Hour
	})

	for range 3 {
		r, err := s.Get(context.Background(), testVideo, noCache())
		require.NoError(t, err)
		assert.Equal(t, engine.MethodTimedtext, r.Method)
	}
	next := 0
	for _, c := range f.Calls() {
		if c == "next" {
			next++
		}
	}
	assert.Equal(t, 1, next, "open breaker must short-circuit next_api")
}

func TestGet_CaptionlessVideosDoNotTripBreakers(t *testing.T) {
	var watches atomic.Int32
	f := &fakeFetcher{
		next: func(context.Context) (string, error) { return "", sources.ErrNoTranscriptToken },
		watch: func(context.Context) *sources.WatchData {
			if watches.Add(1) <= 5 {
				return &sources.WatchData{}
			}
			return &sources.WatchData{Tracks: testTracks}
		},
		timedtext: segments(testSegments),
	}
	s := newTestService(t, store.NewMemory(0), f, func(c *engine.Config) {
		c.BreakerFailures = 5
		c.BreakerCooldown = time.Hour
	})

	for range 5 {
		_, err := s.Get(context.Background(), testVideo, noCache())
		require.ErrorIs(t, err, ErrAllMethodsExhausted)
	}
	for name, cb := range s.breakers {
		assert.Equal(t, gobreaker.StateClosed, cb.State(), name)
	}

	r, err := s.Get(context.Background(), "otherVideo1", noCache())
	require.NoError(t, err)
	assert.Equal(t, engine.MethodTimedtext, r.Method)
	assert.Equal(t, []string{"next", "watch", "timedtext:https://tt/en"}, f.Calls()[10:])
}

func TestTripsBreaker(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"no transcript panel", fmt.Errorf("next: %w", sources.ErrNoTranscriptToken), false},
		{"bad request", &engine.StatusError{StatusCode: http.StatusBadRequest}, false},
		{"not found", &engine.StatusError{StatusCode: http.StatusNotFound}, false},
		{"rate limited", &engine.StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"server error", &engine.StatusError{StatusCode: http.StatusBadGateway}, true},
		{"timeout", context.DeadlineExceeded, true},
		{"transport", errFake, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tripsBreaker(tt.err))
		})
	}
}

func TestGet_DedupInFlight(t *testing.T) {
	release := make(chan struct{})
	var fetches atomic.Int32
	f := &fakeFetcher{
		next: func(context.Context) (string, error) {
			fetches.Add(1)
			<-release
			return "p1", nil
		},
		internal: segments(testSegments),
	}
	s := newTestService(t, store.NewMemory(0), f)

	const n = 5
	results := make([]*Result, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.Get(context.Background(), testVideo, noCache())
			assert.NoError(t, err)
			results[i] = r
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, testSegments, r.Segments)
	}
}

func TestGet_DedupLeaderCancelDoesNotFailJoiners(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := &fakeFetcher{
		next: func(ctx context.Context) (string, error) {
			close(entered)
			select {
			case <-release:
				return "p1", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
		internal: segments(testSegments),
	}
	s := newTestService(t, store.NewMemory(0), f, func(c *engine.Config) { c.CallTimeout = 5 * time.Second })

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := s.Get(leaderCtx, testVideo, noCache())
		leaderErr <- err
	}()
	<-entered

	type outcome struct {
		r   *Result
		err error
	}
	joined := make(chan outcome, 1)
	go func() {
		r, err := s.Get(context.Background(), testVideo, noCache())
		joined <- outcome{r, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	got := <-joined
	require.NoError(t, got.err)
	assert.Equal(t, engine.MethodInternalAPI, got.r.Method)
	assert.Equal(t, testSegments, got.r.Segments)
	assert.Equal(t, []string{"next", "internal:p1"}, f.Calls())
}

func TestGet_DedupJoinerHonoursOwnCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	entered := make(chan struct{})
	f := &fakeFetcher{
		next: func(context.Context) (string, error) {
			close(entered)
			<-release
			return "p1", nil
		},
		internal: segments(testSegments),
	}
	s := newTestService(t, store.NewMemory(0), f, func(c *engine.Config) { c.CallTimeout = 5 * time.Second })

	go func() { _, _ = s.Get(context.Background(), testVideo, noCache()) }()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Get(ctx, testVideo, noCache())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClearCache(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(0)
	for _, id := range []string{"abc123", "def456", "ghi789"} {
		require.NoError(t, mem.Set(ctx, CacheKey(id), []byte(`{}`)))
	}
	require.NoError(t, mem.Set(ctx, "unrelated", []byte("x")))
	s := newTestService(t, mem, &fakeFetcher{})

	n, err := s.ClearCache(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = mem.Get(ctx, CacheKey("abc123"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = mem.Get(ctx, CacheKey("def456"))
	assert.NoError(t, err)

	n, err = s.ClearCache(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.ClearCache(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, mem.Len())
	_, err = mem.Get(ctx, "unrelated")
	assert.NoError(t, err)
}

func TestNilStoreDisablesCache(t *testing.T) {
	f := &fakeFetcher{next: params("p1"), internal: segments(testSegments)}
	s := newTestService(t, nil, f)

	for range 2 {
		_, err := s.Get(context.Background(), testVideo, Options{})
		require.NoError(t, err)
	}
	assert.Len(t, f.Calls(), 4)
	n, err := s.ClearCache(context.Background(), "")
	assert.NoError(t, err)
	assert.Zero(t, n)
}
