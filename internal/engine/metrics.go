package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	TranscriptRequests atomic.Int64
	TranscriptFailures atomic.Int64
	CacheHits          atomic.Int64
	CacheMisses        atomic.Int64
	CacheErrors        atomic.Int64
	FetchRequests      atomic.Int64
	FetchErrors        atomic.Int64
	BreakerRejects     atomic.Int64
}

// methodCounters holds attempt/success counters per fetch method name.
var methodCounters = struct {
	attempts map[string]*atomic.Int64
	success  map[string]*atomic.Int64
}{
	attempts: newCounterSet(),
	success:  newCounterSet(),
}

// MethodNames lists the fetch stages in chain order, used as metric labels.
var MethodNames = []string{"next_api", "internal_api", "watch_page", "internal_api_html", "timedtext"}

func newCounterSet() map[string]*atomic.Int64 {
	m := make(map[string]*atomic.Int64, len(MethodNames))
	for _, n := range MethodNames {
		m[n] = new(atomic.Int64)
	}
	return m
}

// GetMetrics returns a snapshot of all metrics.
func GetMetrics() map[string]int64 {
	out := map[string]int64{
		"transcript_requests": metrics.TranscriptRequests.Load(),
		"transcript_failures": metrics.TranscriptFailures.Load(),
		"cache_hits":          metrics.CacheHits.Load(),
		"cache_misses":        metrics.CacheMisses.Load(),
		"cache_errors":        metrics.CacheErrors.Load(),
		"fetch_requests":      metrics.FetchRequests.Load(),
		"fetch_errors":        metrics.FetchErrors.Load(),
		"breaker_rejects":     metrics.BreakerRejects.Load(),
	}
	for _, n := range MethodNames {
		out["method_"+n+"_attempts"] = methodCounters.attempts[n].Load()
		out["method_"+n+"_success"] = methodCounters.success[n].Load()
	}
	return out
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"transcript_requests", "transcript_failures",
		"cache_hits", "cache_misses", "cache_errors",
		"fetch_requests", "fetch_errors",
		"breaker_rejects",
	}
	for _, n := range MethodNames {
		keys = append(keys, "method_"+n+"_attempts", "method_"+n+"_success")
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sub-packages.
func IncrTranscriptRequests() { metrics.TranscriptRequests.Add(1) }
func IncrTranscriptFailures() { metrics.TranscriptFailures.Add(1) }
func IncrCacheHit()           { metrics.CacheHits.Add(1) }
func IncrCacheMiss()          { metrics.CacheMisses.Add(1) }
func IncrCacheError()         { metrics.CacheErrors.Add(1) }
func IncrFetchRequests()      { metrics.FetchRequests.Add(1) }
func IncrFetchErrors()        { metrics.FetchErrors.Add(1) }
func IncrBreakerRejects()     { metrics.BreakerRejects.Add(1) }

// IncrMethodAttempt counts one attempt of the named fetch method.
// Unknown names are ignored.
func IncrMethodAttempt(name string) {
	if c, ok := methodCounters.attempts[name]; ok {
		c.Add(1)
	}
}

// IncrMethodSuccess counts one successful run of the named fetch method.
func IncrMethodSuccess(name string) {
	if c, ok := methodCounters.success[name]; ok {
		c.Add(1)
	}
}

// CacheStats returns current cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	return metrics.CacheHits.Load(), metrics.CacheMisses.Load()
}

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
