package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/store"
)

// CacheKeyPrefix prefixes every cached transcript key.
const CacheKeyPrefix = "yt_transcript_exp_"

// CacheKey returns the store key for videoID.
func CacheKey(videoID string) string { return CacheKeyPrefix + videoID }

// load returns the cached result or nil. Read and decode errors count as a miss.
func (s *Service) load(ctx context.Context, videoID string) *Result {
	if s.store == nil {
		return nil
	}
	cctx, cancel := s.callContext(ctx)
	defer cancel()

	data, err := s.store.Get(cctx, CacheKey(videoID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			engine.IncrCacheError()
			slog.Warn("transcript: cache read failed", slog.String("id", videoID), slog.Any("error", err))
		}
		engine.IncrCacheMiss()
		return nil
	}

	var r Result
	if err := json.Unmarshal(data, &r); err != nil || len(r.Segments) == 0 {
		engine.IncrCacheError()
		engine.IncrCacheMiss()
		slog.Warn("transcript: cache entry unreadable", slog.String("id", videoID), slog.Any("error", err))
		return nil
	}
	engine.IncrCacheHit()
	slog.Debug("transcript: cache hit", slog.String("id", videoID), slog.String("method", string(r.Method)))
	return &r
}

// save stores r; failures are logged and otherwise ignored.
func (s *Service) save(ctx context.Context, r *Result) {
	if s.store == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		slog.Warn("transcript: cache encode failed", slog.String("id", r.VideoID), slog.Any("error", err))
		return
	}
	cctx, cancel := s.callContext(ctx)
	defer cancel()
	if err := s.store.Set(cctx, CacheKey(r.VideoID), data); err != nil {
		engine.IncrCacheError()
		slog.Warn("transcript: cache write failed", slog.String("id", r.VideoID), slog.Any("error", err))
	}
}

// ClearCache removes the cached transcript of videoID, or every cached
// transcript when videoID is empty. It returns the number of entries removed.
func (s *Service) ClearCache(ctx context.Context, videoID string) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	if videoID != "" {
		key := CacheKey(videoID)
		if _, err := s.store.Get(ctx, key); errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		if err := s.store.Delete(ctx, key); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return s.store.DeletePrefix(ctx, CacheKeyPrefix)
}
