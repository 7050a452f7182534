package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Options carries backend settings that do not fit in the cache URL.
type Options struct {
	L1Entries int       // in-memory front for persistent backends; 0 = no L1
	S3        S3Options // credentials/endpoint for s3:// URLs
}

// Open selects a backend by the scheme of rawURL:
//
//	""  / memory://          in-process map
//	redis:// / rediss://     Redis
//	sqlite:///path/cache.db  SQLite file
//	postgres:// postgresql:// PostgreSQL
//	s3://bucket/prefix       S3 or an S3-compatible endpoint
//
// A SQLite file is wrapped in a Tiered store when L1Entries > 0. Redis,
// PostgreSQL and S3 may be shared by several instances and have no way to
// invalidate a peer's L1, so they are returned unwrapped.
func Open(ctx context.Context, rawURL string, o Options) (Store, error) {
	if rawURL == "" || rawURL == "memory://" {
		slog.Info("store: in-memory")
		return NewMemory(0), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse cache URL: %w", err)
	}

	var (
		s      Store
		shared = true
	)
	switch strings.ToLower(u.Scheme) {
	case "memory":
		return NewMemory(0), nil
	case "redis", "rediss":
		s, err = OpenRedis(ctx, rawURL)
	case "sqlite", "file":
		s, err = OpenSQLite(ctx, sqlitePath(u))
		shared = false
	case "postgres", "postgresql":
		s, err = OpenPostgres(ctx, rawURL)
	case "s3":
		so := o.S3
		so.Bucket, so.Prefix = parseS3URL(rawURL)
		s, err = OpenS3(ctx, so)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	if shared || o.L1Entries <= 0 {
		slog.Info("store: opened", slog.String("backend", u.Scheme))
		return s, nil
	}
	slog.Info("store: opened", slog.String("backend", u.Scheme), slog.Int("l1_entries", o.L1Entries))
	return NewTiered(s, o.L1Entries), nil
}

// sqlitePath accepts sqlite:///abs/path, sqlite://rel/path and file:path forms.
func sqlitePath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host + u.Path
}
