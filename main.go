// go_transcript: YouTube transcript MCP server.
//
// Exposes three MCP tools: youtube_transcript, youtube_transcript_search,
// youtube_transcript_clear_cache. Transcripts come from a fallback chain over
// YouTube's internal transcript API, the watch page and timedtext captions,
// and are cached in the store selected by CACHE_URL.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/engine/store"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcript"
	"github.com/anatolykoptev/go_transcript/internal/transcriptserver"
)

var version = "dev"

func main() {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	mcpPort := env.Str("MCP_PORT", "8893")
	initEngine()

	st, err := openStore(context.Background())
	if err != nil {
		slog.Error("cache store init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	svc := transcript.New(st, sources.NewYouTube(engine.Cfg), engine.Cfg)

	slog.Info("starting go_transcript",
		slog.String("port", mcpPort),
		slog.Duration("call_timeout", engine.Cfg.CallTimeout),
		slog.Bool("dedup", engine.Cfg.DedupInFlight),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_transcript",
		Version: version,
	}, nil)

	transcriptserver.RegisterTools(server, svc)
	slog.Info("tools registered", slog.Int("count", transcriptserver.ToolCount))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_transcript",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 120 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() {
	c := engine.Config{
		YouTubeBaseURL:  env.Str("YT_BASE_URL", "https://www.youtube.com"),
		CallTimeout:     env.Duration("FETCH_TIMEOUT", 10*time.Second),
		MaxRetries:      env.Int("YT_MAX_RETRIES", 0),
		RateLimit:       env.Float("YT_RATE_LIMIT", 5),
		RateBurst:       env.Int("YT_RATE_BURST", 5),
		DedupInFlight:   envBool("TRANSCRIPT_DEDUP", true),
		BreakerFailures: env.Int("BREAKER_FAILURES", 5),
		BreakerCooldown: env.Duration("BREAKER_COOLDOWN", 60*time.Second),
		CacheURL:        env.Str("CACHE_URL", ""),
		CacheL1Entries:  env.Int("CACHE_L1_MAX_ENTRIES", 1000),
		DefaultLanguage: env.Str("DEFAULT_LANGUAGE", "en"),
		MaxOutputChars:  env.Int("MAX_OUTPUT_CHARS", 100000),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	if envBool("STEALTH_ENABLED", false) {
		bc, err := engine.NewBrowserClient(15, env.Str("WEBSHARE_API_KEY", ""))
		if err != nil {
			slog.Error("stealth client init failed", slog.Any("error", err))
		} else {
			c.BrowserClient = bc
			slog.Info("stealth browser client initialized")
		}
	}

	engine.Init(c)
}

func openStore(ctx context.Context) (store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	st, err := store.Open(ctx, engine.Cfg.CacheURL, store.Options{
		L1Entries: engine.Cfg.CacheL1Entries,
		S3: store.S3Options{
			Endpoint:        env.Str("S3_ENDPOINT", ""),
			Region:          env.Str("S3_REGION", "auto"),
			AccessKeyID:     env.Str("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.Str("S3_SECRET_ACCESS_KEY", ""),
		},
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// envBool reads a boolean env var; unparsable values fall back to def.
func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(env.Str(key, strconv.FormatBool(def)))
	if err != nil {
		slog.Warn("invalid boolean env value, using default", slog.String("key", key), slog.Bool("default", def))
		return def
	}
	return b
}
