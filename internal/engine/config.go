package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	YouTubeBaseURL  string        // scheme+host of the YouTube web frontend
	CallTimeout     time.Duration // per network call; 0 = no timeout
	MaxRetries      int           // extra attempts per request on transient errors
	RateLimit       float64       // outbound requests per second; <=0 = unlimited
	RateBurst       int
	DedupInFlight   bool // collapse concurrent Get calls for the same video
	BreakerFailures int  // consecutive failures before a method is skipped; 0 = disabled
	BreakerCooldown time.Duration
	CacheURL        string // empty = in-memory store
	CacheL1Entries  int
	HTTPClient      *http.Client
	BrowserClient   *BrowserClient // nil = watch page fetched with HTTPClient
	DefaultLanguage string
	MaxOutputChars  int // caps plain-text tool output
}

var cfg = Config{
	YouTubeBaseURL:  "https://www.youtube.com",
	CallTimeout:     10 * time.Second,
	RateLimit:       5,
	RateBurst:       5,
	DedupInFlight:   true,
	BreakerCooldown: time.Minute,
	DefaultLanguage: "en",
	HTTPClient:      http.DefaultClient,
}

// Cfg exposes the engine configuration for sub-packages (sources, transcript).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
// Zero-valued fields that have no sensible zero meaning get defaults.
func Init(c Config) {
	if c.YouTubeBaseURL == "" {
		c.YouTubeBaseURL = "https://www.youtube.com"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	cfg = c
	Cfg = &cfg
}
