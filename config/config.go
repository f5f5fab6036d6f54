// Package config loads crawl4go's operational configuration from the
// environment, in the teacher's envOr/envIntOr style.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-tunable knob crawl4go's collaborators need
// at construction time. RunConfig (model.RunConfig) carries the per-crawl
// knobs instead; Config is process-wide.
type Config struct {
	Browser      BrowserConfig
	Fetch        FetchConfig
	Cache        CacheConfig
	RateLimit    RateLimitConfig
	Memory       MemoryConfig
	AdaptivePool AdaptivePoolConfig
	LLM          LLMConfig
	Log          LogConfig
}

// BrowserConfig controls the shared Rod browser instance.
type BrowserConfig struct {
	Headless     bool   // default: true
	MaxPages     int    // page pool capacity; default: 10
	DefaultProxy string // default proxy URL for every browser fetch
	NoSandbox    bool   // default: false
	BrowserBin   string // overrides the Chromium binary path
	CDPUrl       string // connect to an already-running browser instead of launching one
}

// FetchConfig controls the HTTP fetch strategy and orchestrator defaults.
type FetchConfig struct {
	DefaultTimeout    time.Duration // default: 30s
	MaxTimeout        time.Duration // default: 120s
	NavigationTimeout time.Duration // default: 15s
	DomainMemoryTTL   time.Duration // default: 1h
	SessionIdleTTL    time.Duration // default: 10m
}

// CacheConfig controls the result cache (§4.5).
type CacheConfig struct {
	MaxEntries int           // default: 1000
	TTL        time.Duration // 0 = no expiry; default: 0
	SitemapTTL time.Duration // seed.SitemapFetcher cache entry lifetime; default: 24h
}

// RateLimitConfig controls dispatch.RateLimiter's per-host pacing.
type RateLimitConfig struct {
	MeanDelayS float64 // default: 0 (disabled unless a RunConfig overrides it)
	MaxRangeS  float64 // default: 0
}

// MemoryConfig controls dispatch.MemoryMonitor's admission gate.
type MemoryConfig struct {
	ThresholdMB float64       // default: 0 (disabled)
	PollInterval time.Duration // default: 1s
}

// AdaptivePoolConfig controls fetch.PagePool sizing.
type AdaptivePoolConfig struct {
	MinPages     int     // default: 3
	HardMax      int     // default: 20
	MemThreshold float64 // heap fraction above which the pool shrinks; default: 0.9
	ScaleStep    float64 // default: 0.05
}

// LLMConfig controls the llmclient.Client used by LLM-backed filters,
// extraction strategies, and regex pattern generation.
type LLMConfig struct {
	APIKey  string
	BaseURL string        // default: "https://api.openai.com/v1"
	Model   string        // default: "gpt-4o-mini"
	Timeout time.Duration // default: 60s
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"; default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads Config from the environment with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:     envBoolOr("CRAWL4GO_HEADLESS", true),
			MaxPages:     envIntOr("CRAWL4GO_MAX_PAGES", 10),
			DefaultProxy: os.Getenv("CRAWL4GO_PROXY"),
			NoSandbox:    envBoolOr("CRAWL4GO_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("CRAWL4GO_BROWSER_BIN"),
			CDPUrl:       os.Getenv("CRAWL4GO_CDP_URL"),
		},
		Fetch: FetchConfig{
			DefaultTimeout:    envDurationOr("CRAWL4GO_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:        envDurationOr("CRAWL4GO_MAX_TIMEOUT", 120*time.Second),
			NavigationTimeout: envDurationOr("CRAWL4GO_NAV_TIMEOUT", 15*time.Second),
			DomainMemoryTTL:   envDurationOr("CRAWL4GO_DOMAIN_MEMORY_TTL", time.Hour),
			SessionIdleTTL:    envDurationOr("CRAWL4GO_SESSION_IDLE_TTL", 10*time.Minute),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("CRAWL4GO_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("CRAWL4GO_CACHE_TTL", 0),
			SitemapTTL: envDurationOr("CRAWL4GO_SITEMAP_CACHE_TTL", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			MeanDelayS: envFloatOr("CRAWL4GO_RATE_MEAN_DELAY_S", 0),
			MaxRangeS:  envFloatOr("CRAWL4GO_RATE_MAX_RANGE_S", 0),
		},
		Memory: MemoryConfig{
			ThresholdMB:  envFloatOr("CRAWL4GO_MEMORY_THRESHOLD_MB", 0),
			PollInterval: envDurationOr("CRAWL4GO_MEMORY_POLL_INTERVAL", time.Second),
		},
		AdaptivePool: AdaptivePoolConfig{
			MinPages:     envIntOr("CRAWL4GO_MIN_PAGES", 3),
			HardMax:      envIntOr("CRAWL4GO_HARD_MAX_PAGES", 20),
			MemThreshold: envFloatOr("CRAWL4GO_POOL_MEM_THRESHOLD", 0.9),
			ScaleStep:    envFloatOr("CRAWL4GO_POOL_SCALE_STEP", 0.05),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("CRAWL4GO_LLM_API_KEY"),
			BaseURL: envOr("CRAWL4GO_LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:   envOr("CRAWL4GO_LLM_MODEL", "gpt-4o-mini"),
			Timeout: envDurationOr("CRAWL4GO_LLM_TIMEOUT", 60*time.Second),
		},
		Log: LogConfig{
			Level:  envOr("CRAWL4GO_LOG_LEVEL", "info"),
			Format: envOr("CRAWL4GO_LOG_FORMAT", "json"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
