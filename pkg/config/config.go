package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alim08/coin_ticker/pkg/validation"
)

const (
	DefaultEndpoint    = "https://api.coinmarketcap.com/v1/ticker/"
	DefaultConvert     = "EUR"
	DefaultLimit       = 10
	DefaultCacheTTL    = 300 * time.Second
	DefaultHTTPTimeout = 10 * time.Second
)

type Config struct {
	Endpoint    string        `validate:"required,url"`
	Convert     string        `validate:"required,currency"`
	Limit       int           `validate:"min=1,max=2000"`
	CacheTTL    time.Duration `validate:"gte=0"`
	HTTPTimeout time.Duration `validate:"gte=0"`
	RedisURL    string        // optional; enables the shared cross-process cache
	HTTPPort    int           `validate:"min=1,max=65535"`
	MetricsPort int           `validate:"min=1,max=65535"`
	WidgetsFile string
}

// FromEnv returns defaults overlaid with environment variables. Hosts that own
// their flag parsing (the CLI) start here.
func FromEnv() *Config {
	cfg := &Config{
		Endpoint:    getEnvOrDefault("TICKER_ENDPOINT", DefaultEndpoint),
		Convert:     strings.ToUpper(getEnvOrDefault("TICKER_CONVERT", DefaultConvert)),
		Limit:       getIntEnvOrDefault("TICKER_LIMIT", DefaultLimit),
		CacheTTL:    getDurationEnvOrDefault("TICKER_CACHE_TTL", DefaultCacheTTL),
		HTTPTimeout: getDurationEnvOrDefault("TICKER_HTTP_TIMEOUT", DefaultHTTPTimeout),
		RedisURL:    os.Getenv("REDIS_URL"),
		HTTPPort:    getIntEnvOrDefault("PORT", 8080),
		MetricsPort: getIntEnvOrDefault("METRICS_PORT", 8082),
		WidgetsFile: os.Getenv("TICKER_WIDGETS"),
	}
	return cfg
}

// Load reads environment variables and application flags (via a local FlagSet),
// strips out any -test.* flags, and validates the result.
func Load() (*Config, error) {
	var appArgs []string
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "-test.") {
			continue
		}
		appArgs = append(appArgs, arg)
	}
	return parse(appArgs)
}

func parse(args []string) (*Config, error) {
	cfg := FromEnv()

	// A fresh FlagSet so we don't collide with `go test` flags
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "Market-data ticker endpoint")
	fs.StringVar(&cfg.Convert, "convert", cfg.Convert, "Second quote currency requested from the endpoint")
	fs.IntVar(&cfg.Limit, "limit", cfg.Limit, "Number of coins requested per fetch")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "How long a fetched snapshot set is served from cache")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "Market-data request timeout")
	fs.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "Redis connection URL for the shared cache (optional)")
	fs.IntVar(&cfg.HTTPPort, "port", cfg.HTTPPort, "HTTP listen port")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "Metrics server port")
	fs.StringVar(&cfg.WidgetsFile, "widgets", cfg.WidgetsFile, "YAML file listing widgets to prewarm")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Convert = strings.ToUpper(cfg.Convert)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and formats.
func (c *Config) Validate() error {
	if errs := validation.ValidateStruct(c); len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errs)
	}
	return nil
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getDurationEnvOrDefault accepts Go durations ("5m") or plain seconds ("300").
func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
