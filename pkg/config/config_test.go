package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"TICKER_ENDPOINT", "TICKER_CONVERT", "TICKER_LIMIT", "TICKER_CACHE_TTL", "REDIS_URL", "PORT"} {
		t.Setenv(k, "")
	}

	cfg, err := parse(nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %q; want %q", cfg.Endpoint, DefaultEndpoint)
	}
	if cfg.Convert != "EUR" || cfg.Limit != 10 {
		t.Errorf("Convert/Limit = %q/%d; want EUR/10", cfg.Convert, cfg.Limit)
	}
	if cfg.CacheTTL != 300*time.Second {
		t.Errorf("CacheTTL = %v; want 5m", cfg.CacheTTL)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q; want empty", cfg.RedisURL)
	}
}

func TestLoad_EnvAndFlags(t *testing.T) {
	t.Setenv("TICKER_CACHE_TTL", "60")
	t.Setenv("TICKER_CONVERT", "usd")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := parse([]string{"-limit", "25", "-port", "9090"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v; want 1m", cfg.CacheTTL)
	}
	if cfg.Convert != "USD" {
		t.Errorf("Convert = %q; want USD", cfg.Convert)
	}
	if cfg.Limit != 25 || cfg.HTTPPort != 9090 {
		t.Errorf("Limit/Port = %d/%d; want 25/9090", cfg.Limit, cfg.HTTPPort)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][]string{
		"zero limit":   {"-limit", "0"},
		"bad currency": {"-convert", "euro"},
		"bad endpoint": {"-endpoint", "not a url"},
		"unknown flag": {"-nope"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parse(args); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestParseWidgets(t *testing.T) {
	data := []byte(`
widgets:
  - coin: btc
    show: EUR
  - coin: " eth "
  - coin: ltc
    show: 7d
`)
	got, err := ParseWidgets(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []WidgetSpec{
		{Coin: "BTC", Show: "EUR"},
		{Coin: "ETH", Show: ""},
		{Coin: "LTC", Show: "7d"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseWidgets = %+v; want %+v", got, want)
	}
}

func TestParseWidgets_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":    "widgets: []",
		"no coin":  "widgets:\n  - show: usd\n",
		"bad mode": "widgets:\n  - coin: btc\n    show: gbp\n",
		"not yaml": "widgets: [",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseWidgets([]byte(in)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoadWidgets_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widgets.yaml")
	if err := os.WriteFile(path, []byte("widgets:\n  - coin: xrp\n    show: 24h\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadWidgets(path)
	if err != nil {
		t.Fatalf("LoadWidgets: %v", err)
	}
	if len(got) != 1 || got[0].Coin != "XRP" || got[0].Show != "24h" {
		t.Errorf("LoadWidgets = %+v", got)
	}

	if _, err := LoadWidgets(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
