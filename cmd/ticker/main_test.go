package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alim08/coin_ticker/pkg/models"
)

// syncBuffer is a bytes.Buffer safe for the watch goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestShow_Offline(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"--coin", "btc", "--show", "eur"}, "3474.27 EUR"},
		{[]string{"--coin", "BTC"}, "4181.98 USD"},
		{[]string{"--coin", "eth", "--show", "7d"}, "-16%"},
		{[]string{"--coin", "btc", "--show", "gbp"}, "(what?)"},
		{[]string{"--coin", "doge"}, "(no data)"},
	}
	for _, c := range cases {
		var out bytes.Buffer
		args := append([]string{"ticker", "show", "--offline"}, c.args...)
		if err := newApp(&out).Run(context.Background(), args); err != nil {
			t.Fatalf("%v: %v", c.args, err)
		}
		if got := strings.TrimSpace(out.String()); got != c.want {
			t.Errorf("%v printed %q; want %q", c.args, got, c.want)
		}
	}
}

func TestShow_Endpoint(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Query().Get("convert") != "EUR" || r.URL.Query().Get("limit") != "10" {
			t.Errorf("query = %q; want convert=EUR&limit=10", r.URL.RawQuery)
		}
		w.Write(models.SampleTickerJSON())
	}))
	defer srv.Close()
	t.Setenv("TICKER_CONVERT", "")
	t.Setenv("TICKER_LIMIT", "")

	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(),
		[]string{"ticker", "show", "--endpoint", srv.URL, "--coin", "ltc", "--show", "24h"})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != "-5.2%" || atomic.LoadInt32(&hits) != 1 {
		t.Errorf("printed %q after %d requests", got, hits)
	}
}

func TestShow_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(),
		[]string{"ticker", "show", "--endpoint", srv.URL, "--coin", "btc"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := strings.TrimSpace(out.String()); got != "(no data)" {
		t.Errorf("printed %q; want (no data)", got)
	}
}

func TestWatch_Offline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widgets.yaml")
	data := "widgets:\n  - coin: btc\n    show: eur\n  - coin: xrp\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newApp(out).Run(ctx, []string{"ticker", "watch", "--offline", "--widgets", path})
	}()

	deadline := time.Now().Add(3 * time.Second)
	for strings.Count(out.String(), "\n") < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("output so far: %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	got := out.String()
	for _, want := range []string{"3474.27 EUR", "0.21 USD"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestWatch_NoWidgetsFile(t *testing.T) {
	t.Setenv("TICKER_WIDGETS", "")
	var out bytes.Buffer
	if err := newApp(&out).Run(context.Background(), []string{"ticker", "watch", "--offline"}); err == nil {
		t.Error("expected an error without a widgets file")
	}
}
