package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alim08/coin_ticker/pkg/models"
)

func TestFetchSnapshots_Success(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write(models.SampleTickerJSON())
	}))
	defer srv.Close()

	fixed := time.Date(2017, 9, 9, 15, 0, 0, 0, time.UTC)
	c := New(srv.URL+"/v1/ticker/", "EUR", 10, time.Second, WithClock(func() time.Time { return fixed }))

	set, err := c.FetchSnapshots(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "convert=EUR&limit=10" {
		t.Errorf("query = %q; want convert=EUR&limit=10", gotQuery)
	}
	if set.Len() != 5 {
		t.Errorf("Len = %d; want 5", set.Len())
	}
	if !set.FetchedAt.Equal(fixed) {
		t.Errorf("FetchedAt = %v; want %v", set.FetchedAt, fixed)
	}
}

func TestFetchSnapshots_Errors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "non-200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			},
			check: func(t *testing.T, err error) {
				var se *StatusError
				if !errors.As(err, &se) {
					t.Fatalf("expected *StatusError, got %T: %v", err, err)
				}
				if se.Code != http.StatusTooManyRequests {
					t.Errorf("Code = %d; want 429", se.Code)
				}
			},
		},
		{
			name: "malformed record",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[{"id":"bitcoin","name":"Bitcoin","symbol":"BTC","price_usd":"n/a"}]`))
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, models.ErrMalformedData) {
					t.Errorf("expected ErrMalformedData, got %v", err)
				}
			},
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>maintenance</html>`))
			},
			check: func(t *testing.T, err error) {
				if err == nil {
					t.Fatal("expected decode error")
				}
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(c.handler)
			defer srv.Close()

			_, err := New(srv.URL, "EUR", 10, time.Second).FetchSnapshots(context.Background())
			c.check(t, err)
		})
	}
}

func TestFetchSnapshots_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := New(addr, "EUR", 10, time.Second).FetchSnapshots(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestURL(t *testing.T) {
	c := New("https://api.coinmarketcap.com/v1/ticker/", "EUR", 10, 0)
	want := "https://api.coinmarketcap.com/v1/ticker/?convert=EUR&limit=10"
	if got := c.URL(); got != want {
		t.Errorf("URL = %q; want %q", got, want)
	}
	if c.Key() != want {
		t.Errorf("Key should equal URL")
	}
}
