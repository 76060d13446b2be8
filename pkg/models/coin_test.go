package models

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func strp(s string) *string { return &s }

func TestSampleSnapshots(t *testing.T) {
	set := SampleSnapshots()

	want := []string{"BTC", "ETH", "BCH", "XRP", "LTC"}
	if got := set.Symbols(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Symbols = %v; want %v", got, want)
	}

	btc, ok := set.Lookup("btc")
	if !ok {
		t.Fatal("Lookup(btc) not found")
	}
	if btc.PriceUSD != 4181.98 {
		t.Errorf("PriceUSD = %v; want 4181.98", btc.PriceUSD)
	}
	if btc.PriceEUR != 3474.27188856 {
		t.Errorf("PriceEUR = %v; want 3474.27188856", btc.PriceEUR)
	}
	if btc.PercentChange7d != -8.97 {
		t.Errorf("PercentChange7d = %v; want -8.97", btc.PercentChange7d)
	}
	if btc.Rank != 1 {
		t.Errorf("Rank = %d; want 1", btc.Rank)
	}
	if !btc.LastUpdated.Equal(time.Unix(1504970083, 0)) {
		t.Errorf("LastUpdated = %v", btc.LastUpdated)
	}

	xrp, _ := set.Lookup("XRP")
	if xrp.TotalSupply != 99994523265.0 {
		t.Errorf("XRP TotalSupply = %v", xrp.TotalSupply)
	}
}

func TestLookup_Missing(t *testing.T) {
	set := SampleSnapshots()
	if _, ok := set.Lookup("doge"); ok {
		t.Error("Lookup(doge) should not be found")
	}

	var nilSet *SnapshotSet
	if _, ok := nilSet.Lookup("BTC"); ok {
		t.Error("Lookup on nil set should not be found")
	}
	if nilSet.Len() != 0 || nilSet.Symbols() != nil {
		t.Error("nil set should be empty")
	}
}

func TestRawCoinParse_NullFields(t *testing.T) {
	raw := RawCoin{
		ID:       "tether",
		Name:     "Tether",
		Symbol:   "usdt",
		Rank:     strp("12"),
		PriceUSD: strp("1.0"),
	}
	c, err := raw.Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Symbol != "USDT" {
		t.Errorf("Symbol = %q; want USDT", c.Symbol)
	}
	if c.PriceEUR != 0 || c.TotalSupply != 0 {
		t.Errorf("absent fields should parse to zero, got %+v", c)
	}
	if !c.LastUpdated.IsZero() {
		t.Errorf("LastUpdated = %v; want zero", c.LastUpdated)
	}
}

func TestRawCoinParse_Malformed(t *testing.T) {
	cases := []struct {
		name      string
		raw       RawCoin
		wantField string
	}{
		{
			name:      "text price",
			raw:       RawCoin{Name: "Bitcoin", Symbol: "BTC", PriceUSD: strp("four thousand")},
			wantField: "price_usd",
		},
		{
			name:      "NaN price",
			raw:       RawCoin{Name: "Bitcoin", Symbol: "BTC", PriceUSD: strp("NaN")},
			wantField: "price_usd",
		},
		{
			name:      "infinite change",
			raw:       RawCoin{Name: "Bitcoin", Symbol: "BTC", PercentChange7d: strp("Inf")},
			wantField: "percent_change_7d",
		},
		{
			name:      "negative infinite eur price",
			raw:       RawCoin{Name: "Bitcoin", Symbol: "BTC", PriceEUR: strp("-infinity")},
			wantField: "price_eur",
		},
		{
			name:      "bad rank",
			raw:       RawCoin{Name: "Bitcoin", Symbol: "BTC", Rank: strp("first")},
			wantField: "rank",
		},
		{
			name:      "bad timestamp",
			raw:       RawCoin{Name: "Bitcoin", Symbol: "BTC", LastUpdated: strp("yesterday")},
			wantField: "last_updated",
		},
		{
			name:      "missing symbol",
			raw:       RawCoin{ID: "mystery", Name: "Mystery"},
			wantField: "Symbol",
		},
		{
			name:      "symbol too long",
			raw:       RawCoin{Name: "Long", Symbol: "ABCDEFGHIJKL"},
			wantField: "Symbol",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := c.raw.Parse()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrMalformedData) {
				t.Errorf("errors.Is(err, ErrMalformedData) = false for %v", err)
			}
			var mde *MalformedDataError
			if !errors.As(err, &mde) {
				t.Fatalf("expected *MalformedDataError, got %T", err)
			}
			if mde.Field != c.wantField {
				t.Errorf("Field = %q; want %q", mde.Field, c.wantField)
			}
		})
	}
}

func TestNewSnapshotSet_DuplicateSymbol(t *testing.T) {
	raw := []RawCoin{
		{Name: "Bitcoin", Symbol: "BTC"},
		{Name: "Bitcoin Again", Symbol: "btc"},
	}
	_, err := NewSnapshotSet(raw, time.Now())
	if !errors.Is(err, ErrMalformedData) {
		t.Fatalf("err = %v; want ErrMalformedData", err)
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate: %v", err)
	}
}

func TestParseSnapshotSet_BadJSON(t *testing.T) {
	if _, err := ParseSnapshotSet([]byte(`{"error": "id not found"}`), time.Now()); err == nil {
		t.Fatal("expected error for non-array body")
	}
}

func TestParseSnapshotSet_NonFinite(t *testing.T) {
	body := []byte(`[{"id": "bitcoin", "name": "Bitcoin", "symbol": "BTC", "rank": "1",
		"price_usd": "NaN", "percent_change_7d": "Inf"}]`)
	set, err := ParseSnapshotSet(body, time.Now())
	if set != nil || !errors.Is(err, ErrMalformedData) {
		t.Fatalf("ParseSnapshotSet = %v, %v; want ErrMalformedData", set, err)
	}
	var mde *MalformedDataError
	if errors.As(err, &mde) && (mde.Field != "price_usd" || mde.Value != "NaN") {
		t.Errorf("first failure = %s=%q; want price_usd=NaN", mde.Field, mde.Value)
	}
}

func TestSnapshotSetJSON(t *testing.T) {
	set := SampleSnapshots()
	s, err := set.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	back, err := SnapshotSetFromJSON(s)
	if err != nil {
		t.Fatalf("SnapshotSetFromJSON: %v", err)
	}
	if !back.FetchedAt.Equal(set.FetchedAt) {
		t.Errorf("FetchedAt = %v; want %v", back.FetchedAt, set.FetchedAt)
	}
	ltc, ok := back.Lookup("LTC")
	if !ok || ltc.PriceEUR != 54.3062364048 {
		t.Errorf("LTC after decode = %+v, %v", ltc, ok)
	}

	if _, err := SnapshotSetFromJSON(`{"coins":[{"symbol":"btc","name":"x"}]}`); !errors.Is(err, ErrMalformedData) {
		t.Errorf("lowercase symbol in published set should be rejected, got %v", err)
	}
}
