package validation

import (
	"strings"
	"testing"
)

type widgetAttrs struct {
	Coin string `validate:"required,ticker"`
	Show string `validate:"omitempty,mode"`
	Fiat string `validate:"omitempty,currency"`
}

func TestValidateStruct(t *testing.T) {
	cases := []struct {
		name       string
		in         widgetAttrs
		wantFields []string
	}{
		{"valid", widgetAttrs{Coin: "BTC", Show: "eur", Fiat: "EUR"}, nil},
		{"default mode", widgetAttrs{Coin: "ETH"}, nil},
		{"missing coin", widgetAttrs{Show: "7d"}, []string{"Coin"}},
		{"lowercase coin", widgetAttrs{Coin: "btc"}, []string{"Coin"}},
		{"bad mode and fiat", widgetAttrs{Coin: "XRP", Show: "GBP", Fiat: "euro"}, []string{"Show", "Fiat"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			errs := ValidateStruct(c.in)
			if len(errs) != len(c.wantFields) {
				t.Fatalf("got %d errors (%v); want %d", len(errs), errs, len(c.wantFields))
			}
			for i, f := range c.wantFields {
				if errs[i].Field != f {
					t.Errorf("errs[%d].Field = %q; want %q", i, errs[i].Field, f)
				}
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "Coin", Message: "Coin is required"},
		{Field: "Show", Message: "bad"},
	}
	got := errs.Error()
	if !strings.Contains(got, "Coin: Coin is required") || !strings.Contains(got, "; Show: bad") {
		t.Errorf("Error() = %q", got)
	}
	if (ValidationErrors{}).Error() != "" {
		t.Error("empty ValidationErrors should render empty")
	}
}

func TestIsDisplayMode(t *testing.T) {
	for _, m := range []string{"USD", "usd", "EUR", "1h", "1H", "24h", "7D"} {
		if !IsDisplayMode(m) {
			t.Errorf("IsDisplayMode(%q) = false", m)
		}
	}
	for _, m := range []string{"", "GBP", "30d", "usd "} {
		if IsDisplayMode(m) {
			t.Errorf("IsDisplayMode(%q) = true", m)
		}
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol(" doge\x00\n"); got != "DOGE" {
		t.Errorf("NormalizeSymbol = %q; want DOGE", got)
	}
}
