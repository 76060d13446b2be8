package ticker

import (
	"math"
	"strings"

	"github.com/alim08/coin_ticker/pkg/models"
	"github.com/shopspring/decimal"
)

// Placeholder texts.
const (
	NoDataText      = "(no data)"
	UnknownModeText = "(what?)"
)

// Mode selects which figure a widget shows.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeUSD
	ModeEUR
	Mode1h
	Mode24h
	Mode7d
)

func (m Mode) String() string {
	switch m {
	case ModeUSD:
		return "USD"
	case ModeEUR:
		return "EUR"
	case Mode1h:
		return "1h"
	case Mode24h:
		return "24h"
	case Mode7d:
		return "7d"
	default:
		return "unknown"
	}
}

// ParseMode maps the show attribute to a Mode. An empty value means USD.
func ParseMode(show string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(show)) {
	case "", "usd":
		return ModeUSD, true
	case "eur":
		return ModeEUR, true
	case "1h":
		return Mode1h, true
	case "24h":
		return Mode24h, true
	case "7d":
		return Mode7d, true
	default:
		return ModeUnknown, false
	}
}

// Outcome classifies a render for metrics and callers that need more than text.
type Outcome string

const (
	OutcomeNoData      Outcome = "no_data"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeUnknownMode Outcome = "unknown_mode"
	OutcomePrice       Outcome = "price"
	OutcomeChange      Outcome = "change"
)

// Render returns the widget text for coin and show over set.
func Render(coin, show string, set *models.SnapshotSet) string {
	text, _ := Evaluate(coin, show, set)
	return text
}

// Evaluate is Render plus the outcome. Missing data and a coin absent from
// the set both render NoDataText; an unknown mode renders UnknownModeText
// whatever the set contains.
func Evaluate(coin, show string, set *models.SnapshotSet) (string, Outcome) {
	if set == nil || strings.TrimSpace(coin) == "" {
		return NoDataText, OutcomeNoData
	}
	mode, ok := ParseMode(show)
	if !ok {
		return UnknownModeText, OutcomeUnknownMode
	}
	c, found := set.Lookup(coin)
	if !found {
		return NoDataText, OutcomeNotFound
	}

	var (
		v       float64
		places  int32 = 1
		suffix        = "%"
		outcome       = OutcomeChange
	)
	switch mode {
	case ModeEUR:
		v, places, suffix, outcome = c.PriceEUR, 2, " EUR", OutcomePrice
	case Mode1h:
		v = c.PercentChange1h
	case Mode24h:
		v = c.PercentChange24h
	case Mode7d:
		v = c.PercentChange7d
	default:
		v, places, suffix, outcome = c.PriceUSD, 2, " USD", OutcomePrice
	}
	// Parsed sets are always finite; hand-built ones may not be
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NoDataText, OutcomeNoData
	}
	return FormatRounded(v, places) + suffix, outcome
}

// FormatRounded rounds half away from zero at the given number of decimal
// places and prints without trailing zeros (4181.90 -> "4181.9").
func FormatRounded(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).String()
}
