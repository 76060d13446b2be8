package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alim08/coin_ticker/pkg/validation"
)

// ErrMalformedData is matched by every MalformedDataError via errors.Is.
var ErrMalformedData = errors.New("malformed market data")

var errNotFinite = errors.New("number is not finite")

// MalformedDataError reports a record that could not be turned into a CoinSnapshot.
type MalformedDataError struct {
	Coin  string
	Field string
	Value string
	Err   error
}

func (e *MalformedDataError) Error() string {
	msg := fmt.Sprintf("malformed market data [%s]: field %q", e.Coin, e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" value %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedDataError) Unwrap() error { return e.Err }

func (e *MalformedDataError) Is(target error) bool { return target == ErrMalformedData }

// RawCoin is one record of the ticker endpoint as it arrives on the wire.
// Numeric values are JSON strings and may be null.
type RawCoin struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	Rank             *string `json:"rank"`
	PriceUSD         *string `json:"price_usd"`
	PriceBTC         *string `json:"price_btc"`
	Volume24hUSD     *string `json:"24h_volume_usd"`
	MarketCapUSD     *string `json:"market_cap_usd"`
	AvailableSupply  *string `json:"available_supply"`
	TotalSupply      *string `json:"total_supply"`
	PercentChange1h  *string `json:"percent_change_1h"`
	PercentChange24h *string `json:"percent_change_24h"`
	PercentChange7d  *string `json:"percent_change_7d"`
	LastUpdated      *string `json:"last_updated"`
	PriceEUR         *string `json:"price_eur"`
	Volume24hEUR     *string `json:"24h_volume_eur"`
	MarketCapEUR     *string `json:"market_cap_eur"`
}

// CoinSnapshot is the typed market snapshot for one coin.
type CoinSnapshot struct {
	ID               string    `json:"id"`
	Symbol           string    `json:"symbol" validate:"required,ticker"`
	Name             string    `json:"name" validate:"required"`
	Rank             int       `json:"rank" validate:"gte=0"`
	PriceUSD         float64   `json:"price_usd"`
	PriceEUR         float64   `json:"price_eur"`
	PriceBTC         float64   `json:"price_btc"`
	Volume24hUSD     float64   `json:"volume_24h_usd"`
	Volume24hEUR     float64   `json:"volume_24h_eur"`
	MarketCapUSD     float64   `json:"market_cap_usd"`
	MarketCapEUR     float64   `json:"market_cap_eur"`
	AvailableSupply  float64   `json:"available_supply"`
	TotalSupply      float64   `json:"total_supply"`
	PercentChange1h  float64   `json:"percent_change_1h"`
	PercentChange24h float64   `json:"percent_change_24h"`
	PercentChange7d  float64   `json:"percent_change_7d"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Validate validates the CoinSnapshot struct
func (c CoinSnapshot) Validate() error {
	if errs := validation.ValidateStruct(c); len(errs) > 0 {
		return errs
	}
	return nil
}

// Parse converts the wire record into a CoinSnapshot. Any present but
// non-numeric field fails with a *MalformedDataError.
func (r RawCoin) Parse() (CoinSnapshot, error) {
	c := CoinSnapshot{
		ID:     validation.SanitizeString(r.ID),
		Symbol: validation.NormalizeSymbol(r.Symbol),
		Name:   validation.SanitizeString(r.Name),
	}
	coin := c.Symbol
	if coin == "" {
		coin = c.ID
	}

	p := fieldParser{coin: coin}
	c.Rank = p.integer("rank", r.Rank)
	c.PriceUSD = p.number("price_usd", r.PriceUSD)
	c.PriceEUR = p.number("price_eur", r.PriceEUR)
	c.PriceBTC = p.number("price_btc", r.PriceBTC)
	c.Volume24hUSD = p.number("24h_volume_usd", r.Volume24hUSD)
	c.Volume24hEUR = p.number("24h_volume_eur", r.Volume24hEUR)
	c.MarketCapUSD = p.number("market_cap_usd", r.MarketCapUSD)
	c.MarketCapEUR = p.number("market_cap_eur", r.MarketCapEUR)
	c.AvailableSupply = p.number("available_supply", r.AvailableSupply)
	c.TotalSupply = p.number("total_supply", r.TotalSupply)
	c.PercentChange1h = p.number("percent_change_1h", r.PercentChange1h)
	c.PercentChange24h = p.number("percent_change_24h", r.PercentChange24h)
	c.PercentChange7d = p.number("percent_change_7d", r.PercentChange7d)
	if secs := p.integer("last_updated", r.LastUpdated); secs > 0 {
		c.LastUpdated = time.Unix(int64(secs), 0).UTC()
	}
	if p.err != nil {
		return CoinSnapshot{}, p.err
	}

	if err := c.Validate(); err != nil {
		var verrs validation.ValidationErrors
		field := "record"
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field = verrs[0].Field
		}
		return CoinSnapshot{}, &MalformedDataError{Coin: coin, Field: field, Err: err}
	}
	return c, nil
}

// fieldParser keeps the first parse failure so Parse reads top to bottom.
type fieldParser struct {
	coin string
	err  error
}

func (p *fieldParser) number(field string, v *string) float64 {
	if p.err != nil || v == nil {
		return 0
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = &MalformedDataError{Coin: p.coin, Field: field, Value: s, Err: err}
		return 0
	}
	// ParseFloat accepts "NaN" and "Inf"; neither can be displayed
	if math.IsNaN(f) || math.IsInf(f, 0) {
		p.err = &MalformedDataError{Coin: p.coin, Field: field, Value: s, Err: errNotFinite}
		return 0
	}
	return f
}

func (p *fieldParser) integer(field string, v *string) int {
	if p.err != nil || v == nil {
		return 0
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.err = &MalformedDataError{Coin: p.coin, Field: field, Value: s, Err: err}
		return 0
	}
	return n
}

// SnapshotSet is the full result of one fetch. It is never mutated once
// built; a newer fetch replaces it wholesale.
type SnapshotSet struct {
	Coins     []CoinSnapshot `json:"coins"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// NewSnapshotSet parses every raw record and enforces unique symbols.
func NewSnapshotSet(raw []RawCoin, fetchedAt time.Time) (*SnapshotSet, error) {
	set := &SnapshotSet{
		Coins:     make([]CoinSnapshot, 0, len(raw)),
		FetchedAt: fetchedAt,
	}
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		c, err := r.Parse()
		if err != nil {
			return nil, err
		}
		if seen[c.Symbol] {
			return nil, &MalformedDataError{Coin: c.Symbol, Field: "symbol", Value: c.Symbol,
				Err: errors.New("duplicate symbol in snapshot set")}
		}
		seen[c.Symbol] = true
		set.Coins = append(set.Coins, c)
	}
	return set, nil
}

// ParseSnapshotSet decodes a ticker endpoint body.
func ParseSnapshotSet(body []byte, fetchedAt time.Time) (*SnapshotSet, error) {
	var raw []RawCoin
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	return NewSnapshotSet(raw, fetchedAt)
}

// Lookup finds a coin by symbol, case-insensitive.
func (s *SnapshotSet) Lookup(symbol string) (CoinSnapshot, bool) {
	if s == nil {
		return CoinSnapshot{}, false
	}
	symbol = validation.NormalizeSymbol(symbol)
	for _, c := range s.Coins {
		if c.Symbol == symbol {
			return c, true
		}
	}
	return CoinSnapshot{}, false
}

// Symbols lists the tracked symbols in endpoint order.
func (s *SnapshotSet) Symbols() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.Coins))
	for i, c := range s.Coins {
		out[i] = c.Symbol
	}
	return out
}

// Len returns the number of coins, zero for a nil set.
func (s *SnapshotSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Coins)
}

// ToJSON converts to JSON string for pub/sub
func (s *SnapshotSet) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("json marshal error: %w", err)
	}
	return string(data), nil
}

// SnapshotSetFromJSON decodes a set published by ToJSON and re-validates every coin.
func SnapshotSetFromJSON(data string) (*SnapshotSet, error) {
	var set SnapshotSet
	if err := json.Unmarshal([]byte(data), &set); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	seen := make(map[string]bool, len(set.Coins))
	for _, c := range set.Coins {
		if err := c.Validate(); err != nil {
			return nil, &MalformedDataError{Coin: c.Symbol, Field: "record", Err: err}
		}
		if seen[c.Symbol] {
			return nil, &MalformedDataError{Coin: c.Symbol, Field: "symbol", Value: c.Symbol,
				Err: errors.New("duplicate symbol in snapshot set")}
		}
		seen[c.Symbol] = true
	}
	return &set, nil
}
