// Package symbol handles equity ticker parsing and normalization.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Supported exchange suffixes.
const (
	ExchangeNSE = "NS"
	ExchangeBSE = "BO"
)

// symbolRegex matches: {TICKER}[.{EXCHANGE}|.{CLASS}]
// Examples: TCS, M&M, BAJAJ-AUTO, RELIANCE.NS, BRK.B
var symbolRegex = regexp.MustCompile(`^([A-Z0-9&-]{1,20})(?:\.([A-Z]{1,2}))?$`)

var validExchanges = map[string]bool{
	ExchangeNSE: true,
	ExchangeBSE: true,
}

var (
	ErrInvalidSymbol   = errors.New("symbol: invalid ticker format")
	ErrInvalidExchange = errors.New("symbol: unsupported exchange suffix")
)

// Symbol is a parsed ticker.
type Symbol struct {
	Ticker   string `json:"ticker"`
	Exchange string `json:"exchange,omitempty"`
}

// String returns the canonical form used as the holding key.
func (s Symbol) String() string {
	if s.Exchange == "" {
		return s.Ticker
	}
	return s.Ticker + "." + s.Exchange
}

// Parse trims, upper-cases and validates a ticker.
// Format: {TICKER}[.NS|.BO|.{CLASS}]
func Parse(raw string) (Symbol, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	matches := symbolRegex.FindStringSubmatch(norm)
	if matches == nil {
		return Symbol{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	if strings.Trim(matches[1], "&-") == "" {
		return Symbol{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	ticker, ex := matches[1], matches[2]
	if len(ex) == 1 {
		// Share class, e.g. BRK.B.
		return Symbol{Ticker: ticker + "." + ex}, nil
	}
	if ex != "" && !validExchanges[ex] {
		return Symbol{}, fmt.Errorf("%w: %s", ErrInvalidExchange, ex)
	}
	return Symbol{Ticker: ticker, Exchange: ex}, nil
}

// Normalize returns the canonical string form of raw.
func Normalize(raw string) (string, error) {
	s, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}
