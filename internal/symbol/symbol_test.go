package symbol

import (
	"errors"
	"testing"
)

func TestParse_Valid(t *testing.T) {
	s, err := Parse("RELIANCE.NS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Ticker != "RELIANCE" {
		t.Errorf("expected ticker=RELIANCE, got %s", s.Ticker)
	}
	if s.Exchange != ExchangeNSE {
		t.Errorf("expected exchange=NS, got %s", s.Exchange)
	}
	if s.String() != "RELIANCE.NS" {
		t.Errorf("expected RELIANCE.NS, got %s", s.String())
	}
}

func TestParse_Normalizes(t *testing.T) {
	got, err := Normalize("  tcs ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "TCS" {
		t.Errorf("expected TCS, got %q", got)
	}
}

func TestParse_SpecialCharacters(t *testing.T) {
	for _, raw := range []string{"M&M", "BAJAJ-AUTO", "3MINDIA", "M&M.BO"} {
		if _, err := Parse(raw); err != nil {
			t.Errorf("expected %q to parse, got %v", raw, err)
		}
	}
}

func TestParse_ShareClass(t *testing.T) {
	s, err := Parse("brk.b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Ticker != "BRK.B" || s.Exchange != "" {
		t.Errorf("expected ticker BRK.B without exchange, got %+v", s)
	}
	if s.String() != "BRK.B" {
		t.Errorf("expected BRK.B, got %s", s.String())
	}
}

func TestParse_InvalidFormat(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"TCS LTD",
		"TCS.",
		"TCS.NSE",
		"&-",
		"ABCDEFGHIJKLMNOPQRSTU", // 21 chars
		"TCS/INFY",
	}
	for _, raw := range tests {
		if _, err := Parse(raw); err == nil {
			t.Errorf("expected error for symbol %q", raw)
		}
	}
}

func TestParse_InvalidExchange(t *testing.T) {
	_, err := Parse("TCS.XX")
	if !errors.Is(err, ErrInvalidExchange) {
		t.Errorf("expected ErrInvalidExchange, got %v", err)
	}
}
