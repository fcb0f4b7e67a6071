package expiration

import (
	"errors"
	"fmt"
	"time"
)

// Symbol is the symbolic expiration interval submitted with a paste.
type Symbol string

const (
	Never      Symbol = ""
	NoChange   Symbol = "PRE"
	TenMinutes Symbol = "10M"
	OneHour    Symbol = "1H"
	OneDay     Symbol = "1D"
	OneWeek    Symbol = "1W"
	TwoWeeks   Symbol = "2W"
	OneMonth   Symbol = "1m"
	SixMonths  Symbol = "6M"
	OneYear    Symbol = "1Y"
)

var (
	// ErrNoChange is returned when the update-only sentinel reaches the calculator.
	ErrNoChange = errors.New("expiration: no-change symbol has no interval")
	// ErrUnknownSymbol indicates the symbol is not one of the supported intervals.
	ErrUnknownSymbol = errors.New("expiration: unknown symbol")
)

const day = 24 * time.Hour

var intervals = map[Symbol]time.Duration{
	TenMinutes: 10 * time.Minute,
	OneHour:    time.Hour,
	OneDay:     day,
	OneWeek:    7 * day,
	TwoWeeks:   14 * day,
	OneMonth:   30 * day,
	SixMonths:  180 * day,
	OneYear:    365 * day,
}

// Choice pairs a symbol with its form label.
type Choice struct {
	Symbol Symbol `json:"symbol"`
	Label  string `json:"label"`
}

var choices = []Choice{
	{Symbol: NoChange, Label: "Don't Change"},
	{Symbol: Never, Label: "Never"},
	{Symbol: TenMinutes, Label: "10 minutes"},
	{Symbol: OneHour, Label: "1 Hour"},
	{Symbol: OneDay, Label: "1 Day"},
	{Symbol: OneWeek, Label: "1 Week"},
	{Symbol: TwoWeeks, Label: "2 Weeks"},
	{Symbol: OneMonth, Label: "1 Month"},
	{Symbol: SixMonths, Label: "6 Month"},
	{Symbol: OneYear, Label: "1 Year"},
}

// Calculate maps a symbol onto an absolute expiration instant relative to now.
// A nil result means the paste never expires.
func Calculate(symbol Symbol, now time.Time) (*time.Time, error) {
	if symbol == Never {
		return nil, nil
	}
	if symbol == NoChange {
		return nil, ErrNoChange
	}
	interval, ok := intervals[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, string(symbol))
	}
	expiresAt := now.Add(interval)
	return &expiresAt, nil
}

// Valid reports whether symbol is acceptable input. NoChange is only valid on updates.
func Valid(symbol Symbol, forUpdate bool) bool {
	if symbol == Never {
		return true
	}
	if symbol == NoChange {
		return forUpdate
	}
	_, ok := intervals[symbol]
	return ok
}

// Choices lists the selectable symbols for a create or update form.
func Choices(forUpdate bool) []Choice {
	result := make([]Choice, 0, len(choices))
	for _, choice := range choices {
		if choice.Symbol == NoChange && !forUpdate {
			continue
		}
		result = append(result, choice)
	}
	return result
}
