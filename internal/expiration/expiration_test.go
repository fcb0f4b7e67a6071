package expiration

import (
	"errors"
	"testing"
	"time"
)

func TestCalculateMapsEverySymbol(t *testing.T) {
	reference := time.Date(2022, 6, 24, 12, 0, 0, 0, time.UTC)
	testCases := []struct {
		symbol Symbol
		want   time.Duration
	}{
		{TenMinutes, 10 * time.Minute},
		{OneHour, time.Hour},
		{OneDay, 24 * time.Hour},
		{OneWeek, 7 * 24 * time.Hour},
		{TwoWeeks, 14 * 24 * time.Hour},
		{OneMonth, 30 * 24 * time.Hour},
		{SixMonths, 180 * 24 * time.Hour},
		{OneYear, 365 * 24 * time.Hour},
	}

	for _, testCase := range testCases {
		got, err := Calculate(testCase.symbol, reference)
		if err != nil {
			t.Fatalf("symbol %q: unexpected error: %v", testCase.symbol, err)
		}
		if got == nil {
			t.Fatalf("symbol %q: expected a timestamp", testCase.symbol)
		}
		if !got.Equal(reference.Add(testCase.want)) {
			t.Fatalf("symbol %q: got %s, want %s", testCase.symbol, got, reference.Add(testCase.want))
		}
	}
}

func TestCalculateNeverReturnsNil(t *testing.T) {
	got, err := Calculate(Never, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil expiration, got %s", got)
	}
}

func TestCalculateRejectsSentinelAndUnknownSymbols(t *testing.T) {
	if _, err := Calculate(NoChange, time.Now()); !errors.Is(err, ErrNoChange) {
		t.Fatalf("expected ErrNoChange, got %v", err)
	}
	if _, err := Calculate(Symbol("3D"), time.Now()); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
}

func TestChoicesHideNoChangeOnCreate(t *testing.T) {
	for _, choice := range Choices(false) {
		if choice.Symbol == NoChange {
			t.Fatalf("create choices must not offer the no-change sentinel")
		}
	}
	if Choices(true)[0].Symbol != NoChange {
		t.Fatalf("update choices should lead with the no-change sentinel")
	}
	if Valid(NoChange, false) || !Valid(NoChange, true) {
		t.Fatalf("unexpected validity for no-change sentinel")
	}
}
