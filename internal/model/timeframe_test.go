package model

import (
	"errors"
	"testing"
	"time"
)

func TestResolveTimeframe(t *testing.T) {
	now := time.Date(2024, 6, 14, 16, 0, 0, 0, time.UTC)
	cases := []struct {
		tf   Timeframe
		res  Resolution
		from time.Time
	}{
		{TF1D, Res15, now.AddDate(0, 0, -1)},
		{TF5D, Res60, now.AddDate(0, 0, -5)},
		{TF3M, ResDay, now.AddDate(0, -3, 0)},
		{TF1Y, ResDay, now.AddDate(-1, 0, 0)},
		{TF5Y, ResWeek, now.AddDate(-5, 0, 0)},
		{TFMax, ResMonth, now.AddDate(-20, 0, 0)},
	}
	for _, c := range cases {
		req, err := ResolveTimeframe("AAPL", c.tf, now)
		if err != nil {
			t.Fatalf("%s: %v", c.tf, err)
		}
		if req.Resolution != c.res {
			t.Errorf("%s: resolution %s, want %s", c.tf, req.Resolution, c.res)
		}
		if req.From != c.from.Unix() || req.To != now.Unix() {
			t.Errorf("%s: window [%d,%d], want [%d,%d]", c.tf, req.From, req.To, c.from.Unix(), now.Unix())
		}
	}
}

func TestResolveTimeframe_CustomAndUnknown(t *testing.T) {
	now := time.Now()
	if _, err := ResolveTimeframe("AAPL", TFCustom, now); !errors.Is(err, ErrUnknownTimeframe) {
		t.Errorf("CUSTOM should need an explicit range, got %v", err)
	}
	if _, err := ResolveTimeframe("AAPL", Timeframe("2H"), now); !errors.Is(err, ErrUnknownTimeframe) {
		t.Errorf("expected ErrUnknownTimeframe, got %v", err)
	}
}

func TestResolveCustomRange(t *testing.T) {
	to := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		span time.Duration
		want Resolution
	}{
		{24 * time.Hour, Res15},
		{7 * 24 * time.Hour, Res60},
		{365 * 24 * time.Hour, ResDay},
		{5 * 365 * 24 * time.Hour, ResWeek},
		{15 * 365 * 24 * time.Hour, ResMonth},
	}
	for _, c := range cases {
		req, err := ResolveCustomRange("MSFT", to.Add(-c.span), to)
		if err != nil {
			t.Fatalf("span %s: %v", c.span, err)
		}
		if req.Resolution != c.want {
			t.Errorf("span %s: resolution %s, want %s", c.span, req.Resolution, c.want)
		}
	}

	if _, err := ResolveCustomRange("MSFT", to, to); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for empty range, got %v", err)
	}
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe(" 5y ")
	if err != nil || tf != TF5Y {
		t.Fatalf("got %q, %v", tf, err)
	}
	if _, err := ParseTimeframe("10Y"); !errors.Is(err, ErrUnknownTimeframe) {
		t.Errorf("expected ErrUnknownTimeframe, got %v", err)
	}
}
