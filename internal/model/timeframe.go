package model

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is the user-facing lookback key shown in the timeframe picker.
type Timeframe string

const (
	TF1D     Timeframe = "1D"
	TF5D     Timeframe = "5D"
	TF1M     Timeframe = "1M"
	TF3M     Timeframe = "3M"
	TF6M     Timeframe = "6M"
	TF1Y     Timeframe = "1Y"
	TF5Y     Timeframe = "5Y"
	TFMax    Timeframe = "MAX"
	TFCustom Timeframe = "CUSTOM"
)

// Timeframes lists the picker keys in display order.
var Timeframes = []Timeframe{TF1D, TF5D, TF1M, TF3M, TF6M, TF1Y, TF5Y, TFMax, TFCustom}

// ParseTimeframe normalises a raw key. Unknown keys return ErrUnknownTimeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Timeframes {
		if tf == known {
			return tf, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTimeframe, s)
}

// Resolution is the bar size understood by the candle fetch collaborator.
type Resolution string

const (
	Res1     Resolution = "1"
	Res5     Resolution = "5"
	Res15    Resolution = "15"
	Res30    Resolution = "30"
	Res60    Resolution = "60"
	ResDay   Resolution = "D"
	ResWeek  Resolution = "W"
	ResMonth Resolution = "M"
)

// Valid reports whether r is one of the fetchable resolutions.
func (r Resolution) Valid() bool {
	switch r {
	case Res1, Res5, Res15, Res30, Res60, ResDay, ResWeek, ResMonth:
		return true
	default:
		return false
	}
}

// FetchRequest is the fully resolved input to a candle fetch.
type FetchRequest struct {
	Symbol     string
	Resolution Resolution
	From       int64 // unix seconds, inclusive
	To         int64 // unix seconds, inclusive
}

type timeframeSpec struct {
	resolution Resolution
	back       func(now time.Time) time.Time
}

var timeframeTable = map[Timeframe]timeframeSpec{
	TF1D:  {Res15, func(t time.Time) time.Time { return t.AddDate(0, 0, -1) }},
	TF5D:  {Res60, func(t time.Time) time.Time { return t.AddDate(0, 0, -5) }},
	TF1M:  {ResDay, func(t time.Time) time.Time { return t.AddDate(0, -1, 0) }},
	TF3M:  {ResDay, func(t time.Time) time.Time { return t.AddDate(0, -3, 0) }},
	TF6M:  {ResDay, func(t time.Time) time.Time { return t.AddDate(0, -6, 0) }},
	TF1Y:  {ResDay, func(t time.Time) time.Time { return t.AddDate(-1, 0, 0) }},
	TF5Y:  {ResWeek, func(t time.Time) time.Time { return t.AddDate(-5, 0, 0) }},
	TFMax: {ResMonth, func(t time.Time) time.Time { return t.AddDate(-20, 0, 0) }},
}

// ResolveTimeframe maps a preset timeframe to a resolution and [from, to] window
// ending at now. CUSTOM must go through ResolveCustomRange instead.
func ResolveTimeframe(symbol string, tf Timeframe, now time.Time) (FetchRequest, error) {
	row, ok := timeframeTable[tf]
	if !ok {
		return FetchRequest{}, fmt.Errorf("%w: %q", ErrUnknownTimeframe, tf)
	}
	return FetchRequest{
		Symbol:     symbol,
		Resolution: row.resolution,
		From:       row.back(now).Unix(),
		To:         now.Unix(),
	}, nil
}

// ResolveCustomRange picks a resolution from the span of a user-chosen range:
// up to 2 days uses 15-minute bars, up to 2 weeks hourly, up to 2 years daily,
// up to 10 years weekly and monthly beyond that.
func ResolveCustomRange(symbol string, from, to time.Time) (FetchRequest, error) {
	if !from.Before(to) {
		return FetchRequest{}, fmt.Errorf("%w: from %s is not before to %s", ErrInvalidRange,
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	span := to.Sub(from)
	const day = 24 * time.Hour
	var res Resolution
	switch {
	case span <= 2*day:
		res = Res15
	case span <= 14*day:
		res = Res60
	case span <= 2*365*day:
		res = ResDay
	case span <= 10*365*day:
		res = ResWeek
	default:
		res = ResMonth
	}
	return FetchRequest{Symbol: symbol, Resolution: res, From: from.Unix(), To: to.Unix()}, nil
}
