package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ChartType selects the primary series representation.
type ChartType int

const (
	ChartCandlestick ChartType = iota
	ChartLine
	ChartArea
)

func (c ChartType) String() string {
	switch c {
	case ChartCandlestick:
		return "candlestick"
	case ChartLine:
		return "line"
	case ChartArea:
		return "area"
	default:
		return "unknown"
	}
}

// ParseChartType parses "candlestick", "line" or "area".
func ParseChartType(s string) (ChartType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "candlestick", "candle", "":
		return ChartCandlestick, nil
	case "line":
		return ChartLine, nil
	case "area":
		return ChartArea, nil
	default:
		return 0, fmt.Errorf("unknown chart type %q", s)
	}
}

func (c ChartType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ChartType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	ct, err := ParseChartType(s)
	if err != nil {
		return err
	}
	*c = ct
	return nil
}

// CanonicalPeriods are the moving-average periods a user can enable.
var CanonicalPeriods = []int{10, 20, 50, 200}

// VisibilityFlags maps indicator id to draw visibility. Missing ids are visible.
// Visibility never controls whether a series is computed, only whether it is drawn.
type VisibilityFlags map[string]bool

// Visible reports the flag for id, defaulting to true.
func (v VisibilityFlags) Visible(id string) bool {
	if vis, ok := v[id]; ok {
		return vis
	}
	return true
}

// Clone returns an independent copy.
func (v VisibilityFlags) Clone() VisibilityFlags {
	out := make(VisibilityFlags, len(v))
	for k, b := range v {
		out[k] = b
	}
	return out
}

// ChartPreferences is the per-symbol chart state owned by the preferences store.
type ChartPreferences struct {
	Symbol         string          `json:"symbol"`
	ChartType      ChartType       `json:"chart_type"`
	Timeframe      Timeframe       `json:"timeframe"`
	EnabledPeriods []int           `json:"enabled_periods"`
	RSIEnabled     bool            `json:"rsi_enabled"`
	MACDEnabled    bool            `json:"macd_enabled"`
	BBEnabled      bool            `json:"bb_enabled"`
	VolumeEnabled  bool            `json:"volume_enabled"`
	Visibility     VisibilityFlags `json:"visibility,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Normalize upper-cases the symbol and reduces EnabledPeriods to a sorted,
// de-duplicated subset of CanonicalPeriods.
func (p *ChartPreferences) Normalize() {
	p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
	if p.Timeframe == "" {
		p.Timeframe = TF1Y
	}
	seen := make(map[int]bool, len(p.EnabledPeriods))
	periods := make([]int, 0, len(p.EnabledPeriods))
	for _, period := range p.EnabledPeriods {
		if seen[period] || !isCanonical(period) {
			continue
		}
		seen[period] = true
		periods = append(periods, period)
	}
	sort.Ints(periods)
	p.EnabledPeriods = periods
	if p.Visibility == nil {
		p.Visibility = VisibilityFlags{}
	}
}

// Clone returns a deep copy.
func (p ChartPreferences) Clone() ChartPreferences {
	p.EnabledPeriods = append([]int(nil), p.EnabledPeriods...)
	p.Visibility = p.Visibility.Clone()
	return p
}

// PeriodEnabled reports whether the moving average for period is enabled.
func (p *ChartPreferences) PeriodEnabled(period int) bool {
	for _, e := range p.EnabledPeriods {
		if e == period {
			return true
		}
	}
	return false
}

func isCanonical(period int) bool {
	for _, c := range CanonicalPeriods {
		if c == period {
			return true
		}
	}
	return false
}
