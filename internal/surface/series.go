package surface

import (
	"sync/atomic"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"chartdesk/internal/model"
)

// Kind selects how a series is drawn.
type Kind string

const (
	KindCandlestick Kind = "candlestick"
	KindLine        Kind = "line"
	KindArea        Kind = "area"
	KindHistogram   Kind = "histogram"
)

// Scale picks the y axis a series is plotted against.
type Scale int

const (
	ScalePrimary Scale = iota
	ScaleSecondary
)

// Palette colours shared by every surface.
var (
	ColorUp      = drawing.ColorFromHex("26a69a")
	ColorDown    = drawing.ColorFromHex("ef5350")
	ColorPrice   = drawing.ColorFromHex("2962ff")
	ColorBands   = drawing.ColorFromHex("9e9e9e")
	ColorRSI     = drawing.ColorFromHex("7e57c2")
	ColorMACD    = drawing.ColorFromHex("2962ff")
	ColorSignal  = drawing.ColorFromHex("ff6d00")
	ColorNeutral = drawing.ColorFromHex("b0bec5")
)

// smaColors cycles through distinct colours for moving averages.
var smaColors = []drawing.Color{
	drawing.ColorFromHex("f9a825"),
	drawing.ColorFromHex("00897b"),
	drawing.ColorFromHex("d81b60"),
	drawing.ColorFromHex("5e35b1"),
}

// SMAColor returns the colour for the i-th moving average.
func SMAColor(i int) drawing.Color { return smaColors[i%len(smaColors)] }

// Series is one drawable data set attached to a surface. Its data is fixed
// at construction; only the visibility flag changes afterwards.
type Series struct {
	id     string
	kind   Kind
	scale  Scale
	color  drawing.Color
	colors []drawing.Color // per-point, histogram only

	points  model.Series
	candles []model.Candle
	index   map[int64]int

	hidden atomic.Bool
}

func newSeries(id string, kind Kind, scale Scale, color drawing.Color, points model.Series) *Series {
	s := &Series{
		id:     id,
		kind:   kind,
		scale:  scale,
		color:  color,
		points: points,
		index:  make(map[int64]int, len(points)),
	}
	for i, p := range points {
		s.index[p.Time] = i
	}
	return s
}

// NewLine builds a line series.
func NewLine(id string, color drawing.Color, points model.Series) *Series {
	return newSeries(id, KindLine, ScalePrimary, color, points)
}

// NewArea builds a filled line series.
func NewArea(id string, color drawing.Color, points model.Series) *Series {
	return newSeries(id, KindArea, ScalePrimary, color, points)
}

// NewHistogram builds a bar series with one colour per point. A nil or short
// colors slice falls back to the neutral colour.
func NewHistogram(id string, scale Scale, points model.Series, colors []drawing.Color) *Series {
	s := newSeries(id, KindHistogram, scale, ColorNeutral, points)
	s.colors = colors
	return s
}

// NewCandles builds an OHLC series. Its point values are the closes.
func NewCandles(id string, candles []model.Candle) *Series {
	pts := make(model.Series, len(candles))
	for i, c := range candles {
		pts[i] = model.Point{Time: c.Time, Value: c.Close}
	}
	s := newSeries(id, KindCandlestick, ScalePrimary, ColorUp, pts)
	s.candles = candles
	return s
}

func (s *Series) ID() string   { return s.id }
func (s *Series) Kind() Kind   { return s.kind }
func (s *Series) Scale() Scale { return s.scale }
func (s *Series) Len() int     { return len(s.points) }

// Points exposes the bound data. Callers must not modify it.
func (s *Series) Points() model.Series { return s.points }

// Candles exposes the bound OHLC data for candlestick series, nil otherwise.
func (s *Series) Candles() []model.Candle { return s.candles }

// Visible reports whether the series is drawn.
func (s *Series) Visible() bool { return !s.hidden.Load() }

// SetVisible toggles drawing without touching the data.
func (s *Series) SetVisible(v bool) { s.hidden.Store(!v) }

// ValueAt returns the value at exactly t.
func (s *Series) ValueAt(t int64) (float64, bool) {
	i, ok := s.index[t]
	if !ok {
		return 0, false
	}
	return s.points[i].Value, true
}

// CandleAt returns the bar at exactly t for candlestick series.
func (s *Series) CandleAt(t int64) (model.Candle, bool) {
	i, ok := s.index[t]
	if !ok || s.candles == nil {
		return model.Candle{}, false
	}
	return s.candles[i], true
}

// ColorAt returns the colour point i is drawn with.
func (s *Series) ColorAt(i int) drawing.Color {
	if i < len(s.colors) {
		return s.colors[i]
	}
	return s.color
}

func (s *Series) extent() (Range, bool) {
	if len(s.points) == 0 {
		return Range{}, false
	}
	return Range{From: s.points[0].Time, To: s.points[len(s.points)-1].Time}, true
}
