package surface

import (
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"chartdesk/internal/model"
)

var (
	_ chart.Series = candleRenderer{}
	_ chart.Series = histogramRenderer{}
	_ chart.Series = backdrop{}
)

// volumeHeadroom keeps volume bars in the lower part of the price pane.
const volumeHeadroom = 4.0

// frame is an immutable copy of what a surface draws.
type frame struct {
	role    Role
	width   int
	height  int
	visible Range
	series  []*Series
}

func (f frame) render(w io.Writer) error {
	visible := make([]*Series, 0, len(f.series))
	for _, s := range f.series {
		if s.Visible() {
			visible = append(visible, s)
		}
	}

	xMin, xMax := unixToX(f.visible.From), unixToX(f.visible.To)
	if xMax <= xMin {
		xMin -= float64(time.Minute)
		xMax += float64(time.Minute)
	}

	series := []chart.Series{backdrop{}}
	for _, s := range visible {
		if cs := f.chartSeries(s); cs != nil {
			series = append(series, cs)
		}
	}

	ch := chart.Chart{
		Width:      f.width,
		Height:     f.height,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 24}},
		XAxis: chart.XAxis{
			Range:          &chart.ContinuousRange{Min: xMin, Max: xMax},
			ValueFormatter: timeFormatter(f.visible.Span()),
		},
		YAxis: chart.YAxis{
			Range: f.yRange(visible, ScalePrimary),
		},
		YAxisSecondary: chart.YAxis{
			Style: chart.Style{Hidden: true},
			Range: f.yRange(visible, ScaleSecondary),
		},
		Series: series,
	}
	return ch.Render(chart.PNG, w)
}

func (f frame) chartSeries(s *Series) chart.Series {
	switch s.kind {
	case KindCandlestick:
		return candleRenderer{series: s, visible: f.visible}
	case KindHistogram:
		return histogramRenderer{series: s, visible: f.visible}
	}

	xs := make([]time.Time, 0, len(s.points))
	ys := make([]float64, 0, len(s.points))
	for _, p := range s.points {
		if f.visible.Contains(p.Time) {
			xs = append(xs, time.Unix(p.Time, 0).UTC())
			ys = append(ys, p.Value)
		}
	}
	if len(xs) == 0 {
		return nil
	}
	style := chart.Style{StrokeColor: s.color, StrokeWidth: 1.5}
	if s.kind == KindArea {
		style.FillColor = s.color.WithAlpha(48)
	}
	return chart.TimeSeries{
		Name:    s.id,
		Style:   style,
		YAxis:   yAxisOf(s.scale),
		XValues: xs,
		YValues: ys,
	}
}

// yRange fits the values of every visible series on one scale.
func (f frame) yRange(series []*Series, scale Scale) *chart.ContinuousRange {
	if f.role == RoleRSI && scale == ScalePrimary {
		return &chart.ContinuousRange{Min: 0, Max: 100}
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	sawHistogram := false
	for _, s := range series {
		if s.scale != scale {
			continue
		}
		if s.kind == KindHistogram {
			sawHistogram = true
		}
		for i, p := range s.points {
			if !f.visible.Contains(p.Time) {
				continue
			}
			l, h := p.Value, p.Value
			if s.candles != nil {
				l, h = s.candles[i].Low, s.candles[i].High
			}
			lo, hi = math.Min(lo, l), math.Max(hi, h)
		}
	}
	if math.IsInf(lo, 1) {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	if sawHistogram {
		lo, hi = math.Min(lo, 0), math.Max(hi, 0)
	}
	if scale == ScaleSecondary {
		return &chart.ContinuousRange{Min: lo, Max: padZero(lo, hi*volumeHeadroom)}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.01, 1)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func padZero(lo, hi float64) float64 {
	if hi <= lo {
		return lo + 1
	}
	return hi
}

func yAxisOf(scale Scale) chart.YAxisType {
	if scale == ScaleSecondary {
		return chart.YAxisSecondary
	}
	return chart.YAxisPrimary
}

func unixToX(t int64) float64 {
	return chart.TimeToFloat64(time.Unix(t, 0))
}

func timeFormatter(span time.Duration) chart.ValueFormatter {
	layout := "2006-01-02"
	if span <= 48*time.Hour {
		layout = "01-02 15:04"
	}
	return func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return time.Unix(0, int64(f)).UTC().Format(layout)
		}
		return ""
	}
}

// barHalfWidth sizes candle bodies and histogram bars to the visible count.
func barHalfWidth(box chart.Box, count int) int {
	if count < 1 {
		count = 1
	}
	half := int(float64(box.Width()) / float64(count) * 0.35)
	if half < 1 {
		half = 1
	}
	return half
}

func visibleCount(points model.Series, r Range) int {
	n := 0
	for _, p := range points {
		if r.Contains(p.Time) {
			n++
		}
	}
	return n
}

func fillBox(r chart.Renderer, left, top, right, bottom int) {
	if top > bottom {
		top, bottom = bottom, top
	}
	if top == bottom {
		bottom++
	}
	r.MoveTo(left, top)
	r.LineTo(right, top)
	r.LineTo(right, bottom)
	r.LineTo(left, bottom)
	r.LineTo(left, top)
	r.FillStroke()
}

// candleRenderer draws OHLC bars: a high-low wick and an open-close body.
type candleRenderer struct {
	series  *Series
	visible Range
}

func (c candleRenderer) GetName() string           { return c.series.id }
func (c candleRenderer) GetStyle() chart.Style     { return chart.Style{StrokeWidth: 1} }
func (c candleRenderer) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (c candleRenderer) Validate() error           { return nil }

func (c candleRenderer) Render(r chart.Renderer, box chart.Box, xr, yr chart.Range, _ chart.Style) {
	half := barHalfWidth(box, visibleCount(c.series.points, c.visible))
	r.SetStrokeWidth(1)
	for _, k := range c.series.candles {
		if !c.visible.Contains(k.Time) {
			continue
		}
		col := ColorUp
		if k.Close < k.Open {
			col = ColorDown
		}
		x := box.Left + xr.Translate(unixToX(k.Time))
		r.SetStrokeColor(col)
		r.SetFillColor(col)

		r.MoveTo(x, box.Bottom-yr.Translate(k.High))
		r.LineTo(x, box.Bottom-yr.Translate(k.Low))
		r.Stroke()

		fillBox(r, x-half, box.Bottom-yr.Translate(k.Open), x+half, box.Bottom-yr.Translate(k.Close))
	}
}

// histogramRenderer draws one bar per point from zero, each in its own colour.
type histogramRenderer struct {
	series  *Series
	visible Range
}

func (h histogramRenderer) GetName() string           { return h.series.id }
func (h histogramRenderer) GetStyle() chart.Style     { return chart.Style{StrokeWidth: 1} }
func (h histogramRenderer) GetYAxis() chart.YAxisType { return yAxisOf(h.series.scale) }
func (h histogramRenderer) Validate() error           { return nil }

func (h histogramRenderer) Render(r chart.Renderer, box chart.Box, xr, yr chart.Range, _ chart.Style) {
	half := barHalfWidth(box, visibleCount(h.series.points, h.visible))
	zero := math.Max(yr.GetMin(), math.Min(0, yr.GetMax()))
	base := box.Bottom - yr.Translate(zero)
	r.SetStrokeWidth(1)
	for i, p := range h.series.points {
		if !h.visible.Contains(p.Time) {
			continue
		}
		col := h.series.ColorAt(i)
		r.SetStrokeColor(col)
		r.SetFillColor(col)
		x := box.Left + xr.Translate(unixToX(p.Time))
		fillBox(r, x-half, box.Bottom-yr.Translate(p.Value), x+half, base)
	}
}

// backdrop draws nothing; it keeps a surface with every series hidden renderable.
type backdrop struct{}

func (backdrop) GetName() string           { return "" }
func (backdrop) GetStyle() chart.Style     { return chart.Style{} }
func (backdrop) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (backdrop) Validate() error           { return nil }

func (backdrop) Render(chart.Renderer, chart.Box, chart.Range, chart.Range, chart.Style) {
}
