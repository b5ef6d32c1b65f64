package chart

import (
	"sort"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"chartdesk/internal/indicator"
	"chartdesk/internal/model"
	"chartdesk/internal/panesync"
	"chartdesk/internal/surface"
)

// Series ids for indicators drawn as more than one series. The visibility
// controller still addresses each group by its indicator id.
const (
	seriesBBUpper   = "bb.upper"
	seriesBBMiddle  = "bb.middle"
	seriesBBLower   = "bb.lower"
	seriesMACDLine  = indicator.IDMACD
	seriesMACDSig   = "macd.signal"
	seriesMACDHisto = "macd.histogram"
)

// buildLocked creates the primary surface for the loaded dataset and binds
// the enabled overlays. Callers hold o.mu and have torn down the old surfaces.
func (o *Orchestrator) buildLocked(width, height int) {
	candles := o.dataset.Candles

	var price *surface.Series
	switch o.req.ChartType {
	case model.ChartLine:
		price = surface.NewLine(indicator.IDPrice, surface.ColorPrice, closeSeries(candles))
	case model.ChartArea:
		price = surface.NewArea(indicator.IDPrice, surface.ColorPrice, closeSeries(candles))
	default:
		price = surface.NewCandles(indicator.IDPrice, candles)
	}

	o.primary = surface.New(surface.RolePrice, width, height)
	_ = o.primary.Attach(price)
	o.observer.SurfacesChanged(1)
	o.sync = panesync.New(o.primary)
	o.bound = make(map[string]*binding)
	o.vis.Reset()
	o.tips.Bind(price, candles)

	o.applyOverlaysLocked()
}

// rebuildLocked recreates the surfaces from the loaded dataset, keeping the
// size and the visible window.
func (o *Orchestrator) rebuildLocked() {
	if o.primary == nil || o.dataset == nil {
		return
	}
	w, h := o.primary.Size()
	window := o.primary.VisibleRange()
	fullscreen, restore := o.fullscreen, o.restore
	o.teardownLocked()
	o.buildLocked(w, h)
	o.fullscreen, o.restore = fullscreen, restore
	o.primary.SetVisibleRange(window)
}

// teardownLocked disposes every live surface. The dataset is kept.
func (o *Orchestrator) teardownLocked() {
	for id := range o.bound {
		o.unbindLocked(id)
	}
	for role, p := range o.panes {
		o.destroyPaneLocked(role, p)
	}
	if o.sync != nil {
		o.sync.Close()
		o.sync = nil
	}
	if o.primary != nil {
		o.primary.Dispose()
		o.primary = nil
		o.observer.SurfacesChanged(-1)
	}
	o.vis.Reset()
	o.tips.Bind(nil, nil)
	o.fullscreen = false
}

// applyOverlaysLocked brings the bound series in line with the current
// preferences: newly enabled indicators are attached, disabled ones detached,
// and the rest left alone.
func (o *Orchestrator) applyOverlaysLocked() {
	if o.primary == nil || o.dataset == nil {
		return
	}
	params := o.engine.Params()
	n := o.dataset.Len()
	tf := o.req.Timeframe
	if tf == "" {
		tf = model.TF1Y
	}

	sel := indicator.Selection{
		Periods: indicator.FilterPeriods(tf, o.prefs.EnabledPeriods),
		BB:      o.prefs.BBEnabled,
		RSI:     o.prefs.RSIEnabled && n >= params.MinRSIBars(),
		MACD:    o.prefs.MACDEnabled && n >= params.MinMACDBars(),
	}
	ov := o.engine.Compute(o.dataset, sel)
	o.overlays = ov

	want := make(map[string]func() (*surface.Surface, []*surface.Series))

	for _, p := range sel.Periods {
		p := p
		if len(ov.SMA[p]) == 0 {
			continue
		}
		want[indicator.SMAID(p)] = func() (*surface.Surface, []*surface.Series) {
			line := surface.NewLine(indicator.SMAID(p), surface.SMAColor(canonicalIndex(p)), ov.SMA[p])
			return o.primary, []*surface.Series{line}
		}
	}
	if sel.BB && !ov.BB.Empty() {
		want[indicator.IDBollinger] = func() (*surface.Surface, []*surface.Series) {
			return o.primary, []*surface.Series{
				surface.NewLine(seriesBBUpper, surface.ColorBands, ov.BB.Upper),
				surface.NewLine(seriesBBMiddle, surface.ColorBands, ov.BB.Middle),
				surface.NewLine(seriesBBLower, surface.ColorBands, ov.BB.Lower),
			}
		}
	}
	if o.prefs.VolumeEnabled && model.HasVolume(o.dataset.Candles) {
		want[indicator.IDVolume] = func() (*surface.Surface, []*surface.Series) {
			pts, colors := volumeBars(o.dataset.Candles)
			return o.primary, []*surface.Series{
				surface.NewHistogram(indicator.IDVolume, surface.ScaleSecondary, pts, colors),
			}
		}
	}
	if sel.RSI && len(ov.RSI) > 0 {
		want[indicator.IDRSI] = func() (*surface.Surface, []*surface.Series) {
			return o.ensurePaneLocked(surface.RoleRSI), []*surface.Series{
				surface.NewLine(indicator.IDRSI, surface.ColorRSI, ov.RSI),
			}
		}
	}
	if sel.MACD && !ov.MACD.Empty() {
		want[indicator.IDMACD] = func() (*surface.Surface, []*surface.Series) {
			series := []*surface.Series{surface.NewLine(seriesMACDLine, surface.ColorMACD, ov.MACD.MACD)}
			if len(ov.MACD.Signal) > 0 {
				series = append(series,
					surface.NewLine(seriesMACDSig, surface.ColorSignal, ov.MACD.Signal),
					surface.NewHistogram(seriesMACDHisto, surface.ScalePrimary, ov.MACD.Histogram, signColors(ov.MACD.Histogram)))
			}
			return o.ensurePaneLocked(surface.RoleMACD), series
		}
	}

	for id := range o.bound {
		if _, ok := want[id]; !ok {
			o.unbindLocked(id)
		}
	}
	ids := make([]string, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, ok := o.bound[id]; ok {
			continue
		}
		surf, series := want[id]()
		o.bindLocked(id, surf, series)
	}
}

func (o *Orchestrator) bindLocked(id string, surf *surface.Surface, series []*surface.Series) {
	for _, s := range series {
		if err := surf.Attach(s); err != nil {
			o.log.Debug("attach on disposed surface", "series", s.ID(), "error", err)
			return
		}
	}
	for _, s := range series {
		o.vis.Register(id, s)
		o.tips.AddOverlay(s.ID(), s)
	}
	o.bound[id] = &binding{surface: surf, series: series}

	// Panes are linked after their first data so the initial full-range
	// window is replaced by the primary's.
	if surf != o.primary {
		o.sync.Attach(surf)
	}
}

func (o *Orchestrator) unbindLocked(id string) {
	b, ok := o.bound[id]
	if !ok {
		return
	}
	delete(o.bound, id)
	o.vis.Unregister(id)
	ids := make([]string, len(b.series))
	for i, s := range b.series {
		ids[i] = s.ID()
		_ = b.surface.Detach(s.ID())
	}
	o.tips.RemoveOverlay(ids...)

	if b.surface != o.primary && len(b.surface.SeriesIDs()) == 0 {
		o.destroyPaneLocked(b.surface.Role(), b.surface)
	}
}

// ensurePaneLocked returns the pane for role, creating it at the primary's
// width when absent.
func (o *Orchestrator) ensurePaneLocked(role surface.Role) *surface.Surface {
	if p, ok := o.panes[role]; ok {
		return p
	}
	w, _ := o.primary.Size()
	p := surface.New(role, w, o.opts.PaneHeight)
	o.panes[role] = p
	o.observer.SurfacesChanged(1)
	return p
}

func (o *Orchestrator) destroyPaneLocked(role surface.Role, p *surface.Surface) {
	if o.panes[role] != p {
		return
	}
	delete(o.panes, role)
	if o.sync != nil {
		o.sync.Detach(p)
	}
	p.Dispose()
	o.observer.SurfacesChanged(-1)
}

func closeSeries(candles []model.Candle) model.Series {
	out := make(model.Series, len(candles))
	for i, c := range candles {
		out[i] = model.Point{Time: c.Time, Value: c.Close}
	}
	return out
}

// volumeBars colours each bar by its close against the previous close; the
// first bar compares against its own open.
func volumeBars(candles []model.Candle) (model.Series, []drawing.Color) {
	pts := make(model.Series, len(candles))
	colors := make([]drawing.Color, len(candles))
	for i, c := range candles {
		pts[i] = model.Point{Time: c.Time, Value: c.Volume}
		ref := c.Open
		if i > 0 {
			ref = candles[i-1].Close
		}
		if c.Close >= ref {
			colors[i] = surface.ColorUp
		} else {
			colors[i] = surface.ColorDown
		}
	}
	return pts, colors
}

func signColors(s model.Series) []drawing.Color {
	colors := make([]drawing.Color, len(s))
	for i, p := range s {
		if p.Value >= 0 {
			colors[i] = surface.ColorUp
		} else {
			colors[i] = surface.ColorDown
		}
	}
	return colors
}

func canonicalIndex(period int) int {
	for i, p := range model.CanonicalPeriods {
		if p == period {
			return i
		}
	}
	return 0
}
