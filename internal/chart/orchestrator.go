// Package chart owns the lifecycle of one chart view: a primary price
// surface plus optional RSI and MACD panes, all built from one candle load.
//
// A load runs Idle → Loading → Ready (or Error). Every load bumps a
// generation counter; a load whose generation is no longer current when its
// fetch returns discards the result without touching shared state. Overlays
// are attached and detached on the live surfaces; only a new dataset or a new
// chart type rebuilds them.
package chart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"chartdesk/internal/crosshair"
	"chartdesk/internal/indicator"
	"chartdesk/internal/logger"
	"chartdesk/internal/model"
	"chartdesk/internal/panesync"
	"chartdesk/internal/prefs"
	"chartdesk/internal/surface"
	"chartdesk/internal/visibility"
)

// Load outcomes reported to the Observer.
const (
	OutcomeReady           = "ready"
	OutcomeDataUnavailable = "data_unavailable"
	OutcomeLayoutUnready   = "layout_unready"
	OutcomeSuperseded      = "superseded"
	OutcomeError           = "error"
)

// Observer receives lifecycle measurements. metrics.Metrics implements it.
type Observer interface {
	LoadFinished(outcome string, d time.Duration)
	SurfacesChanged(delta int)
	Exported()
}

type noopObserver struct{}

func (noopObserver) LoadFinished(string, time.Duration) {}
func (noopObserver) SurfacesChanged(int)                {}
func (noopObserver) Exported()                          {}

// Options configures an Orchestrator. Fetcher, Container and Engine are required.
type Options struct {
	Fetcher   model.CandleFetcher
	Container Container
	Engine    *indicator.Engine

	Prefs    *prefs.Service // optional; nil disables persistence
	Observer Observer       // optional
	Log      *slog.Logger   // optional

	LayoutRetryDelay time.Duration // wait before the single layout retry
	PaneHeight       int           // height of RSI/MACD panes
	FullscreenWidth  int
	FullscreenHeight int

	Now func() time.Time // defaults to time.Now
}

// Request identifies the dataset to load. From and To are used only for
// model.TFCustom.
type Request struct {
	Symbol    string
	Timeframe model.Timeframe
	ChartType model.ChartType
	From      time.Time
	To        time.Time
}

// Image is an exported snapshot of the primary surface.
type Image struct {
	Name string
	PNG  []byte
}

// binding is the set of series attached for one indicator id.
type binding struct {
	surface *surface.Surface
	series  []*surface.Series
}

// Orchestrator drives one chart view.
type Orchestrator struct {
	opts     Options
	log      *slog.Logger
	observer Observer
	engine   *indicator.Engine
	tips     *crosshair.Aggregator
	states   listeners

	mu         sync.Mutex
	gen        uint64
	state      State
	err        error
	req        Request
	prefs      model.ChartPreferences
	dataset    *indicator.Dataset
	overlays   *indicator.Overlays
	primary    *surface.Surface
	panes      map[surface.Role]*surface.Surface
	sync       *panesync.Synchronizer
	vis        *visibility.Controller
	bound      map[string]*binding
	fullscreen bool
	restore    [2]int
}

// New creates an idle orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LayoutRetryDelay <= 0 {
		opts.LayoutRetryDelay = 100 * time.Millisecond
	}
	if opts.PaneHeight <= 0 {
		opts.PaneHeight = 160
	}
	if opts.FullscreenWidth <= 0 {
		opts.FullscreenWidth = 1920
	}
	if opts.FullscreenHeight <= 0 {
		opts.FullscreenHeight = 1080
	}
	defaults := prefs.BuiltinDefaults("")
	return &Orchestrator{
		opts:     opts,
		log:      opts.Log,
		observer: opts.Observer,
		engine:   opts.Engine,
		tips:     crosshair.New(),
		prefs:    defaults,
		vis:      visibility.New(defaults.Visibility),
		panes:    make(map[surface.Role]*surface.Surface),
	}
}

// OnStateChange registers fn for state transitions and returns a func that
// removes it.
func (o *Orchestrator) OnStateChange(fn StateListener) (unsubscribe func()) {
	return o.states.add(fn)
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Err returns the error behind StateError, nil otherwise.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Preferences returns a copy of the preferences currently applied.
func (o *Orchestrator) Preferences() model.ChartPreferences {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.prefs.Clone()
	p.Visibility = o.vis.Flags()
	return p
}

// Request returns the request behind the current or last load.
func (o *Orchestrator) Request() Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.req
}

// Primary returns the live primary surface, nil when none is built.
func (o *Orchestrator) Primary() *surface.Surface {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.primary
}

// Pane returns the live subordinate pane for role, nil when absent.
func (o *Orchestrator) Pane(role surface.Role) *surface.Surface {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.panes[role]
}

// Dataset returns the candles bound to the live surfaces.
func (o *Orchestrator) Dataset() *indicator.Dataset {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dataset
}

// Overlays returns the indicator output bound to the live surfaces.
func (o *Orchestrator) Overlays() *indicator.Overlays {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.overlays
}

// Mount reads the symbol's preferences (creating them from the defaults on
// first view) and loads the chart they describe.
func (o *Orchestrator) Mount(ctx context.Context, symbol string) error {
	var p model.ChartPreferences
	if o.opts.Prefs != nil {
		p = o.opts.Prefs.Load(ctx, symbol)
	} else {
		p = prefs.BuiltinDefaults(strings.ToUpper(symbol))
	}
	// A stored custom range has no bounds to reload from.
	if p.Timeframe == model.TFCustom {
		p.Timeframe = model.TF1Y
	}

	if err := o.UsePreferences(p); err != nil {
		return err
	}
	return o.Load(ctx, Request{Symbol: p.Symbol, Timeframe: p.Timeframe, ChartType: p.ChartType})
}

// UsePreferences replaces the preferences and visibility flags the next Load
// builds with. Nothing is persisted and the live surfaces are not touched.
func (o *Orchestrator) UsePreferences(p model.ChartPreferences) error {
	p.Normalize()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateDisposed {
		return model.ErrSurfaceDisposed
	}
	o.prefs = p.Clone()
	o.vis = visibility.New(p.Visibility)
	return nil
}

// Load fetches the dataset for req and builds the surfaces for it. It
// returns model.ErrSuperseded if another Load or Dispose started before it
// finished; in that case nothing was changed.
func (o *Orchestrator) Load(ctx context.Context, req Request) error {
	if logger.LoadID(ctx) == "" {
		ctx = logger.WithLoadID(ctx, logger.NewLoadID())
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	start := o.opts.Now()

	o.mu.Lock()
	if o.state == StateDisposed {
		o.mu.Unlock()
		return model.ErrSurfaceDisposed
	}
	o.gen++
	gen := o.gen
	o.teardownLocked()
	o.req = req
	o.prefs.Symbol = req.Symbol
	o.prefs.ChartType = req.ChartType
	if req.Timeframe != "" {
		o.prefs.Timeframe = req.Timeframe
	}
	o.setStateLocked(StateLoading, nil)
	o.mu.Unlock()
	o.states.emit(StateLoading, nil)

	log := o.log.With(logger.LogWithLoad(ctx)...)
	log.Info("chart load started", "symbol", req.Symbol, "timeframe", req.Timeframe, "chart_type", req.ChartType.String())

	width, height, err := o.waitForLayout(ctx)
	if err != nil {
		return o.fail(gen, start, log, err)
	}
	if !o.current(gen) {
		return o.superseded(start, log)
	}

	fetchReq, err := o.resolve(req)
	if err != nil {
		return o.fail(gen, start, log, err)
	}

	batch, fetchErr := o.opts.Fetcher.FetchCandles(ctx, fetchReq)

	o.mu.Lock()
	if gen != o.gen || o.state == StateDisposed {
		o.mu.Unlock()
		return o.superseded(start, log)
	}
	o.mu.Unlock()

	if fetchErr != nil {
		if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, context.DeadlineExceeded) {
			return o.fail(gen, start, log, fetchErr)
		}
		return o.fail(gen, start, log, fmt.Errorf("%w: fetch %s: %w", model.ErrDataUnavailable, req.Symbol, fetchErr))
	}
	candles := batch.Candles()
	if len(candles) == 0 {
		return o.fail(gen, start, log, fmt.Errorf("%w: %s %s [%d, %d]", model.ErrDataUnavailable,
			req.Symbol, fetchReq.Resolution, fetchReq.From, fetchReq.To))
	}

	o.mu.Lock()
	if gen != o.gen || o.state == StateDisposed {
		o.mu.Unlock()
		return o.superseded(start, log)
	}
	o.dataset = indicator.NewDataset(candles)
	o.buildLocked(width, height)
	o.setStateLocked(StateReady, nil)
	o.mu.Unlock()

	o.observer.LoadFinished(OutcomeReady, o.opts.Now().Sub(start))
	log.Info("chart ready", "symbol", req.Symbol, "bars", len(candles), "resolution", fetchReq.Resolution)
	o.states.emit(StateReady, nil)
	return nil
}

// ApplyPreferences applies a preference change. A new symbol or timeframe
// reloads, a new chart type rebuilds the surfaces from the loaded dataset,
// and everything else attaches or detaches series on the live surfaces.
// The result is persisted.
func (o *Orchestrator) ApplyPreferences(ctx context.Context, p model.ChartPreferences) error {
	p.Normalize()

	o.mu.Lock()
	if o.state == StateDisposed {
		o.mu.Unlock()
		return model.ErrSurfaceDisposed
	}
	old := o.prefs
	if p.Symbol == "" {
		p.Symbol = old.Symbol
	}
	o.prefs = p.Clone()
	for id, v := range p.Visibility {
		if o.vis.Visible(id) != v {
			o.vis.Set(id, v)
		}
	}
	reload := p.Symbol != old.Symbol || (p.Timeframe != old.Timeframe && p.Timeframe != model.TFCustom)
	rebuild := !reload && p.ChartType != old.ChartType
	ready := o.state == StateReady

	switch {
	case reload || !ready:
	case rebuild:
		o.req.ChartType = p.ChartType
		o.rebuildLocked()
	default:
		o.applyOverlaysLocked()
	}
	saved := o.prefs.Clone()
	saved.Visibility = o.vis.Flags()
	o.mu.Unlock()

	o.persist(ctx, saved)

	if reload || (rebuild && !ready) {
		req := Request{Symbol: p.Symbol, Timeframe: p.Timeframe, ChartType: p.ChartType}
		return o.Load(ctx, req)
	}
	return nil
}

// SetVisibility shows or hides the series of one indicator without touching
// its data. It returns the number of live series affected; zero means the
// indicator is not enabled and only the flag was recorded.
func (o *Orchestrator) SetVisibility(ctx context.Context, id string, visible bool) int {
	o.mu.Lock()
	if o.state == StateDisposed {
		o.mu.Unlock()
		return 0
	}
	n := o.vis.Set(id, visible)
	saved := o.prefs.Clone()
	saved.Visibility = o.vis.Flags()
	o.mu.Unlock()

	o.persist(ctx, saved)
	return n
}

// Resize applies a new container size to the live surfaces. It never
// rebuilds them.
func (o *Orchestrator) Resize(width, height int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resizeLocked(width, height)
}

// ToggleFullscreen switches between the fullscreen size and the size in use
// before. It is a resize, never a rebuild. It returns the new mode.
func (o *Orchestrator) ToggleFullscreen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.primary == nil {
		return o.fullscreen
	}
	if !o.fullscreen {
		w, h := o.primary.Size()
		o.restore = [2]int{w, h}
		o.resizeLocked(o.opts.FullscreenWidth, o.opts.FullscreenHeight)
	} else {
		o.resizeLocked(o.restore[0], o.restore[1])
	}
	o.fullscreen = !o.fullscreen
	return o.fullscreen
}

// ResetZoom restores the visible range to the full dataset on every pane.
func (o *Orchestrator) ResetZoom() {
	if p := o.Primary(); p != nil {
		p.FitContent()
	}
}

// SetVisibleRange applies a range to the primary pane; the subordinate
// panes follow.
func (o *Orchestrator) SetVisibleRange(r surface.Range) bool {
	if p := o.Primary(); p != nil {
		return p.SetVisibleRange(r)
	}
	return false
}

// VisibleRange returns the primary pane's visible range.
func (o *Orchestrator) VisibleRange() (surface.Range, bool) {
	if p := o.Primary(); p != nil {
		return p.VisibleRange(), true
	}
	return surface.Range{}, false
}

// Hover moves the crosshair. nil means the pointer left the plot area.
func (o *Orchestrator) Hover(t *int64) *crosshair.Tooltip {
	return o.tips.Move(t)
}

// Tooltip returns the current tooltip, nil when cleared.
func (o *Orchestrator) Tooltip() *crosshair.Tooltip {
	return o.tips.Current()
}

// SubscribeTooltip registers fn for every published tooltip.
func (o *Orchestrator) SubscribeTooltip(fn func(*crosshair.Tooltip)) (unsubscribe func()) {
	return o.tips.Subscribe(fn)
}

// Export snapshots the primary surface as a PNG named <SYMBOL>-<YYYY-MM-DD>.png.
func (o *Orchestrator) Export() (Image, error) {
	o.mu.Lock()
	primary := o.primary
	symbol := o.req.Symbol
	o.mu.Unlock()
	if primary == nil {
		return Image{}, model.ErrSurfaceDisposed
	}

	png, err := primary.Snapshot()
	if err != nil {
		return Image{}, fmt.Errorf("export %s: %w", symbol, err)
	}
	o.observer.Exported()
	return Image{
		Name: fmt.Sprintf("%s-%s.png", symbol, o.opts.Now().Format("2006-01-02")),
		PNG:  png,
	}, nil
}

// Dispose tears everything down and invalidates any in-flight load.
// Repeated calls are no-ops.
func (o *Orchestrator) Dispose() {
	o.mu.Lock()
	if o.state == StateDisposed {
		o.mu.Unlock()
		return
	}
	o.gen++
	o.teardownLocked()
	o.dataset = nil
	o.overlays = nil
	o.setStateLocked(StateDisposed, nil)
	o.mu.Unlock()
	o.states.emit(StateDisposed, nil)
}

func (o *Orchestrator) current(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen == o.gen && o.state != StateDisposed
}

func (o *Orchestrator) setStateLocked(s State, err error) {
	o.state = s
	o.err = err
}

// waitForLayout returns the container size, retrying once after
// LayoutRetryDelay when the width is still zero.
func (o *Orchestrator) waitForLayout(ctx context.Context) (int, int, error) {
	var w, h int
	probe := func() error {
		w, h = o.opts.Container.Size()
		if w <= 0 {
			return model.ErrLayoutUnready
		}
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.opts.LayoutRetryDelay), 1), ctx)
	if err := backoff.Retry(probe, policy); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, 0, ctxErr
		}
		return 0, 0, err
	}
	if h <= 0 {
		h = o.opts.PaneHeight * 3
	}
	return w, h, nil
}

func (o *Orchestrator) resolve(req Request) (model.FetchRequest, error) {
	if req.Timeframe == model.TFCustom {
		return model.ResolveCustomRange(req.Symbol, req.From, req.To)
	}
	tf := req.Timeframe
	if tf == "" {
		tf = model.TF1Y
	}
	return model.ResolveTimeframe(req.Symbol, tf, o.opts.Now())
}

// fail moves a still-current load to StateError.
func (o *Orchestrator) fail(gen uint64, start time.Time, log *slog.Logger, err error) error {
	o.mu.Lock()
	if gen != o.gen || o.state == StateDisposed {
		o.mu.Unlock()
		return o.superseded(start, log)
	}
	o.setStateLocked(StateError, err)
	o.mu.Unlock()

	outcome := OutcomeError
	switch {
	case errors.Is(err, model.ErrDataUnavailable):
		outcome = OutcomeDataUnavailable
	case errors.Is(err, model.ErrLayoutUnready):
		outcome = OutcomeLayoutUnready
	}
	o.observer.LoadFinished(outcome, o.opts.Now().Sub(start))
	log.Warn("chart load failed", "outcome", outcome, "error", err)
	o.states.emit(StateError, err)
	return err
}

func (o *Orchestrator) superseded(start time.Time, log *slog.Logger) error {
	o.observer.LoadFinished(OutcomeSuperseded, o.opts.Now().Sub(start))
	log.Debug("stale chart load discarded")
	return model.ErrSuperseded
}

func (o *Orchestrator) persist(ctx context.Context, p model.ChartPreferences) {
	if o.opts.Prefs == nil || p.Symbol == "" {
		return
	}
	if err := o.opts.Prefs.Save(ctx, &p); err != nil {
		o.log.Warn("preferences not saved", "symbol", p.Symbol, "error", err)
	}
}

func (o *Orchestrator) resizeLocked(width, height int) {
	if o.primary == nil || width <= 0 {
		return
	}
	if height <= 0 {
		_, height = o.primary.Size()
	}
	if err := o.primary.Resize(width, height); err != nil {
		o.log.Debug("resize on disposed surface", "error", err)
	}
	for _, p := range o.panes {
		_, ph := p.Size()
		if err := p.Resize(width, ph); err != nil {
			o.log.Debug("resize on disposed pane", "error", err)
		}
	}
}
