package indicator

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chartdesk/internal/model"
)

// Dataset is one loaded candle array. Its ID is the memoisation identity:
// two loads of identical bars are still distinct datasets.
type Dataset struct {
	ID      string
	Candles []model.Candle
}

// NewDataset wraps candles with a fresh identity.
func NewDataset(candles []model.Candle) *Dataset {
	return &Dataset{ID: uuid.NewString(), Candles: candles}
}

// Len returns the number of bars.
func (d *Dataset) Len() int { return len(d.Candles) }

// Selection names the overlays to compute for a dataset.
type Selection struct {
	Periods []int
	BB      bool
	RSI     bool
	MACD    bool
}

// key is stable for equal selections regardless of period order.
func (s Selection) key() string {
	periods := append([]int(nil), s.Periods...)
	sort.Ints(periods)
	var b strings.Builder
	for i, p := range periods {
		if i > 0 && periods[i-1] == p {
			continue
		}
		b.WriteString(strconv.Itoa(p))
		b.WriteByte(',')
	}
	b.WriteString("|bb=")
	b.WriteString(strconv.FormatBool(s.BB))
	b.WriteString("|rsi=")
	b.WriteString(strconv.FormatBool(s.RSI))
	b.WriteString("|macd=")
	b.WriteString(strconv.FormatBool(s.MACD))
	return b.String()
}

// Overlays is the computed output for one (dataset, selection) pair.
// Callers must treat every series as read-only.
type Overlays struct {
	DatasetID string
	SMA       map[int]model.Series
	BB        Bands
	RSI       model.Series
	MACD      MACDResult
}

// Stats counts engine cache behaviour.
type Stats struct {
	Hits     uint64 // whole selection served from cache
	Misses   uint64 // selection assembled
	Computed uint64 // individual series actually computed
	Reused   uint64 // individual series reused from an earlier selection
}

// datasetParts caches individual series for one dataset so that enabling
// one more period does not recompute the ones already on screen.
type datasetParts struct {
	sma  map[int]model.Series
	bb   *Bands
	rsi  model.Series
	macd *MACDResult
}

// Engine memoises overlay computation keyed by dataset identity plus selection.
// A visibility-only toggle never reaches the engine, so it never recomputes.
type Engine struct {
	params      Params
	maxDatasets int

	mu       sync.Mutex
	order    []string // dataset ids, oldest first
	parts    map[string]*datasetParts
	overlays map[string]*Overlays
	stats    Stats

	// OnCompute, if set, observes the wall time of each cache miss.
	OnCompute func(d time.Duration, hit bool)
}

// NewEngine creates an engine that keeps results for up to maxDatasets
// distinct datasets (at least one).
func NewEngine(params Params, maxDatasets int) *Engine {
	if maxDatasets < 1 {
		maxDatasets = 1
	}
	return &Engine{
		params:      params,
		maxDatasets: maxDatasets,
		parts:       make(map[string]*datasetParts),
		overlays:    make(map[string]*Overlays),
	}
}

// Params returns the formula parameters the engine was built with.
func (e *Engine) Params() Params { return e.params }

// Compute returns the overlays for ds and sel. Repeated calls with an equal
// selection on the same dataset return the identical *Overlays.
func (e *Engine) Compute(ds *Dataset, sel Selection) *Overlays {
	start := time.Now()
	key := ds.ID + "#" + sel.key()

	e.mu.Lock()
	defer e.mu.Unlock()

	if ov, ok := e.overlays[key]; ok {
		e.stats.Hits++
		if e.OnCompute != nil {
			e.OnCompute(time.Since(start), true)
		}
		return ov
	}
	e.stats.Misses++

	parts := e.partsFor(ds.ID)
	ov := &Overlays{DatasetID: ds.ID, SMA: make(map[int]model.Series, len(sel.Periods))}

	for _, p := range sel.Periods {
		s, ok := parts.sma[p]
		if ok {
			e.stats.Reused++
		} else {
			s = SMA(ds.Candles, p)
			parts.sma[p] = s
			e.stats.Computed++
		}
		ov.SMA[p] = s
	}
	if sel.BB {
		if parts.bb == nil {
			b := BollingerBands(ds.Candles, e.params.BBPeriod, e.params.BBK)
			parts.bb = &b
			e.stats.Computed++
		} else {
			e.stats.Reused++
		}
		ov.BB = *parts.bb
	}
	if sel.RSI {
		if parts.rsi == nil {
			parts.rsi = RSI(ds.Candles, e.params.RSIPeriod)
			e.stats.Computed++
		} else {
			e.stats.Reused++
		}
		ov.RSI = parts.rsi
	}
	if sel.MACD {
		if parts.macd == nil {
			m := MACD(ds.Candles, e.params.MACDFast, e.params.MACDSlow, e.params.MACDSignal)
			parts.macd = &m
			e.stats.Computed++
		} else {
			e.stats.Reused++
		}
		ov.MACD = *parts.macd
	}

	e.overlays[key] = ov
	if e.OnCompute != nil {
		e.OnCompute(time.Since(start), false)
	}
	return ov
}

// Forget drops every cached result for the dataset.
func (e *Engine) Forget(datasetID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropLocked(datasetID)
}

// Stats returns a copy of the cache counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) partsFor(id string) *datasetParts {
	if p, ok := e.parts[id]; ok {
		return p
	}
	for len(e.order) >= e.maxDatasets {
		e.dropLocked(e.order[0])
	}
	p := &datasetParts{sma: make(map[int]model.Series)}
	e.parts[id] = p
	e.order = append(e.order, id)
	return p
}

func (e *Engine) dropLocked(id string) {
	delete(e.parts, id)
	prefix := id + "#"
	for k := range e.overlays {
		if strings.HasPrefix(k, prefix) {
			delete(e.overlays, k)
		}
	}
	for i, o := range e.order {
		if o == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}
