// Package crosshair assembles the hover tooltip: the bar at the hovered time
// plus the value of every enabled overlay at that exact time.
package crosshair

import (
	"sync"
	"sync/atomic"

	"chartdesk/internal/model"
)

// Lookup is an exact-key time lookup over a series.
type Lookup interface {
	ValueAt(t int64) (float64, bool)
}

// Value is one overlay reading.
type Value struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

// Tooltip is published fully assembled and never mutated afterwards.
type Tooltip struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Values []Value `json:"values"`
}

// Get returns the value for id, if the overlay had a point at this time.
func (t *Tooltip) Get(id string) (float64, bool) {
	for _, v := range t.Values {
		if v.ID == id {
			return v.Value, true
		}
	}
	return 0, false
}

type overlay struct {
	id     string
	lookup Lookup
}

// Aggregator tracks the live primary series and overlays of one chart.
type Aggregator struct {
	mu       sync.Mutex
	primary  Lookup
	candles  map[int64]model.Candle
	overlays []overlay
	subs     map[int]func(*Tooltip)
	nextSub  int

	current atomic.Pointer[Tooltip]
}

// New creates an aggregator with no data bound.
func New() *Aggregator {
	return &Aggregator{subs: make(map[int]func(*Tooltip))}
}

// Bind sets the primary series and the candle array it was built from,
// dropping every overlay and clearing the tooltip.
func (a *Aggregator) Bind(primary Lookup, candles []model.Candle) {
	idx := make(map[int64]model.Candle, len(candles))
	for _, c := range candles {
		idx[c.Time] = c
	}
	a.mu.Lock()
	a.primary = primary
	a.candles = idx
	a.overlays = nil
	a.mu.Unlock()
	a.publish(nil)
}

// AddOverlay registers an overlay reading under id, replacing any existing one.
func (a *Aggregator) AddOverlay(id string, lookup Lookup) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.overlays {
		if a.overlays[i].id == id {
			a.overlays[i].lookup = lookup
			return
		}
	}
	a.overlays = append(a.overlays, overlay{id: id, lookup: lookup})
}

// RemoveOverlay drops the readings with the given ids.
func (a *Aggregator) RemoveOverlay(ids ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.overlays[:0]
	for _, o := range a.overlays {
		drop := false
		for _, id := range ids {
			if o.id == id {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, o)
		}
	}
	a.overlays = kept
}

// Overlays lists registered overlay ids in registration order.
func (a *Aggregator) Overlays() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, len(a.overlays))
	for i, o := range a.overlays {
		ids[i] = o.id
	}
	return ids
}

// Move handles a pointer move. A nil t, or a time with no primary point,
// clears the tooltip. It returns the published tooltip.
func (a *Aggregator) Move(t *int64) *Tooltip {
	tip := a.assemble(t)
	a.publish(tip)
	return tip
}

// Current returns the last published tooltip, nil when cleared.
func (a *Aggregator) Current() *Tooltip { return a.current.Load() }

// Subscribe registers fn for every published tooltip (nil on clear).
func (a *Aggregator) Subscribe(fn func(*Tooltip)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

func (a *Aggregator) assemble(t *int64) *Tooltip {
	if t == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.primary == nil {
		return nil
	}
	px, ok := a.primary.ValueAt(*t)
	if !ok {
		return nil
	}

	tip := &Tooltip{Time: *t, Open: px, High: px, Low: px, Close: px}
	if c, ok := a.candles[*t]; ok {
		tip.Open, tip.High, tip.Low, tip.Close = c.Open, c.High, c.Low, c.Close
		tip.Volume = c.Volume
	}
	tip.Values = make([]Value, 0, len(a.overlays))
	for _, o := range a.overlays {
		if v, ok := o.lookup.ValueAt(*t); ok {
			tip.Values = append(tip.Values, Value{ID: o.id, Value: v})
		}
	}
	return tip
}

func (a *Aggregator) publish(tip *Tooltip) {
	prev := a.current.Swap(tip)
	if prev == nil && tip == nil {
		return
	}
	a.mu.Lock()
	fns := make([]func(*Tooltip), 0, len(a.subs))
	for _, fn := range a.subs {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(tip)
	}
}
