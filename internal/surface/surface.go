// Package surface is a headless rendering surface: an ordered set of series
// handles, a visible time range with change listeners, and a PNG renderer
// built on go-chart.
package surface

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"chartdesk/internal/model"
)

// Role names what a surface plots.
type Role string

const (
	RolePrice Role = "price"
	RoleRSI   Role = "rsi"
	RoleMACD  Role = "macd"
)

// Surface is one independently rendered pane. All methods are safe for
// concurrent use; listeners are invoked without the lock held.
type Surface struct {
	id   string
	role Role

	mu        sync.Mutex
	width     int
	height    int
	series    []*Series
	full      Range
	visible   Range
	hasData   bool
	disposed  bool
	listeners map[int]func(Range)
	nextSub   int
}

// New creates an empty surface.
func New(role Role, width, height int) *Surface {
	return &Surface{
		id:        uuid.NewString(),
		role:      role,
		width:     width,
		height:    height,
		listeners: make(map[int]func(Range)),
	}
}

func (s *Surface) ID() string { return s.id }
func (s *Surface) Role() Role { return s.role }

// Size returns the current pixel size.
func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Resize changes the pixel size only. Series and ranges are untouched.
func (s *Surface) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return model.ErrSurfaceDisposed
	}
	s.width, s.height = width, height
	return nil
}

// Attach adds a series, replacing any series with the same id. The first
// series with data initialises the visible range to the full extent.
func (s *Surface) Attach(series *Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return model.ErrSurfaceDisposed
	}
	replaced := false
	for i, existing := range s.series {
		if existing.id == series.id {
			s.series[i] = series
			replaced = true
			break
		}
	}
	if !replaced {
		s.series = append(s.series, series)
	}
	hadData := s.hasData
	s.recomputeFullLocked()
	if !hadData && s.hasData {
		s.visible = s.full
	}
	return nil
}

// Detach removes the series with the given id. Unknown ids are ignored.
func (s *Surface) Detach(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return model.ErrSurfaceDisposed
	}
	for i, existing := range s.series {
		if existing.id == id {
			s.series = append(s.series[:i], s.series[i+1:]...)
			break
		}
	}
	s.recomputeFullLocked()
	return nil
}

// Series returns the attached series with the given id.
func (s *Surface) Series(id string) (*Series, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.series {
		if existing.id == id {
			return existing, true
		}
	}
	return nil, false
}

// SeriesIDs lists attached series ids in draw order.
func (s *Surface) SeriesIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.series))
	for i, existing := range s.series {
		ids[i] = existing.id
	}
	return ids
}

// VisibleRange returns the current visible window.
func (s *Surface) VisibleRange() Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// FullRange returns the extent covered by all attached series.
func (s *Surface) FullRange() Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.full
}

// SetVisibleRange applies r and notifies listeners. It returns false and
// fires nothing when r equals the current range, is inverted, or the surface
// is disposed.
func (s *Surface) SetVisibleRange(r Range) bool {
	s.mu.Lock()
	if s.disposed || !r.Valid() || r == s.visible {
		s.mu.Unlock()
		return false
	}
	s.visible = r
	fns := s.snapshotListenersLocked()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(r)
	}
	return true
}

// FitContent resets the visible range to the full data extent.
func (s *Surface) FitContent() bool {
	return s.SetVisibleRange(s.FullRange())
}

// SubscribeVisibleRange registers fn for range changes and returns a func
// that removes it. Subscribing to a disposed surface returns a no-op.
func (s *Surface) SubscribeVisibleRange(fn func(Range)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Dispose tears the surface down. Repeated calls are no-ops.
func (s *Surface) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	s.series = nil
	s.listeners = make(map[int]func(Range))
}

// Disposed reports whether Dispose has run.
func (s *Surface) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Render draws the visible series as PNG into w.
func (s *Surface) Render(w io.Writer) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return model.ErrSurfaceDisposed
	}
	frame := frame{
		role:    s.role,
		width:   s.width,
		height:  s.height,
		visible: s.visible,
		series:  append([]*Series(nil), s.series...),
	}
	s.mu.Unlock()

	if frame.width <= 0 || frame.height <= 0 {
		return fmt.Errorf("render %s surface: zero size %dx%d", frame.role, frame.width, frame.height)
	}
	return frame.render(w)
}

// Snapshot returns the current pixels as a PNG.
func (s *Surface) Snapshot() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Surface) recomputeFullLocked() {
	var full Range
	has := false
	for _, existing := range s.series {
		if ext, ok := existing.extent(); ok {
			full = full.union(ext, !has)
			has = true
		}
	}
	s.full = full
	s.hasData = has
}

func (s *Surface) snapshotListenersLocked() []func(Range) {
	fns := make([]func(Range), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return fns
}
