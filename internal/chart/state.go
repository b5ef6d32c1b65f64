package chart

import "sync"

// State is the orchestrator lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON envelopes.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateListener observes state transitions. err is set only for StateError.
type StateListener func(s State, err error)

type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]StateListener
}

func (l *listeners) add(fn StateListener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]StateListener)
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners) emit(s State, err error) {
	l.mu.Lock()
	fns := make([]StateListener, 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(s, err)
	}
}
