package surface

import "time"

// Range is a visible time window in unix seconds, both ends inclusive.
type Range struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Valid reports whether the range is non-inverted.
func (r Range) Valid() bool { return r.To >= r.From }

// Contains reports whether t falls inside the range.
func (r Range) Contains(t int64) bool { return t >= r.From && t <= r.To }

// Span returns the width of the range.
func (r Range) Span() time.Duration {
	return time.Duration(r.To-r.From) * time.Second
}

// union widens r to cover o. The zero Range is treated as empty.
func (r Range) union(o Range, empty bool) Range {
	if empty {
		return o
	}
	if o.From < r.From {
		r.From = o.From
	}
	if o.To > r.To {
		r.To = o.To
	}
	return r
}
