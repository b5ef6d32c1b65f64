package model

// Point is one sample of a derived series.
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Series is an ordered, time-aligned indicator output. It never holds a
// point before its formula has enough history.
type Series []Point

// Last returns the final point and true, or false for an empty series.
func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// Values extracts the value column.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}
