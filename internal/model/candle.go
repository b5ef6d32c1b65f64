package model

import (
	"encoding/json"
	"math"
	"time"
)

// Candle is one OHLCV bar. Time is the bucket start in unix seconds.
// A candle array is always ordered ascending by Time, one entry per bar.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// TS returns the candle time as a UTC time.Time.
func (c *Candle) TS() time.Time {
	return time.Unix(c.Time, 0).UTC()
}

// Valid reports whether every price field is finite and the bar is not inverted.
func (c *Candle) Valid() bool {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return c.High >= c.Low
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// CandleBatch is the columnar payload returned by a candle fetch.
// Status is "ok" on success; any other value means no data.
type CandleBatch struct {
	Status  string    `json:"s"`
	Times   []int64   `json:"t"`
	Opens   []float64 `json:"o"`
	Highs   []float64 `json:"h"`
	Lows    []float64 `json:"l"`
	Closes  []float64 `json:"c"`
	Volumes []float64 `json:"v"`
}

// StatusOK is the only batch status that carries usable data.
const StatusOK = "ok"

// Candles converts the columnar batch into an ascending candle array.
// Points with missing OHLC columns, non-finite values or non-increasing
// timestamps are dropped. A missing volume column reads as zero volume.
func (b *CandleBatch) Candles() []Candle {
	if b == nil || b.Status != StatusOK || len(b.Times) == 0 {
		return nil
	}
	out := make([]Candle, 0, len(b.Times))
	var last int64
	for i, ts := range b.Times {
		if i >= len(b.Opens) || i >= len(b.Highs) || i >= len(b.Lows) || i >= len(b.Closes) {
			break
		}
		c := Candle{
			Time:  ts,
			Open:  b.Opens[i],
			High:  b.Highs[i],
			Low:   b.Lows[i],
			Close: b.Closes[i],
		}
		if i < len(b.Volumes) {
			c.Volume = b.Volumes[i]
		}
		if !c.Valid() {
			continue
		}
		if len(out) > 0 && ts <= last {
			continue
		}
		last = ts
		out = append(out, c)
	}
	return out
}

// Closes extracts the close column.
func Closes(data []Candle) []float64 {
	closes := make([]float64, len(data))
	for i := range data {
		closes[i] = data[i].Close
	}
	return closes
}

// HasVolume reports whether any bar carries non-zero volume.
func HasVolume(data []Candle) bool {
	for i := range data {
		if data[i].Volume != 0 {
			return true
		}
	}
	return false
}

// NewCandleBatch packs an ascending candle array into an "ok" batch.
func NewCandleBatch(candles []Candle) *CandleBatch {
	b := &CandleBatch{
		Status:  StatusOK,
		Times:   make([]int64, len(candles)),
		Opens:   make([]float64, len(candles)),
		Highs:   make([]float64, len(candles)),
		Lows:    make([]float64, len(candles)),
		Closes:  make([]float64, len(candles)),
		Volumes: make([]float64, len(candles)),
	}
	for i, c := range candles {
		b.Times[i] = c.Time
		b.Opens[i] = c.Open
		b.Highs[i] = c.High
		b.Lows[i] = c.Low
		b.Closes[i] = c.Close
		b.Volumes[i] = c.Volume
	}
	return b
}
