// Package indicator provides technical indicator calculations over candle data.
//
// Every calculation is a pure function: the same candle array always yields the
// same series, and undersized input degrades to an empty series rather than an
// error. Output series are time-aligned subsets of the input and never contain
// a point inside the formula's warm-up period.
package indicator

import (
	"strconv"

	"chartdesk/internal/model"
)

// Indicator ids shared by the engine, the surfaces, the visibility controller
// and the tooltip. Moving averages are keyed per period via SMAID.
const (
	IDPrice     = "price"
	IDVolume    = "volume"
	IDBollinger = "bb"
	IDRSI       = "rsi"
	IDMACD      = "macd"
)

// SMAID returns the indicator id for the moving average of the given period.
func SMAID(period int) string {
	return "sma-" + strconv.Itoa(period)
}

// Params holds the formula parameters for the non-moving-average indicators.
type Params struct {
	BBPeriod   int
	BBK        float64
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// DefaultParams are the textbook settings: BB(20,2), RSI(14), MACD(12,26,9).
func DefaultParams() Params {
	return Params{
		BBPeriod:   20,
		BBK:        2,
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
	}
}

// MinRSIBars is the shortest input that yields at least one RSI point.
func (p Params) MinRSIBars() int { return p.RSIPeriod + 1 }

// MinMACDBars is the shortest input for which a MACD pane is worth drawing.
func (p Params) MinMACDBars() int { return p.MACDSlow + p.MACDSignal }

func windowMean(closes []float64) float64 {
	sum := 0.0
	for _, c := range closes {
		sum += c
	}
	return sum / float64(len(closes))
}

func emptySeries() model.Series { return model.Series{} }
