package indicator

import "chartdesk/internal/model"

// MACDResult holds the three MACD sub-series.
type MACDResult struct {
	MACD      model.Series `json:"macd"`
	Signal    model.Series `json:"signal"`
	Histogram model.Series `json:"histogram"`
}

// Empty reports whether no MACD point could be computed.
func (m MACDResult) Empty() bool { return len(m.MACD) == 0 }

// MACD computes fast EMA minus slow EMA, its signal EMA and the histogram.
//
// The fast EMA starts slow-fast bars earlier, so slow[i] pairs with
// fast[i+slow-fast]. The MACD line has len(data)-slow+1 points, the signal
// and histogram len(macd)-signal+1. The line needs slow bars; the signal and
// histogram stay empty below slow+signal bars.
func MACD(data []model.Candle, fast, slow, signal int) MACDResult {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow || len(data) < slow {
		return MACDResult{MACD: emptySeries(), Signal: emptySeries(), Histogram: emptySeries()}
	}

	fastEMA := EMA(data, fast)
	slowEMA := EMA(data, slow)
	offset := slow - fast

	line := make(model.Series, 0, len(slowEMA))
	for i := range slowEMA {
		j := i + offset
		if j >= len(fastEMA) {
			break
		}
		line = append(line, model.Point{
			Time:  slowEMA[i].Time,
			Value: fastEMA[j].Value - slowEMA[i].Value,
		})
	}

	if len(data) < slow+signal {
		return MACDResult{MACD: line, Signal: emptySeries(), Histogram: emptySeries()}
	}

	sig := emaOfSeries(line, signal)
	signalOffset := signal - 1
	hist := make(model.Series, 0, len(sig))
	for i := range sig {
		hist = append(hist, model.Point{
			Time:  sig[i].Time,
			Value: line[i+signalOffset].Value - sig[i].Value,
		})
	}

	return MACDResult{MACD: line, Signal: sig, Histogram: hist}
}
