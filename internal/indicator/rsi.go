package indicator

import "chartdesk/internal/model"

// RSI computes the Relative Strength Index using Wilder's smoothing method.
//
// Gains and losses are seeded with their simple mean over the first period
// changes; the first point is anchored at data[period].Time and the result
// holds len(data)-period points. When the average loss is zero RS is taken
// as 100 rather than infinity, which yields 100 - 100/101 (about 99.0099).
func RSI(data []model.Candle, period int) model.Series {
	if period <= 0 || len(data) <= period {
		return emptySeries()
	}

	gains := make([]float64, len(data))
	losses := make([]float64, len(data))
	for i := 1; i < len(data); i++ {
		delta := data[i].Close - data[i-1].Close
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	p := float64(period)
	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= p
	avgLoss /= p

	out := make(model.Series, 0, len(data)-period)
	out = append(out, model.Point{Time: data[period].Time, Value: rsiValue(avgGain, avgLoss)})

	for i := period + 1; i < len(data); i++ {
		avgGain = (avgGain*(p-1) + gains[i]) / p
		avgLoss = (avgLoss*(p-1) + losses[i]) / p
		out = append(out, model.Point{Time: data[i].Time, Value: rsiValue(avgGain, avgLoss)})
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	rs := 100.0
	if avgLoss != 0 {
		rs = avgGain / avgLoss
	}
	return 100.0 - (100.0 / (1.0 + rs))
}
