package indicator

import "chartdesk/internal/model"

// EMA returns the exponential moving average of closes.
// The seed is the SMA of the first period closes, anchored at data[period-1].Time;
// later points follow ema = (close - prev) * 2/(period+1) + prev.
func EMA(data []model.Candle, period int) model.Series {
	if period <= 0 || len(data) < period {
		return emptySeries()
	}
	pts := make(model.Series, len(data))
	for i := range data {
		pts[i] = model.Point{Time: data[i].Time, Value: data[i].Close}
	}
	return emaOfSeries(pts, period)
}

// emaOfSeries applies the EMA seed-then-recurrence rule to an arbitrary series.
// MACD uses it to derive the signal line from the MACD line.
func emaOfSeries(in model.Series, period int) model.Series {
	if period <= 0 || len(in) < period {
		return emptySeries()
	}
	multiplier := 2.0 / float64(period+1)

	seed := 0.0
	for _, p := range in[:period] {
		seed += p.Value
	}
	seed /= float64(period)

	out := make(model.Series, 0, len(in)-period+1)
	out = append(out, model.Point{Time: in[period-1].Time, Value: seed})

	prev := seed
	for i := period; i < len(in); i++ {
		prev = (in[i].Value-prev)*multiplier + prev
		out = append(out, model.Point{Time: in[i].Time, Value: prev})
	}
	return out
}
