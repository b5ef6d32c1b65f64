package indicator

import "chartdesk/internal/model"

// SMA returns the simple moving average of closes over period.
// Point i (0-based) is anchored at data[i+period-1].Time.
// Result length is max(0, len(data)-period+1).
func SMA(data []model.Candle, period int) model.Series {
	if period <= 0 || len(data) < period {
		return emptySeries()
	}
	closes := model.Closes(data)
	out := make(model.Series, 0, len(data)-period+1)
	for i := period - 1; i < len(data); i++ {
		out = append(out, model.Point{
			Time:  data[i].Time,
			Value: windowMean(closes[i-period+1 : i+1]),
		})
	}
	return out
}
