package indicator

import (
	"github.com/montanaflynn/stats"

	"chartdesk/internal/model"
)

// Bands holds the three Bollinger series. All share the middle SMA's length.
type Bands struct {
	Upper  model.Series `json:"upper"`
	Middle model.Series `json:"middle"`
	Lower  model.Series `json:"lower"`
}

// Empty reports whether the bands hold no points.
func (b Bands) Empty() bool { return len(b.Middle) == 0 }

// BollingerBands returns SMA(period) ± k population standard deviations of the
// same window. All three series are empty when len(data) < period.
func BollingerBands(data []model.Candle, period int, k float64) Bands {
	middle := SMA(data, period)
	if len(middle) == 0 {
		return Bands{Upper: emptySeries(), Middle: middle, Lower: emptySeries()}
	}

	closes := model.Closes(data)
	upper := make(model.Series, len(middle))
	lower := make(model.Series, len(middle))
	for j, m := range middle {
		i := j + period - 1
		sd, err := stats.StandardDeviationPopulation(stats.Float64Data(closes[i-period+1 : i+1]))
		if err != nil {
			sd = 0
		}
		upper[j] = model.Point{Time: m.Time, Value: m.Value + k*sd}
		lower[j] = model.Point{Time: m.Time, Value: m.Value - k*sd}
	}
	return Bands{Upper: upper, Middle: middle, Lower: lower}
}
