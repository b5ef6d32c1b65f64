package indicator

import "chartdesk/internal/model"

// periodTable decides which canonical moving-average periods are meaningful
// for the bar density each timeframe is fetched at. Roughly: 1D is ~26
// fifteen-minute bars, 5D ~35 hourly bars, 1M ~21 daily bars, 3M/6M ~63/126
// daily bars, 1Y ~252 daily bars and 5Y ~260 weekly bars.
var periodTable = map[model.Timeframe][]int{
	model.TF1D:     {10},
	model.TF5D:     {10, 20},
	model.TF1M:     {10},
	model.TF3M:     {10, 20, 50},
	model.TF6M:     {10, 20, 50},
	model.TF1Y:     {10, 20, 50, 200},
	model.TF5Y:     {10, 20, 50, 200},
	model.TFMax:    {10, 20, 50, 200},
	model.TFCustom: {10, 20, 50, 200},
}

// AvailablePeriods returns the moving-average periods offered for tf.
// Unknown keys get the most conservative set.
func AvailablePeriods(tf model.Timeframe) []int {
	periods, ok := periodTable[tf]
	if !ok {
		periods = periodTable[model.TF1D]
	}
	return append([]int(nil), periods...)
}

// FilterPeriods keeps only the enabled periods that tf offers, in ascending order.
func FilterPeriods(tf model.Timeframe, enabled []int) []int {
	avail := AvailablePeriods(tf)
	out := make([]int, 0, len(avail))
	for _, a := range avail {
		for _, e := range enabled {
			if a == e {
				out = append(out, a)
				break
			}
		}
	}
	return out
}
