package markethours

import "time"

// NYSE full-day closures. Early closes trade normally here.
var nyseHolidays = map[int][]struct {
	month time.Month
	day   int
}{
	2026: {
		{time.January, 1},    // New Year's Day
		{time.January, 19},   // Martin Luther King Jr. Day
		{time.February, 16},  // Washington's Birthday
		{time.April, 3},      // Good Friday
		{time.May, 25},       // Memorial Day
		{time.June, 19},      // Juneteenth
		{time.July, 3},       // Independence Day (observed)
		{time.September, 7},  // Labor Day
		{time.November, 26},  // Thanksgiving Day
		{time.December, 25},  // Christmas Day
	},
	2027: {
		{time.January, 1},
		{time.January, 18},
		{time.February, 15},
		{time.March, 26},
		{time.May, 31},
		{time.June, 18},
		{time.July, 5},
		{time.September, 6},
		{time.November, 25},
		{time.December, 24},
	},
}

var holidaySet map[string]bool

func init() {
	holidaySet = make(map[string]bool)
	for year, days := range nyseHolidays {
		for _, h := range days {
			holidaySet[dateKey(year, h.month, h.day)] = true
		}
	}
}

// IsHoliday reports whether the New York date of t is an exchange holiday.
func IsHoliday(t time.Time) bool {
	ny := t.In(NewYork)
	return holidaySet[dateKey(ny.Year(), ny.Month(), ny.Day())]
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}
