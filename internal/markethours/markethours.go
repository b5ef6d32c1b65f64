// Package markethours knows the regular US equity session, which decides
// whether an intraday chart is still forming.
package markethours

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// NewYork is the exchange time zone.
var NewYork = mustLoad("America/New_York")

// Regular session in New York time.
const (
	OpenHour    = 9
	OpenMinute  = 30
	CloseHour   = 16
	CloseMinute = 0
)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// IsMarketOpen reports whether t falls in the regular session
// (9:30 to 16:00 New York time, Mon to Fri, excluding holidays).
func IsMarketOpen(t time.Time) bool {
	ny := t.In(NewYork)
	if !IsTradingDay(ny) {
		return false
	}
	hm := ny.Hour()*60 + ny.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsTradingDay reports whether t is a weekday and not a holiday in New York.
func IsTradingDay(t time.Time) bool {
	ny := t.In(NewYork)
	wd := ny.Weekday()
	return wd != time.Saturday && wd != time.Sunday && !IsHoliday(ny)
}

// NextOpen returns the next session open at or after t. Inside a session it
// returns the following day's open.
func NextOpen(t time.Time) time.Time {
	ny := t.In(NewYork)
	open := time.Date(ny.Year(), ny.Month(), ny.Day(), OpenHour, OpenMinute, 0, 0, NewYork)
	if ny.Before(open) && IsTradingDay(ny) {
		return open
	}
	for i := 1; i <= 10; i++ { // weekends plus the longest holiday run
		d := open.AddDate(0, 0, i)
		if IsTradingDay(d) {
			return d
		}
	}
	return open.AddDate(0, 0, 1)
}

// TodayClose returns the close of t's New York day.
func TodayClose(t time.Time) time.Time {
	ny := t.In(NewYork)
	return time.Date(ny.Year(), ny.Month(), ny.Day(), CloseHour, CloseMinute, 0, 0, NewYork)
}

// StatusString returns a short human-readable session status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("open, closes in %s", fmtDur(TodayClose(t).Sub(t)))
	}
	next := NextOpen(t)
	return fmt.Sprintf("closed, opens %s %s ET (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
