package markethours

import (
	"strings"
	"testing"
	"time"
)

func ny(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, NewYork)
}

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday mid session", ny(2026, time.October, 19, 11, 0), true},
		{"at the open", ny(2026, time.October, 19, 9, 30), true},
		{"before the open", ny(2026, time.October, 19, 9, 29), false},
		{"at the close", ny(2026, time.October, 19, 16, 0), false},
		{"saturday", ny(2026, time.October, 17, 11, 0), false},
		{"thanksgiving", ny(2026, time.November, 26, 11, 0), false},
		{"utc input", time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		if got := IsMarketOpen(tc.at); got != tc.want {
			t.Errorf("%s: IsMarketOpen(%s) = %v, want %v", tc.name, tc.at, got, tc.want)
		}
	}
}

func TestNextOpen(t *testing.T) {
	// Friday after the close rolls to Monday.
	got := NextOpen(ny(2026, time.October, 16, 17, 0))
	if want := ny(2026, time.October, 19, 9, 30); !got.Equal(want) {
		t.Errorf("NextOpen = %s, want %s", got, want)
	}

	// The Independence Day observance skips to Monday the 6th.
	got = NextOpen(ny(2026, time.July, 2, 18, 0))
	if want := ny(2026, time.July, 6, 9, 30); !got.Equal(want) {
		t.Errorf("NextOpen across holiday = %s, want %s", got, want)
	}

	// Early morning on a trading day is the same day.
	got = NextOpen(ny(2026, time.October, 19, 7, 0))
	if want := ny(2026, time.October, 19, 9, 30); !got.Equal(want) {
		t.Errorf("NextOpen same day = %s, want %s", got, want)
	}
}

func TestStatusString(t *testing.T) {
	open := StatusString(ny(2026, time.October, 19, 15, 0))
	if !strings.HasPrefix(open, "open, closes in 1h0m") {
		t.Errorf("open status = %q", open)
	}
	closed := StatusString(ny(2026, time.October, 17, 12, 0))
	if !strings.HasPrefix(closed, "closed, opens Mon 09:30 ET") {
		t.Errorf("closed status = %q", closed)
	}
}
