package redis

import (
	"testing"

	"chartdesk/internal/model"
)

func TestPrefsKey(t *testing.T) {
	if got := PrefsKey("aapl"); got != "chart:prefs:AAPL" {
		t.Errorf("PrefsKey = %q", got)
	}
}

func TestCandleKey(t *testing.T) {
	req := model.FetchRequest{Symbol: "msft", Resolution: model.ResDay, From: 100, To: 200}
	if got := CandleKey(req); got != "chart:candles:MSFT:D:100:200" {
		t.Errorf("CandleKey = %q", got)
	}
}
