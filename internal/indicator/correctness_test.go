package indicator

import (
	"math"
	"testing"

	"chartdesk/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

const day = int64(86400)

func candlesFromCloses(closes ...float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			Time:   1_700_000_000 + int64(i)*day,
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 1000,
		}
	}
	return out
}

func rampCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// Undersized input
// ────────────────────────────────────────────────────────────

func TestAllIndicators_EmptyWhenPeriodExceedsInput(t *testing.T) {
	data := candlesFromCloses(1, 2, 3, 4, 5)
	n := len(data)

	for _, period := range []int{n + 1, n + 10, 200} {
		if got := SMA(data, period); len(got) != 0 {
			t.Errorf("SMA(%d): expected empty, got %d points", period, len(got))
		}
		if got := EMA(data, period); len(got) != 0 {
			t.Errorf("EMA(%d): expected empty, got %d points", period, len(got))
		}
		if got := RSI(data, period); len(got) != 0 {
			t.Errorf("RSI(%d): expected empty, got %d points", period, len(got))
		}
		bb := BollingerBands(data, period, 2)
		if len(bb.Upper)+len(bb.Middle)+len(bb.Lower) != 0 {
			t.Errorf("BollingerBands(%d): expected all empty", period)
		}
		m := MACD(data, 3, period, 2)
		if len(m.MACD)+len(m.Signal)+len(m.Histogram) != 0 {
			t.Errorf("MACD(slow=%d): expected all empty", period)
		}
	}
}

func TestAllIndicators_NilInput(t *testing.T) {
	if len(SMA(nil, 3)) != 0 || len(EMA(nil, 3)) != 0 || len(RSI(nil, 14)) != 0 {
		t.Fatal("expected empty series for nil input")
	}
	if !BollingerBands(nil, 20, 2).Empty() || !MACD(nil, 12, 26, 9).Empty() {
		t.Fatal("expected empty bands/macd for nil input")
	}
}

// ────────────────────────────────────────────────────────────
// SMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_WorkedExample(t *testing.T) {
	// Closes: 10,11,12,11,13,14,13,15,16,15
	// SMA(3) first  = (10+11+12)/3 = 11
	// SMA(3) second = (11+12+11)/3 = 11.3333
	// SMA(3) last   = (15+16+15)/3 = 15.3333
	data := candlesFromCloses(10, 11, 12, 11, 13, 14, 13, 15, 16, 15)
	got := SMA(data, 3)

	if len(got) != 8 {
		t.Fatalf("expected 8 points, got %d", len(got))
	}
	assertClose(t, "SMA(3)[0]", got[0].Value, 11, 1e-12)
	assertClose(t, "SMA(3)[1]", got[1].Value, 34.0/3.0, 1e-12)
	assertClose(t, "SMA(3)[7]", got[7].Value, 46.0/3.0, 1e-12)

	if got[0].Time != data[2].Time {
		t.Errorf("first point should be anchored at data[2].Time, got %d", got[0].Time)
	}
	if got[7].Time != data[9].Time {
		t.Errorf("last point should be anchored at data[9].Time, got %d", got[7].Time)
	}
}

func TestSMA_Length(t *testing.T) {
	data := candlesFromCloses(rampCloses(30, 100, 1)...)
	for _, p := range []int{1, 5, 10, 20, 30} {
		if got := SMA(data, p); len(got) != len(data)-p+1 {
			t.Errorf("SMA(%d): got len %d, want %d", p, len(got), len(data)-p+1)
		}
	}
	if got := SMA(data, 0); len(got) != 0 {
		t.Errorf("SMA(0): expected empty, got %d", len(got))
	}
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// EMA(3): multiplier = 2/(3+1) = 0.5
	// Prices: 100, 102, 104, 103, 105
	// Seed   = (100+102+104)/3 = 102.0 at index 2
	// Next   = (103-102)*0.5 + 102 = 102.5
	// Next   = (105-102.5)*0.5 + 102.5 = 103.75
	data := candlesFromCloses(100, 102, 104, 103, 105)
	got := EMA(data, 3)

	if len(got) != 3 {
		t.Fatalf("expected 3 points, got %d", len(got))
	}
	if got[0].Time != data[2].Time {
		t.Errorf("seed should be anchored at data[2].Time")
	}
	assertClose(t, "EMA(3) seed", got[0].Value, 102.0, 1e-12)
	assertClose(t, "EMA(3)[1]", got[1].Value, 102.5, 1e-12)
	assertClose(t, "EMA(3)[2]", got[2].Value, 103.75, 1e-12)
}

func TestEMA_SeedEqualsMeanOfFirstPeriod(t *testing.T) {
	closes := []float64{44, 44.25, 44.5, 43.75, 44.5, 44.25, 44}
	data := candlesFromCloses(closes...)
	got := EMA(data, 5)

	if len(got) != len(data)-5+1 {
		t.Fatalf("expected %d points, got %d", len(data)-5+1, len(got))
	}
	seed := (44 + 44.25 + 44.5 + 43.75 + 44.5) / 5.0
	if got[0].Value != seed {
		t.Errorf("seed: got %v, want exactly %v", got[0].Value, seed)
	}

	mult := 2.0 / 6.0
	want6 := (44.25-seed)*mult + seed
	want7 := (44.0-want6)*mult + want6
	assertClose(t, "EMA(5)[1]", got[1].Value, want6, 1e-12)
	assertClose(t, "EMA(5)[2]", got[2].Value, want7, 1e-12)
}

// ────────────────────────────────────────────────────────────
// MACD Correctness
// ────────────────────────────────────────────────────────────

func TestMACD_LengthsAndHistogramIdentity(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/7) + float64(i)*0.1
	}
	data := candlesFromCloses(closes...)
	m := MACD(data, 12, 26, 9)

	if want := len(data) - 26 + 1; len(m.MACD) != want {
		t.Fatalf("macd line: got %d, want %d", len(m.MACD), want)
	}
	if want := len(m.MACD) - 9 + 1; len(m.Signal) != want {
		t.Fatalf("signal: got %d, want %d", len(m.Signal), want)
	}
	if len(m.Histogram) != len(m.Signal) {
		t.Fatalf("histogram: got %d, want %d", len(m.Histogram), len(m.Signal))
	}
	for i := range m.Histogram {
		want := m.MACD[i+8].Value - m.Signal[i].Value
		if m.Histogram[i].Value != want {
			t.Fatalf("histogram[%d]: got %v, want exactly %v", i, m.Histogram[i].Value, want)
		}
		if m.Histogram[i].Time != m.MACD[i+8].Time {
			t.Fatalf("histogram[%d] misaligned in time", i)
		}
	}
}

func TestMACD_LineMatchesEMADifference(t *testing.T) {
	data := candlesFromCloses(rampCloses(40, 50, 0.75)...)
	m := MACD(data, 3, 6, 4)
	fast := EMA(data, 3)
	slow := EMA(data, 6)

	if m.MACD[0].Time != data[5].Time {
		t.Fatalf("macd line should start at data[slow-1]")
	}
	for i := range m.MACD {
		want := fast[i+3].Value - slow[i].Value
		if m.MACD[i].Value != want {
			t.Fatalf("macd[%d]: got %v, want %v", i, m.MACD[i].Value, want)
		}
	}
	// Signal seed is the mean of the first 4 MACD values.
	seed := (m.MACD[0].Value + m.MACD[1].Value + m.MACD[2].Value + m.MACD[3].Value) / 4
	assertClose(t, "signal seed", m.Signal[0].Value, seed, 1e-12)
}

func TestMACD_LineWithoutSignalHistory(t *testing.T) {
	// 30 bars: enough for the slow EMA (26) but not for a signal line (needs 35).
	data := candlesFromCloses(rampCloses(30, 10, 1)...)
	m := MACD(data, 12, 26, 9)
	if len(m.MACD) != 5 {
		t.Fatalf("macd line: got %d, want 5", len(m.MACD))
	}
	if len(m.Signal) != 0 || len(m.Histogram) != 0 {
		t.Fatalf("expected empty signal/histogram, got %d/%d", len(m.Signal), len(m.Histogram))
	}
}

func TestMACD_SignalWarmupBoundary(t *testing.T) {
	// 34 bars give 9 MACD points, enough for one signal EMA, but the
	// signal is only drawn from slow+signal = 35 bars.
	short := MACD(candlesFromCloses(rampCloses(34, 10, 1)...), 12, 26, 9)
	if len(short.MACD) != 9 {
		t.Fatalf("N=34 macd line: got %d, want 9", len(short.MACD))
	}
	if len(short.Signal) != 0 || len(short.Histogram) != 0 {
		t.Fatalf("N=34: expected empty signal/histogram, got %d/%d", len(short.Signal), len(short.Histogram))
	}

	full := MACD(candlesFromCloses(rampCloses(35, 10, 1)...), 12, 26, 9)
	if len(full.MACD) != 10 || len(full.Signal) != 2 || len(full.Histogram) != 2 {
		t.Fatalf("N=35: got macd=%d signal=%d hist=%d, want 10/2/2",
			len(full.MACD), len(full.Signal), len(full.Histogram))
	}
}

// ────────────────────────────────────────────────────────────
// RSI Correctness (Wilder's Smoothing)
// ────────────────────────────────────────────────────────────

func TestRSI_MonotonicIncreaseUsesRS100(t *testing.T) {
	data := candlesFromCloses(rampCloses(30, 100, 1)...)
	got := RSI(data, 14)

	if len(got) != len(data)-14 {
		t.Fatalf("expected %d points, got %d", len(data)-14, len(got))
	}
	want := 100.0 - 100.0/101.0
	for i, p := range got {
		assertClose(t, "RSI monotonic", p.Value, want, 1e-12)
		if p.Value == 100 {
			t.Fatalf("point %d: RSI must not be exactly 100", i)
		}
	}
	if got[0].Time != data[14].Time {
		t.Errorf("first RSI point should be anchored at data[14].Time")
	}
}

func TestRSI_HandCalculated(t *testing.T) {
	// Period 3, closes 10, 11, 10, 12, 11
	// gains:  1, 0, 2, 0   losses: 0, 1, 0, 1
	// seed avgGain = 3/3 = 1, avgLoss = 1/3  → RS = 3 → RSI = 75
	// next: avgGain = (1*2 + 0)/3 = 2/3, avgLoss = (1/3*2 + 1)/3 = 5/9
	//       RS = (2/3)/(5/9) = 1.2 → RSI = 100 - 100/2.2 = 54.5454...
	data := candlesFromCloses(10, 11, 10, 12, 11)
	got := RSI(data, 3)

	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	assertClose(t, "RSI[0]", got[0].Value, 75, 1e-9)
	assertClose(t, "RSI[1]", got[1].Value, 100-100/2.2, 1e-9)
}

func TestRSI_FlatSeriesIsNotAnError(t *testing.T) {
	// No gains and no losses: avgLoss == 0 so RS is 100 and avgGain is 0.
	data := candlesFromCloses(5, 5, 5, 5, 5, 5)
	got := RSI(data, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 points, got %d", len(got))
	}
	assertClose(t, "RSI flat", got[0].Value, 100-100/101.0, 1e-12)
}

// ────────────────────────────────────────────────────────────
// Bollinger Bands Correctness
// ────────────────────────────────────────────────────────────

func TestBollinger_ConstantPriceCollapses(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	data := candlesFromCloses(closes...)
	bb := BollingerBands(data, 20, 2)

	if len(bb.Middle) != 21 || len(bb.Upper) != 21 || len(bb.Lower) != 21 {
		t.Fatalf("expected 21 points in every band, got %d/%d/%d", len(bb.Upper), len(bb.Middle), len(bb.Lower))
	}
	for i := range bb.Middle {
		if bb.Upper[i].Value != bb.Middle[i].Value || bb.Lower[i].Value != bb.Middle[i].Value {
			t.Fatalf("point %d: bands should collapse, got %v/%v/%v", i, bb.Upper[i].Value, bb.Middle[i].Value, bb.Lower[i].Value)
		}
	}
}

func TestBollinger_PopulationStdDev(t *testing.T) {
	// Window 2,4,4,4,5,5,7,9: mean 5, population variance 4 → stddev 2.
	data := candlesFromCloses(2, 4, 4, 4, 5, 5, 7, 9)
	bb := BollingerBands(data, 8, 2)

	if len(bb.Middle) != 1 {
		t.Fatalf("expected 1 point, got %d", len(bb.Middle))
	}
	assertClose(t, "middle", bb.Middle[0].Value, 5, 1e-12)
	assertClose(t, "upper", bb.Upper[0].Value, 9, 1e-12)
	assertClose(t, "lower", bb.Lower[0].Value, 1, 1e-12)
}
