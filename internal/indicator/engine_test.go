package indicator

import (
	"testing"
	"time"
)

func TestEngine_MemoisesBySelection(t *testing.T) {
	engine := NewEngine(DefaultParams(), 4)
	ds := NewDataset(candlesFromCloses(rampCloses(300, 100, 0.5)...))

	sel := Selection{Periods: []int{10, 20}, BB: true, RSI: true, MACD: true}
	first := engine.Compute(ds, sel)
	second := engine.Compute(ds, Selection{Periods: []int{20, 10}, BB: true, RSI: true, MACD: true})

	if first != second {
		t.Fatal("equal selections on the same dataset should return the identical overlays")
	}
	st := engine.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %d / %d", st.Hits, st.Misses)
	}
	if st.Computed != 5 {
		t.Errorf("expected 5 series computed, got %d", st.Computed)
	}
}

func TestEngine_ReusesSeriesWhenSelectionGrows(t *testing.T) {
	engine := NewEngine(DefaultParams(), 4)
	ds := NewDataset(candlesFromCloses(rampCloses(300, 100, 0.5)...))

	a := engine.Compute(ds, Selection{Periods: []int{10}})
	b := engine.Compute(ds, Selection{Periods: []int{10, 50}})

	if &a.SMA[10][0] != &b.SMA[10][0] {
		t.Fatal("SMA-10 should be shared between selections, not recomputed")
	}
	st := engine.Stats()
	if st.Computed != 2 || st.Reused != 1 {
		t.Errorf("expected computed=2 reused=1, got computed=%d reused=%d", st.Computed, st.Reused)
	}
	if len(b.SMA[50]) != 300-50+1 {
		t.Errorf("SMA-50 length: got %d", len(b.SMA[50]))
	}
}

func TestEngine_DistinctDatasetsDoNotShare(t *testing.T) {
	engine := NewEngine(DefaultParams(), 4)
	closes := rampCloses(50, 10, 1)
	a := engine.Compute(NewDataset(candlesFromCloses(closes...)), Selection{Periods: []int{10}})
	b := engine.Compute(NewDataset(candlesFromCloses(closes...)), Selection{Periods: []int{10}})

	if a == b {
		t.Fatal("datasets with identical bars are still distinct identities")
	}
	if engine.Stats().Misses != 2 {
		t.Errorf("expected 2 misses, got %d", engine.Stats().Misses)
	}
}

func TestEngine_EvictsOldestDataset(t *testing.T) {
	engine := NewEngine(DefaultParams(), 1)
	ds1 := NewDataset(candlesFromCloses(rampCloses(30, 10, 1)...))
	ds2 := NewDataset(candlesFromCloses(rampCloses(30, 10, 1)...))

	engine.Compute(ds1, Selection{Periods: []int{10}})
	engine.Compute(ds2, Selection{Periods: []int{10}})
	engine.Compute(ds1, Selection{Periods: []int{10}})

	if st := engine.Stats(); st.Misses != 3 || st.Hits != 0 {
		t.Errorf("expected ds1 to be evicted: hits=%d misses=%d", st.Hits, st.Misses)
	}
}

func TestEngine_OnComputeHook(t *testing.T) {
	engine := NewEngine(DefaultParams(), 2)
	var misses, hits int
	engine.OnCompute = func(_ time.Duration, hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	}
	ds := NewDataset(candlesFromCloses(rampCloses(40, 10, 1)...))
	engine.Compute(ds, Selection{RSI: true})
	engine.Compute(ds, Selection{RSI: true})

	if misses != 1 || hits != 1 {
		t.Errorf("expected 1 miss and 1 hit, got %d and %d", misses, hits)
	}
}
