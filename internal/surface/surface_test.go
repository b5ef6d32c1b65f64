package surface

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartdesk/internal/model"
)

func testCandles(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		base := 100 + float64(i%7)
		out[i] = model.Candle{
			Time:   1_700_000_000 + int64(i)*86400,
			Open:   base,
			High:   base + 2,
			Low:    base - 2,
			Close:  base + float64(i%3) - 1,
			Volume: float64(1000 + i*10),
		}
	}
	return out
}

func TestAttach_InitialisesVisibleRange(t *testing.T) {
	s := New(RolePrice, 800, 400)
	candles := testCandles(10)
	require.NoError(t, s.Attach(NewCandles("price", candles)))

	want := Range{From: candles[0].Time, To: candles[9].Time}
	assert.Equal(t, want, s.FullRange())
	assert.Equal(t, want, s.VisibleRange())
}

func TestSetVisibleRange_EqualityGuard(t *testing.T) {
	s := New(RolePrice, 800, 400)
	require.NoError(t, s.Attach(NewCandles("price", testCandles(10))))

	var events []Range
	s.SubscribeVisibleRange(func(r Range) { events = append(events, r) })

	r := Range{From: 1_700_000_000, To: 1_700_000_000 + 5*86400}
	assert.True(t, s.SetVisibleRange(r))
	assert.False(t, s.SetVisibleRange(r), "identical range must be a no-op")
	assert.False(t, s.SetVisibleRange(Range{From: 10, To: 5}), "inverted range rejected")
	assert.Len(t, events, 1)
}

func TestUnsubscribe(t *testing.T) {
	s := New(RoleRSI, 800, 200)
	calls := 0
	unsub := s.SubscribeVisibleRange(func(Range) { calls++ })
	s.SetVisibleRange(Range{From: 1, To: 2})
	unsub()
	s.SetVisibleRange(Range{From: 1, To: 3})
	assert.Equal(t, 1, calls)
}

func TestFitContent_RestoresFullRange(t *testing.T) {
	s := New(RolePrice, 800, 400)
	require.NoError(t, s.Attach(NewCandles("price", testCandles(20))))
	full := s.FullRange()

	s.SetVisibleRange(Range{From: full.From + 86400, To: full.To - 86400})
	assert.True(t, s.FitContent())
	assert.Equal(t, full, s.VisibleRange())
	assert.False(t, s.FitContent(), "already fitted")
}

func TestSeries_VisibilityDoesNotTouchData(t *testing.T) {
	pts := model.Series{{Time: 1, Value: 10}, {Time: 2, Value: 11}}
	line := NewLine("sma-10", SMAColor(0), pts)

	before := line.Points()
	line.SetVisible(false)
	assert.False(t, line.Visible())
	line.SetVisible(true)
	assert.True(t, line.Visible())

	after := line.Points()
	assert.Same(t, &before[0], &after[0])
	assert.Equal(t, pts, after)
}

func TestSeries_ValueAtExactKey(t *testing.T) {
	line := NewLine("rsi", ColorRSI, model.Series{{Time: 100, Value: 55}, {Time: 200, Value: 60}})

	v, ok := line.ValueAt(200)
	assert.True(t, ok)
	assert.Equal(t, 60.0, v)

	_, ok = line.ValueAt(150)
	assert.False(t, ok, "no nearest-neighbour lookup")
}

func TestDetach_ReplacesAndRemoves(t *testing.T) {
	s := New(RolePrice, 800, 400)
	require.NoError(t, s.Attach(NewLine("sma-10", SMAColor(0), model.Series{{Time: 1, Value: 1}})))
	require.NoError(t, s.Attach(NewLine("sma-20", SMAColor(1), model.Series{{Time: 1, Value: 2}})))
	require.NoError(t, s.Attach(NewLine("sma-10", SMAColor(0), model.Series{{Time: 1, Value: 3}})))
	assert.Equal(t, []string{"sma-10", "sma-20"}, s.SeriesIDs())

	require.NoError(t, s.Detach("sma-10"))
	require.NoError(t, s.Detach("missing"))
	assert.Equal(t, []string{"sma-20"}, s.SeriesIDs())
}

func TestResize_KeepsSeries(t *testing.T) {
	s := New(RolePrice, 800, 400)
	require.NoError(t, s.Attach(NewCandles("price", testCandles(5))))
	id := s.ID()

	require.NoError(t, s.Resize(1200, 900))
	w, h := s.Size()
	assert.Equal(t, 1200, w)
	assert.Equal(t, 900, h)
	assert.Equal(t, id, s.ID())
	assert.Equal(t, []string{"price"}, s.SeriesIDs())
}

func TestDispose_Idempotent(t *testing.T) {
	s := New(RolePrice, 800, 400)
	require.NoError(t, s.Attach(NewCandles("price", testCandles(5))))

	s.Dispose()
	s.Dispose()

	assert.True(t, s.Disposed())
	assert.ErrorIs(t, s.Attach(NewLine("x", ColorPrice, nil)), model.ErrSurfaceDisposed)
	assert.ErrorIs(t, s.Resize(1, 1), model.ErrSurfaceDisposed)
	assert.False(t, s.SetVisibleRange(Range{From: 1, To: 2}))
	_, err := s.Snapshot()
	assert.ErrorIs(t, err, model.ErrSurfaceDisposed)
}

func TestSnapshot_RendersPNG(t *testing.T) {
	candles := testCandles(40)
	s := New(RolePrice, 640, 360)
	require.NoError(t, s.Attach(NewCandles("price", candles)))

	vol := make(model.Series, len(candles))
	for i, c := range candles {
		vol[i] = model.Point{Time: c.Time, Value: c.Volume}
	}
	require.NoError(t, s.Attach(NewHistogram("volume", ScaleSecondary, vol, nil)))
	require.NoError(t, s.Attach(NewArea("sma-10", SMAColor(0), vol[10:])))

	png, err := s.Snapshot()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestSnapshot_AllHidden(t *testing.T) {
	s := New(RoleMACD, 640, 200)
	line := NewLine("macd", ColorMACD, model.Series{{Time: 1, Value: 0}, {Time: 2, Value: 0}})
	require.NoError(t, s.Attach(line))
	line.SetVisible(false)

	png, err := s.Snapshot()
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestRender_ZeroWidth(t *testing.T) {
	s := New(RolePrice, 0, 400)
	_, err := s.Snapshot()
	assert.Error(t, err)
}
