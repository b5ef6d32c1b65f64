package csvfeed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartdesk/internal/model"
)

const sample = `time,open,high,low,close,volume
2026-01-05,10,11,9,10.5,1000
2026-01-02,9,10,8,9.5,800
1767830400,10.5,12,10,11.5,1200
`

func writeFeed(t *testing.T) *Feed {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AAPL.csv"), []byte(sample), 0o644))
	return New(dir)
}

func TestFetchCandles_SortsAndFilters(t *testing.T) {
	f := writeFeed(t)
	batch, err := f.FetchCandles(context.Background(), model.FetchRequest{
		Symbol: "aapl", Resolution: model.ResDay, From: 0, To: 1 << 40,
	})
	require.NoError(t, err)
	candles := batch.Candles()
	require.Len(t, candles, 3)
	assert.Equal(t, 9.5, candles[0].Close, "rows come back ascending")
	assert.Equal(t, int64(1767830400), candles[2].Time)

	// 2026-01-05 00:00 UTC only.
	batch, err = f.FetchCandles(context.Background(), model.FetchRequest{
		Symbol: "AAPL", Resolution: model.ResDay, From: 1767571200, To: 1767571200,
	})
	require.NoError(t, err)
	require.Len(t, batch.Candles(), 1)
	assert.Equal(t, 10.5, batch.Candles()[0].Close)
}

func TestFetchCandles_EmptyRange(t *testing.T) {
	f := writeFeed(t)
	batch, err := f.FetchCandles(context.Background(), model.FetchRequest{Symbol: "AAPL", From: 1, To: 2})
	require.NoError(t, err)
	assert.Equal(t, "no_data", batch.Status)
}

func TestFetchCandles_MissingFile(t *testing.T) {
	f := New(t.TempDir())
	_, err := f.FetchCandles(context.Background(), model.FetchRequest{Symbol: "NOPE", From: 1, To: 2})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseTime(t *testing.T) {
	for in, want := range map[string]int64{
		"1700000000":           1700000000,
		"2026-01-02":           1767312000,
		"2026-01-02 00:01:00":  1767312060,
		"2026-01-02T00:00:00Z": 1767312000,
	} {
		got, err := parseTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseTime("yesterday")
	assert.Error(t, err)
}
