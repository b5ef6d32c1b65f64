package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartdesk/internal/marketdata/csvfeed"
	"chartdesk/internal/model"
)

func writeCSV(t *testing.T, symbol string, end time.Time, days int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("time,open,high,low,close,volume\n")
	start := end.AddDate(0, 0, -days).Truncate(24 * time.Hour)
	for i := 0; i < days; i++ {
		px := 200 + 20*math.Sin(float64(i)/9)
		fmt.Fprintf(&b, "%d,%.2f,%.2f,%.2f,%.2f,%d\n",
			start.AddDate(0, 0, i).Unix(), px-1, px+2, px-2, px, 10000+i)
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(b.String()), 0o644))
	return dir
}

func TestPrintPeriods(t *testing.T) {
	var out bytes.Buffer
	printPeriods(&out)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, len(model.Timeframes)+1)
	assert.Contains(t, lines[0], "TIMEFRAME")
	assert.Contains(t, lines[0], "PERIODS")
	assert.Contains(t, lines[1], string(model.Timeframes[0]))
	assert.Contains(t, out.String(), "10, 20, 50, 200")
	assert.NotContains(t, out.String(), "|", "borderless table")
}

func TestRunIndicators(t *testing.T) {
	now := time.Now().UTC()
	dir := writeCSV(t, "IBM", now, 300)

	var out bytes.Buffer
	err := runIndicators(context.Background(), &out, csvfeed.New(dir), "ibm", model.TF1Y, now)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "IBM 1Y, 300 bars")
	assert.Contains(t, text, "INDICATOR")
	for _, name := range []string{"sma-10", "sma-200", "bb.middle", "rsi", "macd.histogram"} {
		assert.Contains(t, text, name)
	}
	assert.NotContains(t, text, "not enough bars")
}

func TestRunIndicators_NoData(t *testing.T) {
	now := time.Now().UTC()
	dir := writeCSV(t, "IBM", now.AddDate(-3, 0, 0), 30)

	err := runIndicators(context.Background(), &bytes.Buffer{}, csvfeed.New(dir), "IBM", model.TF1M, now)
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
}

func TestRunExport(t *testing.T) {
	now := time.Now().UTC()
	dir := writeCSV(t, "ORCL", now, 120)
	out := t.TempDir()

	path, err := runExport(context.Background(), csvfeed.New(dir), exportOptions{
		Symbol: "orcl",
		Prefs: model.ChartPreferences{
			ChartType:      model.ChartArea,
			Timeframe:      model.TF6M,
			EnabledPeriods: []int{20},
			RSIEnabled:     true,
			VolumeEnabled:  true,
		},
		Width:  600,
		Height: 300,
		OutDir: out,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "ORCL-"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestRunExport_RejectsEmptyCanvas(t *testing.T) {
	_, err := runExport(context.Background(), csvfeed.New(t.TempDir()), exportOptions{Symbol: "X"})
	assert.Error(t, err)
}
