// Package csvfeed serves candles from per-symbol CSV files, one file per
// symbol named <SYMBOL>.csv with a header of time,open,high,low,close,volume.
// The file's bar size is used as is; the requested resolution is ignored.
package csvfeed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"chartdesk/internal/model"
)

type csvCandle struct {
	Time   string  `csv:"time"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts unix seconds or one of timeLayouts (UTC).
func parseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unrecognised time %q", s)
}

// Feed implements model.CandleFetcher over a directory of CSV files.
type Feed struct {
	dir string
}

// New returns a feed reading from dir.
func New(dir string) *Feed {
	return &Feed{dir: dir}
}

// Path returns the file backing symbol.
func (f *Feed) Path(symbol string) string {
	return filepath.Join(f.dir, strings.ToUpper(symbol)+".csv")
}

// FetchCandles returns the rows of the symbol's file inside [req.From, req.To].
// A range with no rows yields a "no_data" batch.
func (f *Feed) FetchCandles(ctx context.Context, req model.FetchRequest) (*model.CandleBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path(req.Symbol))
	if err != nil {
		return nil, fmt.Errorf("csvfeed: %w", err)
	}
	defer file.Close()

	var rows []*csvCandle
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("csvfeed: parse %s: %w", file.Name(), err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		ts, err := parseTime(row.Time)
		if err != nil {
			return nil, fmt.Errorf("csvfeed: %s row %d: %w", file.Name(), i+2, err)
		}
		if ts < req.From || ts > req.To {
			continue
		}
		candles = append(candles, model.Candle{
			Time:   ts,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}
	if len(candles) == 0 {
		return &model.CandleBatch{Status: "no_data"}, nil
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return model.NewCandleBatch(candles), nil
}
