// Package marketdata selects and instruments the candle source the chart
// loads from. The sources themselves live in the finnhub, csvfeed and
// cached subpackages.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"chartdesk/internal/marketdata/csvfeed"
	"chartdesk/internal/marketdata/finnhub"
	"chartdesk/internal/model"
)

// Provider names accepted by New.
const (
	ProviderFinnhub = "finnhub"
	ProviderCSV     = "csv"
)

// Options selects and configures a provider.
type Options struct {
	Provider string
	BaseURL  string
	APIKey   string
	CSVDir   string
	Timeout  time.Duration
}

// New builds the fetcher named by opts.Provider.
func New(opts Options) (model.CandleFetcher, error) {
	switch opts.Provider {
	case ProviderFinnhub, "":
		return finnhub.New(opts.BaseURL, opts.APIKey, opts.Timeout), nil
	case ProviderCSV:
		return csvfeed.New(opts.CSVDir), nil
	default:
		return nil, fmt.Errorf("unknown data provider %q", opts.Provider)
	}
}

// ObserveFunc receives the wall time of one fetch.
type ObserveFunc func(source string, d time.Duration)

type observed struct {
	next    model.CandleFetcher
	source  string
	observe ObserveFunc
}

// Observe wraps next so every fetch is timed under source.
func Observe(next model.CandleFetcher, source string, fn ObserveFunc) model.CandleFetcher {
	if fn == nil {
		return next
	}
	return &observed{next: next, source: source, observe: fn}
}

func (o *observed) FetchCandles(ctx context.Context, req model.FetchRequest) (*model.CandleBatch, error) {
	start := time.Now()
	batch, err := o.next.FetchCandles(ctx, req)
	o.observe(o.source, time.Since(start))
	return batch, err
}
