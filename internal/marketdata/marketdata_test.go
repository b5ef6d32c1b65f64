package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartdesk/internal/marketdata/csvfeed"
	"chartdesk/internal/marketdata/finnhub"
	"chartdesk/internal/model"
)

func TestNew_SelectsProvider(t *testing.T) {
	f, err := New(Options{Provider: ProviderCSV, CSVDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &csvfeed.Feed{}, f)

	f, err = New(Options{Provider: ProviderFinnhub, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &finnhub.Client{}, f)

	_, err = New(Options{Provider: "bloomberg"})
	assert.Error(t, err)
}

type stubFetcher struct{}

func (stubFetcher) FetchCandles(context.Context, model.FetchRequest) (*model.CandleBatch, error) {
	return &model.CandleBatch{Status: "no_data"}, nil
}

func TestObserve_ReportsSource(t *testing.T) {
	var got []string
	f := Observe(stubFetcher{}, "csv", func(source string, d time.Duration) {
		assert.GreaterOrEqual(t, d, time.Duration(0))
		got = append(got, source)
	})
	_, err := f.FetchCandles(context.Background(), model.FetchRequest{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, []string{"csv"}, got)

	assert.Equal(t, stubFetcher{}, Observe(stubFetcher{}, "csv", nil))
}
