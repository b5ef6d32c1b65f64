// Package cached puts a TTL cache in front of a candle fetcher.
package cached

import (
	"context"
	"log/slog"
	"time"

	"chartdesk/internal/model"
)

// Cache is the storage behind the fetcher. The redis CandleCache implements it.
type Cache interface {
	Get(ctx context.Context, req model.FetchRequest) (*model.CandleBatch, error)
	Set(ctx context.Context, req model.FetchRequest, batch *model.CandleBatch, ttl time.Duration) error
}

// Fetcher serves repeated requests from the cache. Request bounds are widened
// to TTL buckets so that preset timeframes, whose end moves with the clock,
// still hit; the answer is trimmed back to the requested bounds. Cache
// failures fall through to the origin.
type Fetcher struct {
	origin model.CandleFetcher
	cache  Cache
	ttl    time.Duration
	log    *slog.Logger

	// OnLookup, if set, observes every cache lookup.
	OnLookup func(hit bool)
}

// New wraps origin. A ttl below one second means one minute.
func New(origin model.CandleFetcher, cache Cache, ttl time.Duration, log *slog.Logger) *Fetcher {
	if ttl < time.Second {
		ttl = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{origin: origin, cache: cache, ttl: ttl, log: log}
}

// Bucket widens req's bounds to the TTL grid: From is floored and To is
// rounded up, so the bucket always covers the request.
func (f *Fetcher) Bucket(req model.FetchRequest) model.FetchRequest {
	step := int64(f.ttl / time.Second)
	req.From -= req.From % step
	if rem := req.To % step; rem != 0 {
		req.To += step - rem
	}
	return req
}

func (f *Fetcher) FetchCandles(ctx context.Context, want model.FetchRequest) (*model.CandleBatch, error) {
	batch, err := f.fetchBucket(ctx, f.Bucket(want))
	if err != nil {
		return nil, err
	}
	return trim(batch, want.From, want.To), nil
}

func (f *Fetcher) fetchBucket(ctx context.Context, req model.FetchRequest) (*model.CandleBatch, error) {
	batch, err := f.cache.Get(ctx, req)
	if err != nil {
		f.log.Warn("candle cache read failed", "symbol", req.Symbol, "error", err)
	}
	if batch != nil {
		f.observe(true)
		return batch, nil
	}
	f.observe(false)

	batch, err = f.origin.FetchCandles(ctx, req)
	if err != nil {
		return nil, err
	}
	// Only usable data is cached; "no_data" is retried next time.
	if batch.Status == model.StatusOK && len(batch.Times) > 0 {
		if err := f.cache.Set(ctx, req, batch, f.ttl); err != nil {
			f.log.Warn("candle cache write failed", "symbol", req.Symbol, "error", err)
		}
	}
	return batch, nil
}

// trim keeps the bars of an ok batch inside [from, to].
func trim(batch *model.CandleBatch, from, to int64) *model.CandleBatch {
	if batch == nil || batch.Status != model.StatusOK {
		return batch
	}
	candles := batch.Candles()
	kept := candles[:0:0]
	for _, c := range candles {
		if c.Time >= from && c.Time <= to {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(batch.Times) {
		return batch
	}
	return model.NewCandleBatch(kept)
}

func (f *Fetcher) observe(hit bool) {
	if f.OnLookup != nil {
		f.OnLookup(hit)
	}
}
