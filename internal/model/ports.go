package model

import "context"

// ── Collaborator ports ──
// The chart core never talks to a data vendor or a database directly.

// CandleFetcher resolves a fetch request into a columnar candle batch.
// A non-"ok" status or empty Times is treated as no data by callers.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, req FetchRequest) (*CandleBatch, error)
}

// PreferencesStore persists per-symbol chart preferences.
type PreferencesStore interface {
	// Get returns nil, nil when the symbol has never been viewed.
	Get(ctx context.Context, symbol string) (*ChartPreferences, error)

	// Put inserts or replaces the preferences for p.Symbol.
	Put(ctx context.Context, p *ChartPreferences) error

	// Close releases underlying resources.
	Close() error
}
