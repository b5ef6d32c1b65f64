// Package prefs loads and saves per-symbol chart preferences, falling back to
// global defaults for symbols that have never been viewed.
package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chartdesk/internal/model"
)

// DefaultsFunc returns the global defaults for a symbol.
type DefaultsFunc func(symbol string) model.ChartPreferences

// Service wraps a store with defaults and normalisation.
type Service struct {
	store    model.PreferencesStore
	defaults DefaultsFunc
	log      *slog.Logger
	now      func() time.Time

	// OnSave, if set, is called after every successful write.
	OnSave func(p model.ChartPreferences)

	// OnSaveError, if set, is called when the store rejects a write.
	OnSaveError func(err error)
}

// NewService creates a preference service.
func NewService(store model.PreferencesStore, defaults DefaultsFunc, log *slog.Logger) *Service {
	if defaults == nil {
		defaults = BuiltinDefaults
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, defaults: defaults, log: log, now: time.Now}
}

// BuiltinDefaults is candlestick, 1Y, SMA 20/50 and volume.
func BuiltinDefaults(symbol string) model.ChartPreferences {
	p := model.ChartPreferences{
		Symbol:         symbol,
		ChartType:      model.ChartCandlestick,
		Timeframe:      model.TF1Y,
		EnabledPeriods: []int{20, 50},
		VolumeEnabled:  true,
	}
	p.Normalize()
	return p
}

// Load returns the stored preferences for symbol. A symbol seen for the first
// time gets the defaults, which are written back so the record exists from
// then on. Store failures degrade to defaults and are only logged.
func (s *Service) Load(ctx context.Context, symbol string) model.ChartPreferences {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	stored, err := s.store.Get(ctx, symbol)
	if err != nil {
		s.log.Warn("preferences load failed, using defaults", "symbol", symbol, "error", err)
		return s.defaultsFor(symbol)
	}
	if stored != nil {
		p := stored.Clone()
		p.Symbol = symbol
		p.Normalize()
		return p
	}

	p := s.defaultsFor(symbol)
	if err := s.Save(ctx, &p); err != nil {
		s.log.Warn("preferences create failed", "symbol", symbol, "error", err)
	}
	return p
}

// Save normalises p, stamps UpdatedAt and writes it.
func (s *Service) Save(ctx context.Context, p *model.ChartPreferences) error {
	p.Normalize()
	if p.Symbol == "" {
		return fmt.Errorf("save preferences: empty symbol")
	}
	p.UpdatedAt = s.now().UTC().Truncate(time.Second)
	if err := s.store.Put(ctx, p); err != nil {
		if s.OnSaveError != nil {
			s.OnSaveError(err)
		}
		return fmt.Errorf("save preferences %s: %w", p.Symbol, err)
	}
	s.log.Debug("preferences saved", "symbol", p.Symbol, "chart_type", p.ChartType.String(), "timeframe", p.Timeframe)
	if s.OnSave != nil {
		s.OnSave(p.Clone())
	}
	return nil
}

func (s *Service) defaultsFor(symbol string) model.ChartPreferences {
	p := s.defaults(symbol).Clone()
	p.Symbol = symbol
	p.Normalize()
	return p
}
