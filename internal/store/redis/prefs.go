package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"chartdesk/internal/model"
)

const prefsKeyPrefix = "chart:prefs:"

// PrefsKey returns the redis key holding a symbol's preferences.
func PrefsKey(symbol string) string {
	return prefsKeyPrefix + strings.ToUpper(symbol)
}

// PreferencesStore keeps one JSON document per symbol. Preferences are never
// deleted, so keys carry no TTL.
type PreferencesStore struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	timeout time.Duration
}

// NewPreferencesStore wraps an existing client.
func NewPreferencesStore(client *goredis.Client, breaker *CircuitBreaker) *PreferencesStore {
	if breaker == nil {
		breaker = NewCircuitBreaker("redis-prefs", 5, 10*time.Second)
	}
	return &PreferencesStore{client: client, breaker: breaker, timeout: 2 * time.Second}
}

// Breaker exposes the breaker for health reporting.
func (s *PreferencesStore) Breaker() *CircuitBreaker { return s.breaker }

// Get implements model.PreferencesStore.
func (s *PreferencesStore) Get(ctx context.Context, symbol string) (*model.ChartPreferences, error) {
	var data []byte
	err := s.breaker.Execute(func() error {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		b, err := s.client.Get(cctx, PrefsKey(symbol)).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		data = b
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("redis get prefs %s: %w", symbol, err)
	}
	if data == nil {
		return nil, nil
	}
	var p model.ChartPreferences
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode prefs %s: %w", symbol, err)
	}
	return &p, nil
}

// Put implements model.PreferencesStore.
func (s *PreferencesStore) Put(ctx context.Context, p *model.ChartPreferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prefs %s: %w", p.Symbol, err)
	}
	return s.breaker.Execute(func() error {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.client.Set(cctx, PrefsKey(p.Symbol), data, 0).Err(); err != nil {
			return fmt.Errorf("redis set prefs %s: %w", p.Symbol, err)
		}
		return nil
	})
}

// Close closes the underlying client.
func (s *PreferencesStore) Close() error {
	return s.client.Close()
}
