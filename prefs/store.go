// Package prefs holds user settings as a flat key/value mapping of strings
// with typed accessors over a durable backend.
package prefs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Persisted keys
const (
	KeyTheme            = "theme"
	KeyBackground       = "bg"
	KeyBackgroundCustom = "bgCustom"
	KeyPro              = "pro"
	KeyAlarmTime        = "alarmTime"
	KeyAlarmSound       = "alarmSound"
	KeyAlarmVolume      = "alarmVolume"
	KeyStopKey          = "stopKey"
	KeyZone             = "zone"
)

// Backend is the durable side of the store.
type Backend interface {
	Load(ctx context.Context) (map[string]string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Store caches every value in memory and writes changes through to its backend.
type Store struct {
	backend Backend

	mu     sync.RWMutex
	values map[string]string
}

// Open loads all values from backend.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	values, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	if values == nil {
		values = make(map[string]string)
	}
	return &Store{backend: backend, values: values}, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Get returns the value for key or def when absent.
func (s *Store) Get(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Set stores value under key. An empty value removes the key.
func (s *Store) Set(key, value string) error {
	if value == "" {
		return s.Delete(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Put(context.Background(), key, value); err != nil {
		return fmt.Errorf("failed to save preference '%s': %w", key, err)
	}
	s.values[key] = value
	return nil
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	if err := s.backend.Delete(context.Background(), key); err != nil {
		return fmt.Errorf("failed to delete preference '%s': %w", key, err)
	}
	delete(s.values, key)
	return nil
}

// Float parses the value for key, returning def when absent or malformed.
func (s *Store) Float(key string, def float64) float64 {
	v, err := strconv.ParseFloat(s.Get(key, ""), 64)
	if err != nil {
		return def
	}
	return v
}

// SetFloat stores f as decimal text.
func (s *Store) SetFloat(key string, f float64) error {
	return s.Set(key, strconv.FormatFloat(f, 'f', -1, 64))
}

// Bool reports whether key holds the literal "true".
func (s *Store) Bool(key string) bool {
	return s.Get(key, "") == "true"
}

// SetBool stores "true" or removes the key.
func (s *Store) SetBool(key string, b bool) error {
	if b {
		return s.Set(key, "true")
	}
	return s.Delete(key)
}

// Enum returns the value for key when it is one of allowed, otherwise def.
func (s *Store) Enum(key string, allowed []string, def string) string {
	return OneOf(s.Get(key, def), allowed, def)
}

// Volume returns the value for key clamped to [0,1].
func (s *Store) Volume(key string, def float64) float64 {
	return ClampVolume(s.Float(key, def))
}

// SetVolume clamps v to [0,1] before storing it.
func (s *Store) SetVolume(key string, v float64) error {
	return s.SetFloat(key, ClampVolume(v))
}

// All returns a copy of every stored value.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ClampVolume limits v to [0,1].
func ClampVolume(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// OneOf returns v if it is in allowed, otherwise def.
func OneOf(v string, allowed []string, def string) string {
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}
