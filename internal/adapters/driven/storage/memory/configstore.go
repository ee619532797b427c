package memory

import (
	"maps"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-context/internal/adapters/driven/config/values"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in memory only. It backs tests and runs that
// must not touch the user's config file.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore returns an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{values: make(map[string]any)}
}

// NewConfigStoreFrom returns a store seeded with a copy of initial.
func NewConfigStoreFrom(initial map[string]any) *ConfigStore {
	s := NewConfigStore()
	maps.Copy(s.values, initial)
	return s
}

// Get returns the raw value for key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *ConfigStore) raw(key string) any {
	v, _ := s.Get(key)
	return v
}

func (s *ConfigStore) GetString(key string) string { return values.String(s.raw(key)) }

func (s *ConfigStore) GetInt(key string) int { return values.Int(s.raw(key)) }

func (s *ConfigStore) GetFloat(key string) float64 { return values.Float(s.raw(key)) }

func (s *ConfigStore) GetDuration(key string) time.Duration { return values.Duration(s.raw(key)) }

func (s *ConfigStore) GetBool(key string) bool { return values.Bool(s.raw(key)) }

func (s *ConfigStore) GetStringSlice(key string) []string { return values.StringSlice(s.raw(key)) }

// Set stores value under key. It never fails.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Save is a no-op.
func (s *ConfigStore) Save() error { return nil }

// Load is a no-op.
func (s *ConfigStore) Load() error { return nil }

// Path reports ":memory:" in place of a file path.
func (s *ConfigStore) Path() string { return ":memory:" }
