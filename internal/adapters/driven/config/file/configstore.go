package file

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-context/internal/adapters/driven/config/values"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

const (
	defaultDirName = ".sercha-context"
	fileName       = "config.toml"
)

// ConfigStore keeps settings in a TOML file. Keys are flat dot paths in memory
// ("retrieval.vector_weight") and nested tables on disk:
//
//	[retrieval]
//	vector_weight = 0.7
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	data     map[string]any
}

// NewConfigStore opens dir/config.toml, creating dir if needed. An empty dir
// means ~/.sercha-context. A missing file is an empty configuration.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate home directory: %w", err)
		}
		dir = filepath.Join(home, defaultDirName)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	s := &ConfigStore{filePath: filepath.Join(dir, fileName)}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the raw value for key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok
}

func (s *ConfigStore) raw(key string) any {
	v, _ := s.Get(key)
	return v
}

// GetString returns the string at key, or "".
func (s *ConfigStore) GetString(key string) string { return values.String(s.raw(key)) }

// GetInt returns the integer at key. TOML integers arrive as int64.
func (s *ConfigStore) GetInt(key string) int { return values.Int(s.raw(key)) }

// GetFloat returns the number at key, so "vector_weight = 1" reads as 1.0.
func (s *ConfigStore) GetFloat(key string) float64 { return values.Float(s.raw(key)) }

// GetDuration parses a Go duration string ("10m"). Bare integers are seconds.
func (s *ConfigStore) GetDuration(key string) time.Duration { return values.Duration(s.raw(key)) }

// GetBool returns the boolean at key, or false.
func (s *ConfigStore) GetBool(key string) bool { return values.Bool(s.raw(key)) }

// GetStringSlice returns the string elements of the array at key.
func (s *ConfigStore) GetStringSlice(key string) []string { return values.StringSlice(s.raw(key)) }

// Set stores value under key and rewrites the file.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.save()
}

// Save rewrites the file from memory.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save writes a temporary file and renames it over the config so a crash never
// leaves a truncated file. Callers hold mu.
func (s *ConfigStore) save() error {
	encoded, err := toml.Marshal(nestMap(s.data))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.filePath), fileName+".*")
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.filePath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load replaces the in-memory settings with the file contents.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		s.data = make(map[string]any)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var tree map[string]any
	if err := toml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("parse %s: %w", s.filePath, err)
	}
	s.data = flattenMap(tree, "")
	return nil
}

// nestMap converts dot-notation keys into nested tables, the inverse of flattenMap.
// A key whose path collides with a value already placed is kept as a quoted dotted key.
func nestMap(flat map[string]any) map[string]any {
	root := make(map[string]any)

	for _, key := range slices.Sorted(maps.Keys(flat)) {
		parts := strings.Split(key, ".")
		node := root
		nested := true
		for _, part := range parts[:len(parts)-1] {
			child, exists := node[part]
			if !exists {
				m := make(map[string]any)
				node[part] = m
				node = m
				continue
			}
			m, isMap := child.(map[string]any)
			if !isMap {
				nested = false
				break
			}
			node = m
		}

		leaf := parts[len(parts)-1]
		if _, taken := node[leaf]; !nested || taken {
			root[key] = flat[key]
			continue
		}
		node[leaf] = flat[key]
	}

	return root
}

// flattenMap turns nested tables into dot-path keys: {"a": {"b": 1}} becomes {"a.b": 1}.
func flattenMap(tree map[string]any, prefix string) map[string]any {
	flat := make(map[string]any, len(tree))
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if table, ok := value.(map[string]any); ok {
			maps.Copy(flat, flattenMap(table, key))
			continue
		}
		flat[key] = value
	}
	return flat
}

// Path returns the location of config.toml.
func (s *ConfigStore) Path() string {
	return s.filePath
}
