package driven

import "time"

// ConfigStore holds settings as flat dot-path keys such as
// "retrieval.vector_weight". Typed getters return the zero value when a key is
// missing or holds another type, so callers layer defaults on top.
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	GetString(key string) string

	// GetInt accepts any integer representation the backing format produces.
	GetInt(key string) int

	// GetFloat also accepts integers, so "vector_weight = 1" reads as 1.0.
	GetFloat(key string) float64

	// GetDuration parses Go duration strings such as "10m".
	GetDuration(key string) time.Duration

	GetBool(key string) bool

	// GetStringSlice keeps only the string elements of an array.
	GetStringSlice(key string) []string

	// Set stores a value and persists it before returning.
	Set(key string, value any) error

	// Save persists every value.
	Save() error

	// Load replaces the values with what is persisted.
	Load() error

	// Path describes where values are persisted.
	Path() string
}
