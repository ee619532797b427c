package file

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed defaults/*.txt defaults/README.md
var defaultFiles embed.FS

// defaultPrompts maps prompt names to the built-in templates, trimmed.
var defaultPrompts = loadDefaults()

func loadDefaults() map[string]string {
	names := []string{driven.PromptQueryExpansion, driven.PromptAnswerSystem, driven.PromptHistoryOnlySystem}
	prompts := make(map[string]string, len(names))
	for _, name := range names {
		data, err := defaultFiles.ReadFile("defaults/" + name + ".txt")
		if err != nil {
			panic(fmt.Sprintf("missing built-in prompt %s: %v", name, err))
		}
		prompts[name] = strings.TrimSpace(string(data))
	}
	return prompts
}

// PromptStore serves prompt templates from <dir>/<name>.txt so users can edit
// them. The directory is seeded with the built-in templates on first Load, and
// a template that is missing, unreadable or has the wrong placeholders falls
// back to the built-in one.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore returns a store rooted at dir, or ~/.sercha-context/prompts
// when dir is empty. It does no I/O.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate home directory: %w", err)
		}
		dir = filepath.Join(home, defaultDirName, "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the template for name. Only names without a built-in default
// can fail.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(func() { s.seedErr = s.seed() })

	builtin, known := defaultPrompts[name]
	if s.seedErr != nil {
		if known {
			return builtin, nil
		}
		return "", fmt.Errorf("prompt %q: %w", name, s.seedErr)
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	prompt, err := s.read(name)
	switch {
	case err != nil && !known:
		return "", fmt.Errorf("prompt %q: %w", name, err)
	case err != nil:
		prompt = builtin
	case known && placeholders(prompt) != placeholders(builtin):
		logger.Warn("Prompt %s has placeholders %q, expected %q; using default",
			name, placeholders(prompt), placeholders(builtin))
		prompt = builtin
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if winner, ok := s.cache[name]; ok {
		return winner, nil
	}
	s.cache[name] = prompt
	return prompt, nil
}

// Reload forgets cached templates so edits on disk are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// seed copies every built-in file the user does not already have.
func (s *PromptStore) seed() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}

	return fs.WalkDir(defaultFiles, "defaults", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		target := filepath.Join(s.dir, d.Name())
		if _, err := os.Stat(target); !errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		data, err := defaultFiles.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0600); err != nil {
			return fmt.Errorf("write %s: %w", d.Name(), err)
		}
		return nil
	})
}

// placeholders returns the fmt verbs of a template in order, e.g. "%d%s%s".
// Escaped percent signs are ignored.
func placeholders(template string) string {
	var b strings.Builder
	for i := 0; i < len(template)-1; i++ {
		if template[i] != '%' {
			continue
		}
		i++
		if template[i] != '%' {
			b.WriteByte('%')
			b.WriteByte(template[i])
		}
	}
	return b.String()
}
