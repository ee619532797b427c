package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input      string
		defaultVal bool
		expected   bool
	}{
		{"", true, true},
		{"", false, false},
		{"y", false, true},
		{"YES", false, true},
		{"n", true, false},
		{"No", true, false},
		{"maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, confirm(tt.input, tt.defaultVal))
		})
	}
}

func TestSettingsCmd_HasSubcommands(t *testing.T) {
	commandNames := make([]string, 0, len(settingsCmd.Commands()))
	for _, cmd := range settingsCmd.Commands() {
		commandNames = append(commandNames, cmd.Name())
	}

	for _, name := range []string{"show", "set", "keys", "wizard", "embedding", "llm"} {
		assert.Contains(t, commandNames, name)
	}
}

func TestSettingsShowCmd_Executes(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := settingsService.(*mockSettingsService)
	mock.settings.Embedding = domain.EmbeddingSettings{
		Provider: domain.AIProviderOpenAI,
		Model:    "text-embedding-3-small",
		APIKey:   "sk-1234567890abcdef",
	}

	out, err := executeCommand("settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "[Embedding]")
	assert.Contains(t, out, "Model: text-embedding-3-small")
	assert.Contains(t, out, "API Key: sk-1...cdef")
	assert.NotContains(t, out, "sk-1234567890abcdef")
	assert.Contains(t, out, "[Chunker]")
	assert.Contains(t, out, "Target size: 1000")
	assert.Contains(t, out, "Token budget: 3000")
	assert.Contains(t, out, "[Storage]")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsShowCmd_InvalidConfiguration(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	settingsService.(*mockSettingsService).validateErr = domain.ErrInvalidConfiguration

	out, err := executeCommand("settings")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning:")
	assert.Contains(t, out, "settings wizard")
}

func TestSettingsSetCmd(t *testing.T) {
	t.Run("sets value", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		out, err := executeCommand("settings", "set", "context.token_budget", "4000")

		require.NoError(t, err)
		assert.Contains(t, out, "Set context.token_budget = 4000")
		assert.Equal(t, "4000", settingsService.(*mockSettingsService).set["context.token_budget"])
	})

	t.Run("masks api keys", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		out, err := executeCommand("settings", "set", "llm.api_key", "sk-ant-1234567890")

		require.NoError(t, err)
		assert.Contains(t, out, "Set llm.api_key = sk-a...7890")
		assert.NotContains(t, out, "sk-ant-1234567890")
	})

	t.Run("service error", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()
		settingsService.(*mockSettingsService).setErr = domain.ErrInvalidInput

		_, err := executeCommand("settings", "set", "nope", "1")

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("requires key and value", func(t *testing.T) {
		_, err := executeCommand("settings", "set", "context.token_budget")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "accepts 2 arg(s)")
	})
}

func TestSettingsKeysCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("settings", "keys")

	require.NoError(t, err)
	assert.Contains(t, out, "context.token_budget\nembedding.provider\n")
}

func TestSettingsCmds_ServiceNotConfigured(t *testing.T) {
	oldService := settingsService
	settingsService = nil
	defer func() {
		settingsService = oldService
	}()

	for _, args := range [][]string{
		{"settings", "show"},
		{"settings", "set", "a", "b"},
		{"settings", "keys"},
		{"settings", "wizard"},
		{"settings", "embedding"},
		{"settings", "llm"},
	} {
		t.Run(args[1], func(t *testing.T) {
			_, err := executeCommand(args...)

			assert.Error(t, err)
			assert.Contains(t, err.Error(), "settings service not configured")
		})
	}
}

func TestSettingsProviderCmds_ReadFromInput(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		input     string
		wantOut   string
		wantModel string
		saved     func(*mockSettingsService) (domain.AIProvider, string)
	}{
		{
			name:    "embedding with default model",
			args:    []string{"settings", "embedding"},
			input:   "1\n\n",
			wantOut:   "Embedding provider configured: Ollama",
			wantModel: "nomic-embed-text",
			saved: func(m *mockSettingsService) (domain.AIProvider, string) {
				return m.settings.Embedding.Provider, m.settings.Embedding.Model
			},
		},
		{
			name:    "llm with custom model",
			args:    []string{"settings", "llm"},
			input:   "1\nqwen2.5\n",
			wantOut:   "LLM provider configured: Ollama (local) (qwen2.5)",
			wantModel: "qwen2.5",
			saved: func(m *mockSettingsService) (domain.AIProvider, string) {
				return m.settings.LLM.Provider, m.settings.LLM.Model
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestServices()
			defer cleanup()
			rootCmd.SetIn(strings.NewReader(tt.input))
			defer rootCmd.SetIn(nil)

			out, err := executeCommand(tt.args...)

			require.NoError(t, err)
			assert.Contains(t, out, "Validating configuration... OK")
			assert.Contains(t, out, tt.wantOut)
			provider, model := tt.saved(settingsService.(*mockSettingsService))
			assert.Equal(t, domain.AIProviderOllama, provider)
			assert.Equal(t, tt.wantModel, model)
		})
	}
}

func TestSettingsWizardCmd_SkipsSteps(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("n\nn\n"))
	defer rootCmd.SetIn(nil)

	out, err := executeCommand("settings", "wizard")

	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Skipped."))
	assert.Contains(t, out, "All settings are valid and saved.")
}
