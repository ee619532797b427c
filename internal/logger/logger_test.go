package logger

import (
	"bytes"
	"os"
	"testing"
)

func capture(t *testing.T, v bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(v)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	if IsVerbose() {
		t.Fatal("expected verbose off")
	}
	SetVerbose(true)
	if !IsVerbose() {
		t.Fatal("expected verbose on")
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name    string
		log     func()
		verbose string
		quiet   string
	}{
		{"debug", func() { Debug("score %.2f", 0.5) }, "[DEBUG] score 0.50\n", ""},
		{"info", func() { Info("imported %d", 3) }, "[INFO] imported 3\n", ""},
		{"section", func() { Section("Retrieve") }, "\n=== Retrieve ===\n", ""},
		{"warn", func() { Warn("embedder down: %s", "timeout") }, "[WARN] embedder down: timeout\n", "[WARN] embedder down: timeout\n"},
		{"error", func() { Error("failed") }, "[ERROR] failed\n", "[ERROR] failed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name+" verbose", func(t *testing.T) {
			buf := capture(t, true)
			tt.log()
			if got := buf.String(); got != tt.verbose {
				t.Errorf("got %q, want %q", got, tt.verbose)
			}
		})
		t.Run(tt.name+" quiet", func(t *testing.T) {
			buf := capture(t, false)
			tt.log()
			if got := buf.String(); got != tt.quiet {
				t.Errorf("got %q, want %q", got, tt.quiet)
			}
		})
	}
}
