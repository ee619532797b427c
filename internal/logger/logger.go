// Package logger writes leveled diagnostics to stderr. Debug, Info and Section
// lines trace the retrieval pipeline and appear only with --verbose; warnings
// and errors always appear.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose switches the verbose-only levels on or off.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether verbose output is on.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects all log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// write prints one line. Lines marked verboseOnly are dropped unless verbose is on.
func write(verboseOnly bool, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verboseOnly && !verbose {
		return
	}
	fmt.Fprintf(output, prefix+format+"\n", args...)
}

// Debug logs pipeline detail such as scores and token counts.
func Debug(format string, args ...any) { write(true, "[DEBUG] ", format, args...) }

// Info logs progress such as documents imported.
func Info(format string, args ...any) { write(true, "[INFO] ", format, args...) }

// Section starts a named block of verbose output.
func Section(name string) { write(true, "\n=== ", "%s ===", name) }

// Warn logs a recoverable problem, such as falling back to keyword search.
func Warn(format string, args ...any) { write(false, "[WARN] ", format, args...) }

// Error logs a failure the user should see.
func Error(format string, args ...any) { write(false, "[ERROR] ", format, args...) }
