package filesystem

import (
	"path/filepath"
	"strings"
)

// PathForURI converts a file:// URI back to a local path.
// Bare paths pass through unchanged.
func PathForURI(uri string) string {
	if strings.HasPrefix(uri, "file://") {
		return filepath.FromSlash(strings.TrimPrefix(uri, "file://"))
	}
	return uri
}
