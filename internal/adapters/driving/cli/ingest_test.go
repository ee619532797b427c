package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest [paths...]", ingestCmd.Use)
}

func TestIngestCmd_RequiresPath(t *testing.T) {
	_, err := executeCommand("ingest")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestIngestCmd_PrintsResults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("ingest", "/notes", "/more")

	require.NoError(t, err)
	assert.Contains(t, out, "created  /notes/backup.md (4 segments)")
	assert.Contains(t, out, "skipped  /notes/logo.png")
	assert.Contains(t, out, "Imported 2, skipped 2, failed 0 (8 segments)")
	assert.Equal(t, []string{"/notes", "/more"}, importService.(*mockImportService).imported)
	assert.NotContains(t, out, "Watching")
}

func TestIngestCmd_Watch(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("ingest", "--watch", "/notes")

	require.NoError(t, err)
	assert.Contains(t, out, "Watching for changes")
	assert.Equal(t, []string{"/notes"}, importService.(*mockImportService).watched)
}

func TestIngestCmd_WatchError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	importService.(*mockImportService).watchErr = errMockService

	_, err := executeCommand("ingest", "-w", "/notes")

	assert.ErrorIs(t, err, errMockService)
}

func TestIngestCmd_SingleFileFlags(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "guide.md")
	require.NoError(t, os.WriteFile(file, []byte("# Guide"), 0o600))

	t.Run("file accepts title and id", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		_, err := executeCommand("ingest", "--title", "Guide", "--id", "guide", file)

		require.NoError(t, err)
		opts := importService.(*mockImportService).lastOpts
		assert.Equal(t, "Guide", opts.Title)
		assert.Equal(t, "guide", opts.DocumentID)
	})

	t.Run("directory rejected", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		_, err := executeCommand("ingest", "--title", "Guide", dir)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be used with a directory")
		assert.Empty(t, importService.(*mockImportService).imported)
	})

	t.Run("several paths rejected", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		_, err := executeCommand("ingest", "--id", "guide", file, file)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one file")
	})

	t.Run("missing path rejected", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		_, err := executeCommand("ingest", "--id", "guide", filepath.Join(dir, "missing.md"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot access")
	})
}

func TestIngestCmd_ServiceNotConfigured(t *testing.T) {
	oldService := importService
	importService = nil
	defer func() {
		importService = oldService
	}()

	_, err := executeCommand("ingest", "/notes")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "import service not configured")
}

func TestIngestCmd_ServiceError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	importService.(*mockImportService).err = errMockService

	_, err := executeCommand("ingest", "/notes")

	assert.ErrorIs(t, err, errMockService)
	assert.Contains(t, err.Error(), "failed to import /notes")
}
