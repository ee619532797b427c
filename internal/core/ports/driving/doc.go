// Package driving declares what the CLI, MCP server and chat TUI call into:
// retrieval, ingest, import and settings. internal/core/services implements them.
package driving
