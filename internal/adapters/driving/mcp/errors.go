// Package mcp provides an MCP (Model Context Protocol) server adapter for sercha-context.
// It lets AI assistants retrieve assembled document context and grounded answers.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
