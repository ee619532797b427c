// Package normalisers turns raw file bytes into plain-text documents ready for
// chunking. Format-specific normalisers live in subpackages and are selected by
// the Registry on MIME type and priority.
package normalisers
