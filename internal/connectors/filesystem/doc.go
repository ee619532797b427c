// Package filesystem reads local files for ingestion and watches them for
// changes with fsnotify.
package filesystem
