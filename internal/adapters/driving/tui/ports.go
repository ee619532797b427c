// Package tui provides an interactive terminal chat interface for sercha-context.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval answers chat messages.
	Retrieval driving.RetrievalService

	// Ingest lists and maintains documents. Optional.
	Ingest driving.IngestService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(retrieval driving.RetrievalService, ingest driving.IngestService) *Ports {
	return &Ports{
		Retrieval: retrieval,
		Ingest:    ingest,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
