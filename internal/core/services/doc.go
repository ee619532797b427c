// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Ingestion runs through Importer and IngestService. Retrieval runs
// QueryExpander, Retriever, ContextAssembler and ConversationManager
// in order behind RetrievalService.
package services
