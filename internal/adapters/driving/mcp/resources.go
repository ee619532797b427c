package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// URIScheme is the custom URI scheme for sercha-context resources.
	uriScheme = "sercha-context://"
)

// documentInfo is the JSON shape of a stored document.
type documentInfo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Segments    int       `json:"segments"`
	CreatedAt   time.Time `json:"created_at"`
}

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "List of all ingested documents",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document",
		Description: "Metadata and segment count of one ingested document",
		MIMEType:    "application/json",
	}, s.handleDocumentResource)
}

// handleDocumentsResource returns every ingested document.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	infos, err := s.listDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(req.Params.URI, infos)
}

// handleDocumentResource returns a single document.
func (s *Server) handleDocumentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docID := extractDocumentID(req.Params.URI)
	if docID == "" || s.ports.Ingest == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	infos, err := s.listDocuments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if infos[i].ID == docID {
			return jsonResult(req.Params.URI, infos[i])
		}
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

func (s *Server) listDocuments(ctx context.Context) ([]documentInfo, error) {
	infos := []documentInfo{}
	if s.ports.Ingest == nil {
		return infos, nil
	}

	docs, err := s.ports.Ingest.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	for i := range docs {
		infos = append(infos, documentInfo{
			ID:          docs[i].DocumentID,
			Title:       docs[i].Metadata.Title,
			Filename:    docs[i].Metadata.Filename,
			ContentType: docs[i].Metadata.ContentType,
			Segments:    docs[i].SegmentCount,
			CreatedAt:   docs[i].CreatedAt,
		})
	}
	return infos, nil
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractDocumentID extracts the document ID from a URI like sercha-context://documents/{documentId}.
func extractDocumentID(uri string) string {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
