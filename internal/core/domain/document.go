package domain

import "time"

// MetadataSegmentIndex is the index of the segment that carries a document's metadata.
// Every other segment of the document has nil Metadata and resolves it through this one.
const MetadataSegmentIndex = 0

// Document is a source document handed to ingestion.
// Its Content is the already-extracted plain text; format parsing happens upstream.
type Document struct {
	// ID is the unique identifier for the document.
	// All segments produced from the document share it as DocumentID.
	ID string

	// Title is the human-readable title.
	Title string

	// Content is the full extracted text before chunking.
	Content string

	// Metadata describes the original file.
	Metadata DocumentMetadata

	// CreatedAt is when the document was ingested.
	CreatedAt time.Time
}

// DocumentMetadata describes the original file a document was extracted from.
// It is stored once per document, on the segment at MetadataSegmentIndex.
type DocumentMetadata struct {
	// Filename is the original file name.
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`

	// Title is the display title.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// ContentType is the MIME type of the original file.
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`

	// Size is the original file size in bytes.
	Size int64 `json:"size,omitempty" yaml:"size,omitempty"`

	// StorageLocator points at the raw file in an external blob store, if any.
	StorageLocator string `json:"storage_locator,omitempty" yaml:"storage_locator,omitempty"`
}

// IsZero reports whether no metadata field is set.
func (m DocumentMetadata) IsZero() bool {
	return m == DocumentMetadata{}
}

// DocumentSummary is a listing entry for an ingested document.
type DocumentSummary struct {
	// DocumentID identifies the document.
	DocumentID string

	// Metadata is resolved from the designated segment.
	Metadata DocumentMetadata

	// SegmentCount is the number of stored segments.
	SegmentCount int

	// CreatedAt is when the first segment was created.
	CreatedAt time.Time
}
