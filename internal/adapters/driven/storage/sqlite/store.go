package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-context/internal/adapters/driven/storage/rank"
	"github.com/custodia-labs/sercha-context/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/logger"
)

// Ensure Store implements the interfaces.
var (
	_ driven.SearchBackend  = (*Store)(nil)
	_ driven.SegmentStore   = (*Store)(nil)
	_ driven.MetadataLookup = (*Store)(nil)
)

// segmentColumns are selected by every segment query, in scan order.
const segmentColumns = "s.id, s.document_id, s.idx, s.text, s.metadata, s.created_at"

// Store is a SQLite-backed segment index. It serves vector queries by
// scanning stored embeddings and keyword queries through FTS5.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sercha-context/data/segments.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha-context", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "segments.db")

	// WAL lets readers proceed while an ingest transaction is open
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Debug("Opened segment store at %s", dbPath)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations. Each migration records its own version.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_segments.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
		logger.Debug("Applied migration %s", name)
	}

	return nil
}

// ==================== Segment Store ====================

// ReplaceDocument atomically replaces every segment of a document.
func (s *Store) ReplaceDocument(ctx context.Context, documentID string, segments []domain.Segment) error {
	if documentID == "" {
		return fmt.Errorf("%w: document id is empty", domain.ErrInvalidInput)
	}
	if err := domain.ValidateSegmentIndices(segments); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting previous segments: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segments (id, document_id, idx, text, embedding, metadata, content_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := range segments {
		seg := &segments[i]
		if seg.DocumentID != documentID {
			return fmt.Errorf("%w: segment %d belongs to %q", domain.ErrInvalidInput, seg.Index, seg.DocumentID)
		}
		metadataJSON, contentType, err := encodeMetadata(seg.Metadata)
		if err != nil {
			return err
		}
		id := seg.ID
		if id == "" {
			id = seg.Key().String()
		}
		createdAt := seg.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		var embedding any
		if blob := float32SliceToBytes(seg.Embedding); blob != nil {
			embedding = blob
		}
		if _, err := stmt.ExecContext(ctx, id, documentID, seg.Index, seg.Text,
			embedding, metadataJSON, contentType, createdAt.UnixNano()); err != nil {
			return fmt.Errorf("inserting segment %d: %w", seg.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListDocuments returns a summary per stored document, ordered by document ID.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, COUNT(*), MIN(created_at),
		       MAX(CASE WHEN idx = ? THEN metadata END)
		FROM segments
		GROUP BY document_id
		ORDER BY document_id
	`, domain.MetadataSegmentIndex)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var summaries []domain.DocumentSummary
	for rows.Next() {
		var (
			summary   domain.DocumentSummary
			createdAt int64
			metadata  sql.NullString
		)
		if err := rows.Scan(&summary.DocumentID, &summary.SegmentCount, &createdAt, &metadata); err != nil {
			return nil, fmt.Errorf("scanning document summary: %w", err)
		}
		summary.CreatedAt = time.Unix(0, createdAt)
		if meta, err := decodeMetadata(metadata); err != nil {
			return nil, err
		} else if meta != nil {
			summary.Metadata = *meta
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// SetMetadata writes metadata to one segment and clears it on the others.
func (s *Store) SetMetadata(ctx context.Context, documentID string, index int, meta domain.DocumentMetadata) error {
	metadataJSON, contentType, err := encodeMetadata(&meta)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE segments SET metadata = ?, content_type = ? WHERE document_id = ? AND idx = ?",
		metadataJSON, contentType, documentID, index)
	if err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("segment %s/%d: %w", documentID, index, domain.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE segments SET metadata = NULL, content_type = NULL WHERE document_id = ? AND idx <> ?",
		documentID, index); err != nil {
		return fmt.Errorf("clearing stray metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// FindMetadata returns every segment of the document that carries metadata.
func (s *Store) FindMetadata(ctx context.Context, documentID string) ([]domain.Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+segmentColumns+" FROM segments s WHERE s.document_id = ? AND s.metadata IS NOT NULL ORDER BY s.idx",
		documentID)
	if err != nil {
		return nil, fmt.Errorf("finding metadata: %w", err)
	}
	defer rows.Close()
	return scanSegments(rows)
}

// LookupMetadata returns the metadata stored on the designated segment.
func (s *Store) LookupMetadata(ctx context.Context, documentID string) (*domain.DocumentMetadata, error) {
	var metadata sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT metadata FROM segments WHERE document_id = ? AND idx = ?",
		documentID, domain.MetadataSegmentIndex).Scan(&metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("metadata for %s: %w", documentID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up metadata: %w", err)
	}

	meta, err := decodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("metadata for %s: %w", documentID, domain.ErrNotFound)
	}
	return meta, nil
}

// ==================== Search Backend ====================

// VectorQuery scans every stored embedding that passes the filters and
// returns the k most cosine-similar segments.
func (s *Store) VectorQuery(ctx context.Context, vector []float32, filters domain.SearchFilters, k int) ([]driven.SegmentHit, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	where, args := filterClause(filters)
	query := "SELECT " + segmentColumns + ", s.embedding FROM segments s WHERE s.embedding IS NOT NULL" + where
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	top := rank.NewTopK(k)
	skipped := 0
	for rows.Next() {
		var blob []byte
		seg, err := scanSegment(rows, &blob)
		if err != nil {
			return nil, err
		}
		emb := bytesToFloat32Slice(blob)
		if len(emb) != len(vector) {
			skipped++
			continue
		}
		top.Push(driven.SegmentHit{Segment: seg, Score: rank.Cosine(vector, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	if skipped > 0 {
		logger.Debug("Vector query skipped %d segments with a different dimension", skipped)
	}
	return top.Sorted(), nil
}

// LexicalQuery returns the k best FTS5 matches for any term of text.
// BM25 ranks are mapped onto [0,1).
func (s *Store) LexicalQuery(ctx context.Context, text string, filters domain.SearchFilters, k int) ([]driven.SegmentHit, error) {
	match := matchExpression(text)
	if k <= 0 || match == "" {
		return nil, nil
	}

	where, args := filterClause(filters)
	query := "SELECT " + segmentColumns + ", bm25(segments_fts) AS score" +
		" FROM segments_fts JOIN segments s ON s.rowid = segments_fts.rowid" +
		" WHERE segments_fts MATCH ?" + where +
		" ORDER BY score, s.document_id, s.idx LIMIT ?"
	args = append([]any{match}, args...)
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	defer rows.Close()

	var hits []driven.SegmentHit
	for rows.Next() {
		var bm25 float64
		seg, err := scanSegment(rows, &bm25)
		if err != nil {
			return nil, err
		}
		// FTS5 bm25 is negated: more negative is a better match
		hits = append(hits, driven.SegmentHit{Segment: seg, Score: rank.Saturate(-bm25)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	return hits, nil
}

// FetchSegments returns the segments of a document within r, ascending.
func (s *Store) FetchSegments(ctx context.Context, documentID string, r domain.IndexRange) ([]domain.Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+segmentColumns+" FROM segments s WHERE s.document_id = ? AND s.idx BETWEEN ? AND ? ORDER BY s.idx",
		documentID, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("fetching segments: %w", err)
	}
	defer rows.Close()
	return scanSegments(rows)
}

// DeleteDocument removes every segment of the document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM segments WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(n), nil
}

// ==================== Helper Functions ====================

// filterClause returns an AND-prefixed condition on alias s and its arguments.
// Content types are matched against the document's metadata segment.
func filterClause(f domain.SearchFilters) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	if len(f.DocumentIDs) > 0 {
		b.WriteString(" AND s.document_id IN (" + placeholders(len(f.DocumentIDs)) + ")")
		for _, id := range f.DocumentIDs {
			args = append(args, id)
		}
	}
	if len(f.ContentTypes) > 0 {
		b.WriteString(" AND s.document_id IN (SELECT document_id FROM segments WHERE content_type IN (" +
			placeholders(len(f.ContentTypes)) + "))")
		for _, ct := range f.ContentTypes {
			args = append(args, ct)
		}
	}
	return b.String(), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// matchExpression turns free text into an FTS5 query matching any of its terms.
func matchExpression(text string) string {
	terms := rank.Terms(text)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}

func encodeMetadata(meta *domain.DocumentMetadata) (any, any, error) {
	if meta == nil {
		return nil, nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling metadata: %w", err)
	}
	var contentType any
	if meta.ContentType != "" {
		contentType = meta.ContentType
	}
	return string(data), contentType, nil
}

func decodeMetadata(raw sql.NullString) (*domain.DocumentMetadata, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var meta domain.DocumentMetadata
	if err := json.Unmarshal([]byte(raw.String), &meta); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	return &meta, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSegment scans segmentColumns followed by any extra destinations.
func scanSegment(row rowScanner, extra ...any) (domain.Segment, error) {
	var (
		seg       domain.Segment
		metadata  sql.NullString
		createdAt int64
	)
	dest := append([]any{&seg.ID, &seg.DocumentID, &seg.Index, &seg.Text, &metadata, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return seg, fmt.Errorf("scanning segment: %w", err)
	}
	seg.CreatedAt = time.Unix(0, createdAt)
	meta, err := decodeMetadata(metadata)
	if err != nil {
		return seg, err
	}
	seg.Metadata = meta
	return seg, nil
}

func scanSegments(rows *sql.Rows) ([]domain.Segment, error) {
	var segments []domain.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
