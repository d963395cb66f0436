// Package sqlite provides persistent storage backed by a local SQLite
// database. It implements the document store and the cost sink, and can
// stream stored embeddings back out to rebuild the vector index on
// startup.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/custodia-labs/copilot-core/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
	"github.com/custodia-labs/copilot-core/internal/logger"
)

// Store wraps a SQLite database and exposes the storage ports.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath and runs any
// pending migrations. The parent directory is created if missing.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// migrate applies embedded *.up.sql files newer than the recorded
// schema version, in filename order.
func (s *Store) migrate(fsys fs.FS) error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	var names []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", name, err)
		}
		if version <= current {
			continue
		}

		script, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		logger.Debug("applying migration %s", name)
		if _, err := s.db.Exec(string(script)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// DocumentStore returns the document storage port.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{db: s.db}
}

// CostSink returns the cost record sink port.
func (s *Store) CostSink() driven.CostSink {
	return &costSink{db: s.db}
}

// LoadIndexEntries streams every stored chunk with an embedding,
// suitable for rebuilding the vector index at startup.
func (s *Store) LoadIndexEntries(ctx context.Context) ([]domain.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, d.filename, c.position, c.content, c.embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL
		ORDER BY d.uploaded_at, c.document_id, c.position`)
	if err != nil {
		return nil, fmt.Errorf("loading index entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry
	for rows.Next() {
		var e domain.IndexEntry
		var blob []byte
		if err := rows.Scan(&e.ChunkID, &e.DocumentID, &e.Filename, &e.Position, &e.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning index entry: %w", err)
		}
		e.Embedding = bytesToFloat32Slice(blob)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ensure documentStore implements the interface.
var _ driven.DocumentStore = (*documentStore)(nil)

type documentStore struct {
	db *sql.DB
}

// SaveDocument upserts the document and replaces its chunks in a single
// transaction, so a failure leaves the previous state intact.
func (ds *documentStore) SaveDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	tx, err := ds.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, filename, content, uploaded_at, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			content = excluded.content,
			uploaded_at = excluded.uploaded_at,
			metadata = excluded.metadata`,
		doc.ID, doc.Filename, doc.Content, doc.UploadedAt.UTC(), string(meta)); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("clearing previous chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, start_offset, end_offset, token_estimate, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		var blob []byte
		if len(c.Embedding) > 0 {
			blob = float32SliceToBytes(c.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, doc.ID, c.Content, c.Position, c.Start, c.End, c.TokenEstimate, blob); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func (ds *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	var meta string
	err := ds.db.QueryRowContext(ctx, `
		SELECT id, filename, content, uploaded_at, metadata
		FROM documents WHERE id = ?`, id).
		Scan(&doc.ID, &doc.Filename, &doc.Content, &doc.UploadedAt, &meta)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", id, err)
	}
	return &doc, nil
}

func (ds *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := ds.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, start_offset, end_offset, token_estimate, embedding
		FROM chunks WHERE document_id = ? ORDER BY position`, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks for %s: %w", documentID, err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.Position, &c.Start, &c.End, &c.TokenEstimate, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if len(blob) > 0 {
			c.Embedding = bytesToFloat32Slice(blob)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteDocument removes the document and, through the foreign key
// cascade, its chunks. Returns the number of chunks removed.
func (ds *documentStore) DeleteDocument(ctx context.Context, id string) (int, error) {
	tx, err := ds.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var chunkCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id = ?`, id).Scan(&chunkCount); err != nil {
		return 0, fmt.Errorf("counting chunks for %s: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("deleting document %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return 0, domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	return chunkCount, nil
}

func (ds *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := ds.db.QueryContext(ctx, `
		SELECT id, filename, content, uploaded_at, metadata
		FROM documents ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		var meta string
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.Content, &doc.UploadedAt, &meta); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("parsing metadata for %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Ensure costSink implements the interface.
var _ driven.CostSink = (*costSink)(nil)

type costSink struct {
	db *sql.DB
}

// Append persists one cost record. Monetary amounts are stored as
// decimal strings to avoid float drift.
func (cs *costSink) Append(ctx context.Context, rec *domain.CostRecord) error {
	_, err := cs.db.ExecContext(ctx, `
		INSERT INTO cost_records
			(request_id, timestamp, model, input_tokens, output_tokens,
			 input_cost, output_cost, total_cost, latency_ms, success)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Timestamp.UTC(), rec.Model, rec.InputTokens, rec.OutputTokens,
		rec.InputCost.String(), rec.OutputCost.String(), rec.TotalCost.String(),
		rec.Latency.Milliseconds(), rec.Success)
	if err != nil {
		return fmt.Errorf("appending cost record: %w", err)
	}
	return nil
}

// Close is a no-op; the owning Store closes the database.
func (cs *costSink) Close() error {
	return nil
}

// Records returns stored cost records since the given time, oldest
// first. A zero time returns everything.
func (cs *costSink) Records(ctx context.Context, since time.Time) ([]domain.CostRecord, error) {
	rows, err := cs.db.QueryContext(ctx, `
		SELECT request_id, timestamp, model, input_tokens, output_tokens,
		       input_cost, output_cost, total_cost, latency_ms, success
		FROM cost_records WHERE timestamp >= ? ORDER BY timestamp`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("loading cost records: %w", err)
	}
	defer rows.Close()

	var records []domain.CostRecord
	for rows.Next() {
		var rec domain.CostRecord
		var inCost, outCost, totalCost string
		var latencyMS int64
		if err := rows.Scan(&rec.RequestID, &rec.Timestamp, &rec.Model, &rec.InputTokens, &rec.OutputTokens,
			&inCost, &outCost, &totalCost, &latencyMS, &rec.Success); err != nil {
			return nil, fmt.Errorf("scanning cost record: %w", err)
		}
		if rec.InputCost, err = decimal.NewFromString(inCost); err != nil {
			return nil, fmt.Errorf("parsing input cost: %w", err)
		}
		if rec.OutputCost, err = decimal.NewFromString(outCost); err != nil {
			return nil, fmt.Errorf("parsing output cost: %w", err)
		}
		if rec.TotalCost, err = decimal.NewFromString(totalCost); err != nil {
			return nil, fmt.Errorf("parsing total cost: %w", err)
		}
		rec.Latency = time.Duration(latencyMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// float32SliceToBytes encodes a float32 slice as little-endian bytes.
func float32SliceToBytes(floats []float32) []byte {
	out := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// bytesToFloat32Slice decodes little-endian bytes into a float32 slice.
func bytesToFloat32Slice(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
