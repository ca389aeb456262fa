package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite" // cgo-free driver

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

var _ vectorstore.SnapshotStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS snapshot_meta (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	fingerprint TEXT    NOT NULL,
	embedder    TEXT    NOT NULL,
	dimension   INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshot_entries (
	position INTEGER PRIMARY KEY,
	chunk_id INTEGER NOT NULL UNIQUE,
	ordinal  INTEGER NOT NULL,
	source   TEXT    NOT NULL,
	text     TEXT    NOT NULL,
	vector   BLOB    NOT NULL
);`

// Store keeps one index snapshot in a SQLite database file.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma failed: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema failed: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Save replaces the stored snapshot in a single transaction.
func (s *Store) Save(ctx context.Context, snap vectorstore.Snapshot) error {
	for i, e := range snap.Entries {
		if len(e.Vector) != snap.Dimension {
			return &domain.DimensionMismatchError{Want: snap.Dimension, Got: len(e.Vector), Position: i}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_entries"); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (id, fingerprint, embedder, dimension, created_at) VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET fingerprint = excluded.fingerprint, embedder = excluded.embedder,
		 dimension = excluded.dimension, created_at = excluded.created_at`,
		snap.Fingerprint, snap.Embedder, snap.Dimension, time.Now().Unix()); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO snapshot_entries (position, chunk_id, ordinal, source, text, vector) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, e := range snap.Entries {
		if _, err := stmt.ExecContext(ctx, i, e.Chunk.ID, e.Chunk.Ordinal, e.Chunk.Source, e.Chunk.Text, encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Load returns the stored snapshot, or vectorstore.ErrNoSnapshot if none was saved.
func (s *Store) Load(ctx context.Context) (vectorstore.Snapshot, error) {
	var snap vectorstore.Snapshot
	err := s.db.QueryRowContext(ctx,
		"SELECT fingerprint, embedder, dimension FROM snapshot_meta WHERE id = 1").
		Scan(&snap.Fingerprint, &snap.Embedder, &snap.Dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return vectorstore.Snapshot{}, vectorstore.ErrNoSnapshot
	}
	if err != nil {
		return vectorstore.Snapshot{}, fmt.Errorf("read meta: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT chunk_id, ordinal, source, text, vector FROM snapshot_entries ORDER BY position")
	if err != nil {
		return vectorstore.Snapshot{}, fmt.Errorf("read entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.IndexEntry
		var blob []byte
		if err := rows.Scan(&e.Chunk.ID, &e.Chunk.Ordinal, &e.Chunk.Source, &e.Chunk.Text, &blob); err != nil {
			return vectorstore.Snapshot{}, fmt.Errorf("scan entry: %w", err)
		}
		v, err := decodeVector(blob)
		if err != nil {
			return vectorstore.Snapshot{}, fmt.Errorf("chunk %d: %w", e.Chunk.ID, err)
		}
		e.Vector = v
		snap.Entries = append(snap.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return vectorstore.Snapshot{}, err
	}
	return snap, nil
}

func encodeVector(v domain.Vector) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) (domain.Vector, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob of %d bytes is not a float32 array", len(b))
	}
	v := make(domain.Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
