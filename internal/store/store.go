// Package store persists the most recent merged export document across
// sessions in a local SQLite database. Payloads are zstd-compressed JSON.
package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/ldgr/ldgr/internal/ledger"
)

//go:embed schema.sql
var schemaSQL string

const (
	sqliteDriverName     = "sqlite"
	upsertExportQuery    = `INSERT INTO exports (id, payload, saved_at) VALUES (1, ?, ?) ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`
	selectExportQuery    = `SELECT payload, saved_at FROM exports WHERE id = 1`
	openErrorFormat      = "open sqlite database: %w"
	schemaErrorFormat    = "apply schema: %w"
	directoryErrorFormat = "create database directory: %w"
	encodeErrorFormat    = "encode export: %w"
	compressErrorFormat  = "compress export: %w"
	persistErrorFormat   = "persist export: %w"
	loadErrorFormat      = "load export: %w"
	decodeErrorFormat    = "decode stored export: %w"
)

// DB wraps the SQLite connection holding the persisted export.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the export database at the given path, creating the
// parent directory when necessary.
func Open(databasePath string) (*DB, error) {
	if directory := filepath.Dir(databasePath); directory != "." {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return nil, fmt.Errorf(directoryErrorFormat, err)
		}
	}

	conn, err := sql.Open(sqliteDriverName, databasePath)
	if err != nil {
		return nil, fmt.Errorf(openErrorFormat, err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf(schemaErrorFormat, err)
	}
	return &DB{conn: conn, path: databasePath}, nil
}

// Close releases the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SaveExport stores the merged export document, replacing any previous one.
func (db *DB) SaveExport(document ledger.Document, savedAt time.Time) error {
	encoded, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf(encodeErrorFormat, err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf(compressErrorFormat, err)
	}
	compressed := encoder.EncodeAll(encoded, nil)
	encoder.Close()

	if _, err := db.conn.Exec(upsertExportQuery, compressed, savedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf(persistErrorFormat, err)
	}
	return nil
}

// LoadExport returns the persisted export document. The second return value
// reports whether an export has ever been saved.
func (db *DB) LoadExport() (ledger.Document, bool, error) {
	var compressed []byte
	var savedAt string
	err := db.conn.QueryRow(selectExportQuery).Scan(&compressed, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Document{}, false, nil
	}
	if err != nil {
		return ledger.Document{}, false, fmt.Errorf(loadErrorFormat, err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return ledger.Document{}, false, fmt.Errorf(decodeErrorFormat, err)
	}
	defer decoder.Close()
	decoded, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return ledger.Document{}, false, fmt.Errorf(decodeErrorFormat, err)
	}

	var document ledger.Document
	if err := json.Unmarshal(decoded, &document); err != nil {
		return ledger.Document{}, false, fmt.Errorf(decodeErrorFormat, err)
	}
	return document, true, nil
}
