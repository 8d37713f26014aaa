// Package duckdb provides the run ledger, the Parquet bridge and the
// annotation index cache.
// The annotation index is cached as a gob file (fast, pure Go).
// Processing runs and labeled rows are recorded in DuckDB (queryable).
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for the run ledger.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path ("" for in-memory).
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS dataset_runs (
		task VARCHAR,
		dataset VARCHAR,
		state VARCHAR,
		row_count BIGINT,
		positives BIGINT,
		negatives BIGINT,
		output_path VARCHAR,
		source_size BIGINT,
		source_modtime TIMESTAMP,
		updated_at TIMESTAMP,
		PRIMARY KEY (task, dataset)
	)`); err != nil {
		return err
	}

	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS labeled_rows (
		task VARCHAR,
		dataset VARCHAR,
		chrom VARCHAR,
		start_pos BIGINT,
		end_pos BIGINT,
		gene_name VARCHAR,
		gene_tss BIGINT,
		strand VARCHAR,
		distance BIGINT,
		score DOUBLE,
		label INTEGER
	)`)
	return err
}
