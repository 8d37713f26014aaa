package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/genobench/internal/genome"
	"github.com/inodb/genobench/internal/table"
)

// Run is one ledger entry: the latest processed state of a dataset.
type Run struct {
	Task       string
	Dataset    string
	State      string
	Rows       int64
	Positives  int64
	Negatives  int64
	OutputPath string
	Source     FileFingerprint
	UpdatedAt  time.Time
}

// RecordRun inserts or replaces the ledger entry for (task, dataset).
func (s *Store) RecordRun(r Run) error {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	var modTime any
	if !r.Source.ModTime.IsZero() {
		modTime = r.Source.ModTime.UTC()
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO dataset_runs
		(task, dataset, state, row_count, positives, negatives, output_path, source_size, source_modtime, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Task, r.Dataset, r.State, r.Rows, r.Positives, r.Negatives,
		r.OutputPath, r.Source.Size, modTime, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("record run %s/%s: %w", r.Task, r.Dataset, err)
	}
	return nil
}

// LookupRun returns the ledger entry for (task, dataset).
// The boolean is false when no run has been recorded.
func (s *Store) LookupRun(task, dataset string) (Run, bool, error) {
	rows, err := s.db.Query(runSelect+` WHERE task=? AND dataset=?`, task, dataset)
	if err != nil {
		return Run{}, false, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return Run{}, false, err
	}
	if len(runs) == 0 {
		return Run{}, false, nil
	}
	return runs[0], true, nil
}

// Runs returns every ledger entry ordered by task and dataset.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(runSelect + ` ORDER BY task, dataset`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// ClearRuns removes ledger entries and labeled rows for one dataset.
func (s *Store) ClearRuns(task, dataset string) error {
	if _, err := s.db.Exec("DELETE FROM dataset_runs WHERE task=? AND dataset=?", task, dataset); err != nil {
		return fmt.Errorf("clear run: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM labeled_rows WHERE task=? AND dataset=?", task, dataset); err != nil {
		return fmt.Errorf("clear labeled rows: %w", err)
	}
	return nil
}

// ClearAll removes every ledger entry and labeled row.
func (s *Store) ClearAll() error {
	if _, err := s.db.Exec("DELETE FROM dataset_runs"); err != nil {
		return fmt.Errorf("clear runs: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM labeled_rows"); err != nil {
		return fmt.Errorf("clear labeled rows: %w", err)
	}
	return nil
}

const runSelect = `SELECT task, dataset, state, row_count, positives, negatives,
	output_path, source_size, source_modtime, updated_at FROM dataset_runs`

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var (
			r       Run
			modTime sql.NullTime
		)
		if err := rows.Scan(&r.Task, &r.Dataset, &r.State, &r.Rows, &r.Positives, &r.Negatives,
			&r.OutputPath, &r.Source.Size, &modTime, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if modTime.Valid {
			r.Source.ModTime = modTime.Time
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// WriteLabeledRows replaces the labeled rows stored for (task, dataset)
// with the rows of t, using the Appender API.
func (s *Store) WriteLabeledRows(task, dataset string, t *table.Table) error {
	if _, err := s.db.Exec("DELETE FROM labeled_rows WHERE task=? AND dataset=?", task, dataset); err != nil {
		return fmt.Errorf("clear labeled rows: %w", err)
	}
	if t.Len() == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "labeled_rows")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range t.Rows {
		if err := appender.AppendRow(
			task, dataset, r.Chrom, r.Start, r.End, r.GeneName,
			nullInt(r.GeneTSS.Valid, r.GeneTSS.Int64), strandValue(r.Strand),
			nullInt(r.Distance.Valid, r.Distance.Int64),
			nullFloat(r.Score.Valid, r.Score.Float64),
			nullInt32(r.Label.Valid, r.Label.Int64),
		); err != nil {
			return fmt.Errorf("append labeled row: %w", err)
		}
	}

	return appender.Flush()
}

// CountLabeledRows returns the number of stored rows and positives for (task, dataset).
func (s *Store) CountLabeledRows(task, dataset string) (total, positives int64, err error) {
	row := s.db.QueryRow(`SELECT count(*), coalesce(sum(CASE WHEN label = 1 THEN 1 ELSE 0 END), 0)
		FROM labeled_rows WHERE task=? AND dataset=?`, task, dataset)
	if err := row.Scan(&total, &positives); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("count labeled rows: %w", err)
	}
	return total, positives, nil
}

func nullInt(valid bool, v int64) any {
	if !valid {
		return nil
	}
	return v
}

func nullInt32(valid bool, v int64) any {
	if !valid {
		return nil
	}
	return int32(v)
}

func nullFloat(valid bool, v float64) any {
	if !valid {
		return nil
	}
	return v
}

func strandValue(s genome.Strand) any {
	if s == genome.StrandUnknown {
		return nil
	}
	return s.String()
}
