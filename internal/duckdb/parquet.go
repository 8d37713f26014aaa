package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/genobench/internal/table"
)

// parquetExportTable is the scratch table used when writing Parquet files.
const parquetExportTable = "parquet_export"

// ReadParquet reads every row of a Parquet file as nullable strings.
// Columns keep the file's order.
func (s *Store) ReadParquet(path string) ([]string, [][]null.String, error) {
	rows, err := s.db.Query("SELECT * FROM read_parquet(" + quoteLiteral(path) + ")")
	if err != nil {
		return nil, nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("parquet columns: %w", err)
	}

	var records [][]null.String
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan parquet row: %w", err)
		}
		rec := make([]null.String, len(cols))
		for i, v := range vals {
			rec[i] = formatValue(v)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate parquet rows: %w", err)
	}
	return cols, records, nil
}

// WriteParquet writes t to a Parquet file at path. Canonical columns keep
// their numeric types; extra columns are written as VARCHAR.
func (s *Store) WriteParquet(t *table.Table, path string) error {
	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	defs := []string{
		quoteIdent(table.ColChrom) + " VARCHAR",
		quoteIdent(table.ColStart) + " BIGINT",
		quoteIdent(table.ColEnd) + " BIGINT",
		quoteIdent(table.ColGeneName) + " VARCHAR",
		quoteIdent(table.ColGeneTSS) + " BIGINT",
		quoteIdent(table.ColStrand) + " VARCHAR",
		quoteIdent(table.ColDistance) + " BIGINT",
		quoteIdent(table.ColScore) + " DOUBLE",
		quoteIdent(table.ColLabel) + " INTEGER",
	}
	for _, name := range t.Extra {
		defs = append(defs, quoteIdent(name)+" VARCHAR")
	}

	if _, err := conn.ExecContext(ctx, "CREATE OR REPLACE TABLE "+parquetExportTable+
		" ("+strings.Join(defs, ", ")+")"); err != nil {
		return fmt.Errorf("create export table: %w", err)
	}
	defer conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+parquetExportTable)

	if err := conn.Raw(func(driverConn any) error {
		appender, err := goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", parquetExportTable)
		if err != nil {
			return fmt.Errorf("create appender: %w", err)
		}
		defer appender.Close()

		vals := make([]driver.Value, 0, len(defs))
		for _, r := range t.Rows {
			vals = vals[:0]
			vals = append(vals,
				r.Chrom, r.Start, r.End, r.GeneName,
				nullInt(r.GeneTSS.Valid, r.GeneTSS.Int64), strandValue(r.Strand),
				nullInt(r.Distance.Valid, r.Distance.Int64),
				nullFloat(r.Score.Valid, r.Score.Float64),
				nullInt32(r.Label.Valid, r.Label.Int64),
			)
			for _, e := range r.Extra {
				if e.Valid {
					vals = append(vals, e.String)
				} else {
					vals = append(vals, nil)
				}
			}
			if err := appender.AppendRow(vals...); err != nil {
				return fmt.Errorf("append export row: %w", err)
			}
		}
		return appender.Flush()
	}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COPY "+parquetExportTable+" TO "+quoteLiteral(path)+
		" (FORMAT PARQUET)"); err != nil {
		return fmt.Errorf("copy to parquet %s: %w", path, err)
	}
	return nil
}

func formatValue(v any) null.String {
	switch x := v.(type) {
	case nil:
		return null.String{}
	case string:
		return null.StringFrom(x)
	case []byte:
		return null.StringFrom(string(x))
	case int64:
		return null.StringFrom(strconv.FormatInt(x, 10))
	case int32:
		return null.StringFrom(strconv.FormatInt(int64(x), 10))
	case int16:
		return null.StringFrom(strconv.FormatInt(int64(x), 10))
	case int8:
		return null.StringFrom(strconv.FormatInt(int64(x), 10))
	case uint64:
		return null.StringFrom(strconv.FormatUint(x, 10))
	case uint32:
		return null.StringFrom(strconv.FormatUint(uint64(x), 10))
	case float64:
		return null.StringFrom(strconv.FormatFloat(x, 'g', -1, 64))
	case float32:
		return null.StringFrom(strconv.FormatFloat(float64(x), 'g', -1, 32))
	case bool:
		return null.StringFrom(strconv.FormatBool(x))
	case *big.Int:
		return null.StringFrom(x.String())
	case time.Time:
		return null.StringFrom(x.Format(time.RFC3339))
	}
	return null.StringFrom(fmt.Sprint(v))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
