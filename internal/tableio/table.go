package tableio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"

	"github.com/inodb/genobench/internal/duckdb"
	"github.com/inodb/genobench/internal/fileutil"
	"github.com/inodb/genobench/internal/genome"
	"github.com/inodb/genobench/internal/table"
)

// requiredColumns must be present in a persisted canonical table.
var requiredColumns = []string{table.ColChrom, table.ColStart, table.ColEnd, table.ColGeneName}

// LoadTable reads a persisted canonical table. Canonical columns are typed;
// every other column becomes an extra column in file order.
func LoadTable(path string) (*table.Table, error) {
	raw, err := ReadRaw(path)
	if err != nil {
		return nil, err
	}
	t, err := FromRaw(raw)
	if err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Path = path
		}
		return nil, err
	}
	return t, nil
}

// FromRaw converts a raw table carrying canonical column names.
func FromRaw(raw *Raw) (*table.Table, error) {
	var missing []string
	for _, c := range requiredColumns {
		if raw.Column(c) < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &FormatError{Line: 1, Message: "missing columns: " + strings.Join(missing, ", ")}
	}

	canon := make(map[string]int, len(table.CanonicalColumns))
	isCanon := make(map[int]bool)
	for _, c := range table.CanonicalColumns {
		canon[c] = raw.Column(c)
		if canon[c] >= 0 {
			isCanon[canon[c]] = true
		}
	}

	var extraIdx []int
	var extraNames []string
	for i, h := range raw.Header {
		if !isCanon[i] {
			extraIdx = append(extraIdx, i)
			extraNames = append(extraNames, h)
		}
	}

	t := table.New(extraNames...)
	for n, rec := range raw.Records {
		line := n + 2
		get := func(col string) string {
			if i := canon[col]; i >= 0 {
				return rec[i]
			}
			return NullMarker
		}

		start, err := strconv.ParseInt(strings.TrimSpace(get(table.ColStart)), 10, 64)
		if err != nil {
			return nil, &FormatError{Line: line, Message: "start: " + err.Error()}
		}
		end, err := strconv.ParseInt(strings.TrimSpace(get(table.ColEnd)), 10, 64)
		if err != nil {
			return nil, &FormatError{Line: line, Message: "end: " + err.Error()}
		}

		r := table.Row{
			Chrom:    genome.NormalizeChrom(get(table.ColChrom)),
			Start:    start,
			End:      end,
			GeneName: get(table.ColGeneName),
			Strand:   genome.ParseStrand(strings.TrimSpace(get(table.ColStrand))),
			Extra:    make([]null.String, len(extraIdx)),
		}
		if r.GeneTSS, err = ParseInt(get(table.ColGeneTSS)); err != nil {
			return nil, &FormatError{Line: line, Message: "gene_tss: " + err.Error()}
		}
		if r.Distance, err = ParseInt(get(table.ColDistance)); err != nil {
			return nil, &FormatError{Line: line, Message: "distance: " + err.Error()}
		}
		if r.Score, err = ParseFloat(get(table.ColScore)); err != nil {
			return nil, &FormatError{Line: line, Message: "score: " + err.Error()}
		}
		if r.Label, err = ParseInt(get(table.ColLabel)); err != nil {
			return nil, &FormatError{Line: line, Message: "label: " + err.Error()}
		}
		for j, i := range extraIdx {
			r.Extra[j] = parseStored(rec[i])
		}
		t.Append(r)
	}
	return t, nil
}

// ParseInt parses a nullable integer cell. Values like "12.0" are accepted.
func ParseInt(s string) (null.Int, error) {
	s = strings.TrimSpace(s)
	if IsNull(s) {
		return null.Int{}, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return null.IntFrom(v), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return null.Int{}, fmt.Errorf("invalid integer %q", s)
	}
	return null.IntFrom(int64(f)), nil
}

// ParseFloat parses a nullable float cell.
func ParseFloat(s string) (null.Float, error) {
	s = strings.TrimSpace(s)
	if IsNull(s) {
		return null.Float{}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return null.Float{}, fmt.Errorf("invalid number %q", s)
	}
	return null.FloatFrom(f), nil
}

// ParseString converts a source cell to a nullable string.
func ParseString(s string) null.String {
	if IsNull(s) {
		return null.String{}
	}
	return null.StringFrom(UnescapeCell(s))
}

// parseStored decodes an extra cell written by WriteTSV. Only NullMarker
// is null, so empty strings and spellings like "None" survive.
func parseStored(s string) null.String {
	if s == NullMarker {
		return null.String{}
	}
	return null.StringFrom(UnescapeCell(s))
}

// SaveTable writes t atomically as TSV, or as Parquet when path ends in
// .parquet. No partial file is left behind on failure.
func SaveTable(t *table.Table, path string) error {
	if DetectFormat(path) == FormatParquet {
		return saveParquet(t, path)
	}
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return WriteTSV(w, t)
	})
}

// WriteTSV writes t as tab-separated text with a header line.
func WriteTSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range t.Rows {
		if err := cw.Write(Cells(r)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Cells formats a row in column order, using NullMarker for nulls. Valid
// extra values are escaped with EscapeCell and empty strings stay empty.
func Cells(r table.Row) []string {
	cells := make([]string, 0, len(table.CanonicalColumns)+len(r.Extra))
	cells = append(cells,
		r.Chrom,
		strconv.FormatInt(r.Start, 10),
		strconv.FormatInt(r.End, 10),
		r.GeneName,
		formatInt(r.GeneTSS),
		formatStrand(r.Strand),
		formatInt(r.Distance),
		formatFloat(r.Score),
		formatInt(r.Label),
	)
	for _, e := range r.Extra {
		if e.Valid {
			cells = append(cells, EscapeCell(e.String))
		} else {
			cells = append(cells, NullMarker)
		}
	}
	return cells
}

func formatInt(v null.Int) string {
	if !v.Valid {
		return NullMarker
	}
	return strconv.FormatInt(v.Int64, 10)
}

func formatFloat(v null.Float) string {
	if !v.Valid {
		return NullMarker
	}
	return strconv.FormatFloat(v.Float64, 'g', -1, 64)
}

func formatStrand(s genome.Strand) string {
	if s == genome.StrandUnknown {
		return NullMarker
	}
	return s.String()
}

func saveParquet(t *table.Table, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	store, err := duckdb.Open("")
	if err != nil {
		return err
	}
	defer store.Close()

	tmpPath := path + ".tmp"
	if err := store.WriteParquet(t, tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename parquet file: %w", err)
	}
	return nil
}
