// Package tableio reads and writes delimited-text and Parquet tables.
package tableio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/inodb/genobench/internal/duckdb"
	"github.com/inodb/genobench/internal/fileutil"
)

// NullMarker is written for null cells in delimited text.
const NullMarker = "NA"

// Raw is an untyped table as read from a source file.
type Raw struct {
	Name    string // source name, e.g. the file base name
	Header  []string
	Records [][]string
}

// Column returns the index of a header column, or -1.
func (r *Raw) Column(name string) int {
	for i, h := range r.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Len returns the number of records.
func (r *Raw) Len() int {
	return len(r.Records)
}

// IsNull reports whether a source cell holds one of the null spellings
// found in raw benchmark files. Persisted canonical tables use NullMarker only.
func IsNull(s string) bool {
	switch strings.TrimSpace(s) {
	case "", NullMarker, "NaN", "nan", "None", "null":
		return true
	}
	return false
}

// EscapeCell encodes a non-null value so that it never reads back as
// NullMarker: "NA" is written as `\NA`, `\NA` as `\\NA` and so on.
func EscapeCell(s string) string {
	if isMarkerLike(s) {
		return `\` + s
	}
	return s
}

// UnescapeCell reverses EscapeCell.
func UnescapeCell(s string) string {
	if len(s) > len(NullMarker) && isMarkerLike(s) {
		return s[1:]
	}
	return s
}

func isMarkerLike(s string) bool {
	return strings.TrimLeft(s, `\`) == NullMarker
}

// Format identifies a table file format.
type Format int

const (
	FormatTSV Format = iota
	FormatCSV
	FormatParquet
)

// DetectFormat infers the format from a file extension, ignoring a
// trailing .gz. Unknown extensions are read as TSV.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(fileutil.TrimCompression(path))) {
	case ".csv":
		return FormatCSV
	case ".parquet", ".pq":
		return FormatParquet
	}
	return FormatTSV
}

// baseName strips directory, compression and format extensions.
func baseName(path string) string {
	base := filepath.Base(fileutil.TrimCompression(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadRaw reads a .tsv, .txt, .csv (optionally gzipped) or .parquet file.
func ReadRaw(path string) (*Raw, error) {
	if DetectFormat(path) == FormatParquet {
		return readParquet(path)
	}

	rc, err := fileutil.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer rc.Close()

	comma := '\t'
	if DetectFormat(path) == FormatCSV {
		comma = ','
	}

	raw, err := ReadDelimited(rc, comma)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	raw.Name = baseName(path)
	return raw, nil
}

// ReadDelimited reads delimited text with a header line.
func ReadDelimited(r io.Reader, comma rune) (*Raw, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, &FormatError{Line: 1, Message: "no header line found"}
		}
		return nil, asFormatError(err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	raw := &Raw{Header: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, asFormatError(err)
		}
		raw.Records = append(raw.Records, rec)
	}
	return raw, nil
}

func asFormatError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &FormatError{Line: pe.Line, Message: pe.Err.Error()}
	}
	return fmt.Errorf("read table: %w", err)
}

func readParquet(path string) (*Raw, error) {
	store, err := duckdb.Open("")
	if err != nil {
		return nil, err
	}
	defer store.Close()

	cols, records, err := store.ReadParquet(path)
	if err != nil {
		return nil, err
	}

	raw := &Raw{Name: baseName(path), Header: cols, Records: make([][]string, len(records))}
	for i, rec := range records {
		out := make([]string, len(rec))
		for j, v := range rec {
			if v.Valid {
				out[j] = EscapeCell(v.String)
			} else {
				out[j] = NullMarker
			}
		}
		raw.Records[i] = out
	}
	return raw, nil
}
