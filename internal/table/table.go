// Package table defines the canonical in-memory table shared by every
// pipeline stage.
package table

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"

	"github.com/inodb/genobench/internal/genome"
)

// Canonical column names, in persisted order.
const (
	ColChrom    = "chrom"
	ColStart    = "start"
	ColEnd      = "end"
	ColGeneName = "gene_name"
	ColGeneTSS  = "gene_tss"
	ColStrand   = "strand"
	ColDistance = "distance"
	ColScore    = "score"
	ColLabel    = "label"
)

// CanonicalColumns lists the fixed columns every table carries.
var CanonicalColumns = []string{
	ColChrom, ColStart, ColEnd, ColGeneName,
	ColGeneTSS, ColStrand, ColDistance, ColScore, ColLabel,
}

// Row is one feature-gene record.
type Row struct {
	Chrom    string // chr-prefixed contig name
	Start    int64  // 0-based, inclusive
	End      int64  // 0-based, exclusive
	GeneName string
	GeneTSS  null.Int      // 1-based TSS from the gene model
	Strand   genome.Strand // StrandUnknown until the annotation join
	Distance null.Int
	Score    null.Float
	Label    null.Int
	Extra    []null.String // aligned with Table.Extra
}

// Table is an ordered collection of rows plus dataset-specific extra columns.
type Table struct {
	Extra []string
	Rows  []Row
}

// New creates an empty table with the given extra columns.
func New(extra ...string) *Table {
	return &Table{Extra: append([]string(nil), extra...)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Columns returns the full column list: canonical columns followed by extras.
func (t *Table) Columns() []string {
	cols := make([]string, 0, len(CanonicalColumns)+len(t.Extra))
	cols = append(cols, CanonicalColumns...)
	return append(cols, t.Extra...)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		Extra: append([]string(nil), t.Extra...),
		Rows:  make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = r.clone()
	}
	return out
}

// Filter returns a new table containing the rows for which keep returns true.
// Kept rows are deep copies.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := &Table{Extra: append([]string(nil), t.Extra...)}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r.clone())
		}
	}
	return out
}

func (r Row) clone() Row {
	if r.Extra != nil {
		r.Extra = append([]null.String(nil), r.Extra...)
	}
	return r
}

// Append adds a row, padding or truncating its extras to the table's width.
func (t *Table) Append(r Row) {
	switch {
	case len(r.Extra) < len(t.Extra):
		r.Extra = append(r.Extra, make([]null.String, len(t.Extra)-len(r.Extra))...)
	case len(r.Extra) > len(t.Extra):
		r.Extra = r.Extra[:len(t.Extra)]
	}
	t.Rows = append(t.Rows, r)
}

// ExtraIndex returns the position of an extra column, or -1.
func (t *Table) ExtraIndex(name string) int {
	for i, c := range t.Extra {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether name is a canonical or extra column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range CanonicalColumns {
		if c == name {
			return true
		}
	}
	return t.ExtraIndex(name) >= 0
}

// EnsureExtra returns the index of an extra column, adding it (null-filled)
// when missing.
func (t *Table) EnsureExtra(name string) int {
	if i := t.ExtraIndex(name); i >= 0 {
		return i
	}
	t.Extra = append(t.Extra, name)
	for i := range t.Rows {
		t.Rows[i].Extra = append(t.Rows[i].Extra, null.String{})
	}
	return len(t.Extra) - 1
}

// Get returns the value of an extra column on a row.
func (t *Table) Get(row int, name string) (null.String, error) {
	i := t.ExtraIndex(name)
	if i < 0 {
		return null.String{}, &ColumnError{Column: name}
	}
	return t.Rows[row].Extra[i], nil
}

// Numeric returns the named column as nullable floats. The column may be
// "score", "distance", "gene_tss", "label" or any extra column. Extra values
// that do not parse as numbers cause an error.
func (t *Table) Numeric(name string) ([]null.Float, error) {
	out := make([]null.Float, len(t.Rows))

	switch name {
	case ColScore:
		for i, r := range t.Rows {
			out[i] = r.Score
		}
		return out, nil
	case ColDistance:
		for i, r := range t.Rows {
			out[i] = intToFloat(r.Distance)
		}
		return out, nil
	case ColGeneTSS:
		for i, r := range t.Rows {
			out[i] = intToFloat(r.GeneTSS)
		}
		return out, nil
	case ColLabel:
		for i, r := range t.Rows {
			out[i] = intToFloat(r.Label)
		}
		return out, nil
	}

	idx := t.ExtraIndex(name)
	if idx < 0 {
		return nil, &ColumnError{Column: name}
	}
	for i, r := range t.Rows {
		v := r.Extra[idx]
		s := strings.TrimSpace(v.String)
		if !v.Valid || s == "" {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, &ColumnError{Column: name, Row: i, Value: v.String}
		}
		out[i] = null.FloatFrom(f)
	}
	return out, nil
}

func intToFloat(v null.Int) null.Float {
	if !v.Valid {
		return null.Float{}
	}
	return null.FloatFrom(float64(v.Int64))
}

// Validate checks the canonical schema rules on every row.
func (t *Table) Validate() error {
	for i, r := range t.Rows {
		if err := t.validateRow(i, r); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) validateRow(i int, r Row) error {
	if r.Chrom == "" || !strings.HasPrefix(r.Chrom, "chr") {
		return &RowError{Row: i, Column: ColChrom, Message: fmt.Sprintf("contig %q is not chr-prefixed", r.Chrom)}
	}
	if r.Start < 0 || r.Start >= r.End {
		return &RowError{Row: i, Column: ColStart, Message: fmt.Sprintf("invalid interval [%d, %d)", r.Start, r.End)}
	}
	if r.GeneName == "" {
		return &RowError{Row: i, Column: ColGeneName, Message: "empty"}
	}
	if r.Label.Valid && r.Label.Int64 != 0 && r.Label.Int64 != 1 {
		return &RowError{Row: i, Column: ColLabel, Message: fmt.Sprintf("label %d not in {0,1}", r.Label.Int64)}
	}
	if len(r.Extra) != len(t.Extra) {
		return &RowError{Row: i, Message: fmt.Sprintf("%d extra values for %d extra columns", len(r.Extra), len(t.Extra))}
	}
	return nil
}

// Distribution counts labels in a table.
type Distribution struct {
	Total     int
	Positives int
	Negatives int
	Unlabeled int
}

// LabelDistribution counts positive, negative and unlabeled rows.
func (t *Table) LabelDistribution() Distribution {
	d := Distribution{Total: len(t.Rows)}
	for _, r := range t.Rows {
		switch {
		case !r.Label.Valid:
			d.Unlabeled++
		case r.Label.Int64 == 1:
			d.Positives++
		default:
			d.Negatives++
		}
	}
	return d
}
