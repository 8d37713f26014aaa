// Package pipeline implements the table transforms of a benchmark run:
// distance computation and filtering, labeling and metrics.
//
// Every transform is pure: it returns a new table and leaves its input
// untouched.
package pipeline

import (
	"strings"

	"gopkg.in/guregu/null.v3"

	"github.com/inodb/genobench/internal/genome"
	"github.com/inodb/genobench/internal/table"
)

// Extra columns read by the biotype and SNP filters.
const (
	ColBiotype = "biotype"
	ColRef     = "ref"
	ColAlt     = "alt"
)

// DistanceReport counts the outcome of ComputeDistance.
type DistanceReport struct {
	Computed int
	Missing  int // rows without TSS or strand
}

// FilterReport counts the outcome of a filter.
type FilterReport struct {
	Before       int
	Kept         int
	Dropped      int
	NullDistance int // dropped because distance is null
}

// Distance returns the signed distance from the interval midpoint to a
// 1-based TSS. Positive means downstream in the direction of transcription.
func Distance(start, end, tss int64, strand genome.Strand) int64 {
	mid := start + (end-start)/2
	d := mid - (tss - 1)
	if strand == genome.Reverse {
		return -d
	}
	return d
}

// ComputeDistance fills the distance column from gene_tss and strand.
// Rows missing either keep a null distance.
func ComputeDistance(t *table.Table) (*table.Table, DistanceReport) {
	out := t.Clone()
	var rep DistanceReport
	for i := range out.Rows {
		r := &out.Rows[i]
		if !r.GeneTSS.Valid || r.Strand == genome.StrandUnknown {
			r.Distance = null.Int{}
			rep.Missing++
			continue
		}
		r.Distance = null.IntFrom(Distance(r.Start, r.End, r.GeneTSS.Int64, r.Strand))
		rep.Computed++
	}
	return out, rep
}

// FilterByDistance keeps rows with low <= |distance| <= high. Rows with a
// null distance are dropped and counted.
func FilterByDistance(t *table.Table, low, high int64) (*table.Table, FilterReport, error) {
	if low < 0 || low > high {
		return nil, FilterReport{}, &InvalidRangeError{Low: low, High: high}
	}

	rep := FilterReport{Before: t.Len()}
	out := t.Filter(func(r table.Row) bool {
		if !r.Distance.Valid {
			rep.NullDistance++
			return false
		}
		d := r.Distance.Int64
		if d < 0 {
			d = -d
		}
		return d >= low && d <= high
	})
	rep.Kept = out.Len()
	rep.Dropped = rep.Before - rep.Kept
	return out, rep, nil
}

// FilterProteinCoding keeps rows whose biotype is protein_coding.
func FilterProteinCoding(t *table.Table) (*table.Table, FilterReport, error) {
	bi := t.ExtraIndex(ColBiotype)
	if bi < 0 {
		return nil, FilterReport{}, &table.ColumnError{Column: ColBiotype}
	}

	rep := FilterReport{Before: t.Len()}
	out := t.Filter(func(r table.Row) bool {
		return r.Extra[bi].Valid && r.Extra[bi].String == "protein_coding"
	})
	rep.Kept = out.Len()
	rep.Dropped = rep.Before - rep.Kept
	return out, rep, nil
}

// FilterSNPOnly keeps rows whose ref and alt alleles are single bases.
func FilterSNPOnly(t *table.Table) (*table.Table, FilterReport, error) {
	ri, ai := t.ExtraIndex(ColRef), t.ExtraIndex(ColAlt)
	if ri < 0 {
		return nil, FilterReport{}, &table.ColumnError{Column: ColRef}
	}
	if ai < 0 {
		return nil, FilterReport{}, &table.ColumnError{Column: ColAlt}
	}

	rep := FilterReport{Before: t.Len()}
	out := t.Filter(func(r table.Row) bool {
		ref, alt := r.Extra[ri], r.Extra[ai]
		return ref.Valid && alt.Valid &&
			len(strings.TrimSpace(ref.String)) == 1 && len(strings.TrimSpace(alt.String)) == 1
	})
	rep.Kept = out.Len()
	rep.Dropped = rep.Before - rep.Kept
	return out, rep, nil
}
