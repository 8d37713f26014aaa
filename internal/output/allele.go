package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// AlleleCheck is the reference comparison of one variant row.
type AlleleCheck struct {
	Chrom   string `csv:"chrom"`
	Pos     int64  `csv:"pos"` // 1-based
	Gene    string `csv:"gene_name"`
	Ref     string `csv:"ref"`
	Alt     string `csv:"alt"`
	Genome  string `csv:"genome"`
	Status  string `csv:"status"`
	Message string `csv:"message,omitempty"`
}

// AlleleSummary counts reference comparison outcomes.
type AlleleSummary struct {
	Total      int
	Matched    int
	Swapped    int
	Mismatched int
	Failed     int // lookup errors such as unknown contigs
	Corrected  int // swapped rows whose alleles were exchanged
}

// MatchRate returns the fraction of checked rows whose ref matched.
func (s AlleleSummary) MatchRate() float64 {
	checked := s.Matched + s.Swapped + s.Mismatched
	if checked == 0 {
		return 0
	}
	return float64(s.Matched) / float64(checked)
}

// WriteAlleleChecks writes checks as a tab-separated report with a header.
func WriteAlleleChecks(w io.Writer, checks []*AlleleCheck) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := gocsv.MarshalCSV(checks, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("write allele report: %w", err)
	}
	return nil
}

// WriteAlleleSummary writes a human-readable summary of s.
func WriteAlleleSummary(w io.Writer, s AlleleSummary) error {
	checked := s.Matched + s.Swapped + s.Mismatched
	_, err := fmt.Fprintf(w,
		"Reference allele check\n  Total rows:  %d\n  Matched:     %d (%s)\n  Swapped:     %d (%s)\n  Mismatched:  %d (%s)\n  Failed:      %d\n  Match rate:  %.4f\n",
		s.Total,
		s.Matched, percent(s.Matched, checked),
		s.Swapped, percent(s.Swapped, checked),
		s.Mismatched, percent(s.Mismatched, checked),
		s.Failed,
		s.MatchRate())
	if err != nil || s.Corrected == 0 {
		return err
	}
	_, err = fmt.Fprintf(w, "  Corrected:   %d\n", s.Corrected)
	return err
}
