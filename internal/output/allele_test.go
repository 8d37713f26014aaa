package output

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAlleleChecks(t *testing.T, r io.Reader) []*AlleleCheck {
	t.Helper()
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	var checks []*AlleleCheck
	require.NoError(t, gocsv.UnmarshalCSV(cr, &checks))
	return checks
}

func TestAlleleChecks_RoundTrip(t *testing.T) {
	checks := []*AlleleCheck{
		{Chrom: "chr1", Pos: 11, Gene: "G1", Ref: "G", Alt: "A", Genome: "G", Status: "matched"},
		{Chrom: "chr1", Pos: 12, Gene: "G2", Ref: "A", Alt: "G", Genome: "G", Status: "swapped"},
		{Chrom: "chr9", Pos: 1, Gene: "G3", Ref: "A", Alt: "C", Status: "failed", Message: "unknown contig"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAlleleChecks(&buf, checks))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, "chrom\tpos\tgene_name\tref\talt\tgenome\tstatus\tmessage", header)

	got := readAlleleChecks(t, &buf)
	require.Len(t, got, 3)
	assert.Equal(t, *checks[1], *got[1])
	assert.Equal(t, "unknown contig", got[2].Message)
}

func TestAlleleSummary(t *testing.T) {
	s := AlleleSummary{Total: 5, Matched: 3, Swapped: 1, Mismatched: 0, Failed: 1, Corrected: 1}
	assert.InDelta(t, 0.75, s.MatchRate(), 1e-9)
	assert.Zero(t, AlleleSummary{}.MatchRate())

	var buf bytes.Buffer
	require.NoError(t, WriteAlleleSummary(&buf, s))
	out := buf.String()
	assert.Contains(t, out, "Matched:     3 (75.00%)")
	assert.Contains(t, out, "Failed:      1")
	assert.Contains(t, out, "Match rate:  0.7500")
	assert.Contains(t, out, "Corrected:   1")
}
