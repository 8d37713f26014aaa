package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/genobench/internal/genome"
	"github.com/inodb/genobench/internal/table"
)

func variantTable() *table.Table {
	t := table.New("variant_id", "ref", "alt")
	add := func(start int64, gene string, label null.Int, dist null.Int, strand genome.Strand, ref, alt string) {
		t.Append(table.Row{
			Chrom: "chr1", Start: start, End: start + int64(len(ref)),
			GeneName: gene, Strand: strand, Distance: dist, Label: label,
			Extra: []null.String{null.StringFrom("id"), null.StringFrom(ref), null.StringFrom(alt)},
		})
	}
	add(99, "G1", null.IntFrom(1), null.IntFrom(-50), genome.Forward, "A", "G")
	add(199, "G2", null.IntFrom(0), null.IntFrom(20), genome.Reverse, "C", "T")
	add(299, "G3", null.IntFrom(0), null.Int{}, genome.StrandUnknown, "TG", "T")
	add(399, "G4", null.Int{}, null.IntFrom(1), genome.Forward, "A", "C")
	return t
}

func TestVCFWriter(t *testing.T) {
	tbl := variantTable()
	var buf bytes.Buffer
	vw, err := NewVCFWriter(&buf, tbl, "ref", "alt")
	require.NoError(t, err)
	require.NoError(t, vw.WriteHeader())
	require.NoError(t, vw.Write(tbl.Rows[0]))
	require.NoError(t, vw.Write(tbl.Rows[2]))
	require.NoError(t, vw.Flush())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "##fileformat=VCFv4.2", lines[0])
	assert.Equal(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tDISTANCE\tSTRAND\tGENE", lines[1])
	assert.Equal(t, "chr1\t100\t.\tA\tG\t.\tPASS\t-50\t+\tG1", lines[2])
	assert.Equal(t, "chr1\t300\t.\tTG\tT\t.\tPASS\t.\t.\tG3", lines[3])
}

func TestNewVCFWriter_MissingColumn(t *testing.T) {
	var target *table.ColumnError
	_, err := NewVCFWriter(&bytes.Buffer{}, table.New("ref"), "ref", "alt")
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "alt", target.Column)
}

func TestExportVCF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vcf")
	exp, err := ExportVCF(variantTable(), dir, "ref", "alt")
	require.NoError(t, err)

	assert.Equal(t, 1, exp.Positives)
	assert.Equal(t, 2, exp.Negatives)

	pos, err := os.ReadFile(exp.PositivePath)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(pos), "\n"))
	assert.Contains(t, string(pos), "\tG1\n")

	neg, err := os.ReadFile(exp.NegativePath)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(neg), "\n"))
	assert.NotContains(t, string(neg), "G4")

	summary, err := os.ReadFile(exp.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Positive samples: 1\n")
	assert.Contains(t, string(summary), "Negative samples: 2\n")
	assert.Contains(t, string(summary), "Total samples: 3\n")
	assert.Contains(t, string(summary), "Positive VCF: "+exp.PositivePath)
}

func TestExportVCF_FailsWithoutAlleles(t *testing.T) {
	tbl := table.New()
	_, err := ExportVCF(tbl, t.TempDir(), "ref", "alt")
	assert.Error(t, err)
}
