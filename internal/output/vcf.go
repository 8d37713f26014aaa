package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/inodb/genobench/internal/fileutil"
	"github.com/inodb/genobench/internal/table"
)

// VCF export file names.
const (
	PositiveVCF = "positive.vcf"
	NegativeVCF = "negative.vcf"
	VCFSummary  = "vcf_summary.txt"
)

const vcfHeader = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tDISTANCE\tSTRAND\tGENE\n"

// VCFWriter writes labeled variant rows as minimal VCF lines. The ref and
// alt alleles come from the named extra columns.
type VCFWriter struct {
	w      *bufio.Writer
	refIdx int
	altIdx int
}

// NewVCFWriter creates a VCF writer for rows of t.
func NewVCFWriter(w io.Writer, t *table.Table, refColumn, altColumn string) (*VCFWriter, error) {
	vw := &VCFWriter{
		w:      bufio.NewWriter(w),
		refIdx: t.ExtraIndex(refColumn),
		altIdx: t.ExtraIndex(altColumn),
	}
	if vw.refIdx < 0 {
		return nil, &table.ColumnError{Column: refColumn}
	}
	if vw.altIdx < 0 {
		return nil, &table.ColumnError{Column: altColumn}
	}
	return vw, nil
}

// WriteHeader writes the fileformat line and the column header.
func (vw *VCFWriter) WriteHeader() error {
	_, err := vw.w.WriteString(vcfHeader)
	return err
}

// Write writes one row. POS is the 1-based start.
func (vw *VCFWriter) Write(r table.Row) error {
	distance := "."
	if r.Distance.Valid {
		distance = strconv.FormatInt(r.Distance.Int64, 10)
	}
	_, err := fmt.Fprintf(vw.w, "%s\t%d\t.\t%s\t%s\t.\tPASS\t%s\t%s\t%s\n",
		r.Chrom, r.Start+1,
		allele(r, vw.refIdx), allele(r, vw.altIdx),
		distance, r.Strand, r.GeneName)
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}

func allele(r table.Row, idx int) string {
	if idx < len(r.Extra) && r.Extra[idx].Valid && r.Extra[idx].String != "" {
		return r.Extra[idx].String
	}
	return "."
}

// VCFExport describes the files written by ExportVCF.
type VCFExport struct {
	Positives    int
	Negatives    int
	PositivePath string
	NegativePath string
	SummaryPath  string
}

// ExportVCF splits the labeled rows of t into positive.vcf and negative.vcf
// under dir and writes vcf_summary.txt. Unlabeled rows are skipped.
func ExportVCF(t *table.Table, dir, refColumn, altColumn string) (VCFExport, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return VCFExport{}, fmt.Errorf("create directory %s: %w", dir, err)
	}
	exp := VCFExport{
		PositivePath: filepath.Join(dir, PositiveVCF),
		NegativePath: filepath.Join(dir, NegativeVCF),
		SummaryPath:  filepath.Join(dir, VCFSummary),
	}

	write := func(path string, label int64) (int, error) {
		n := 0
		err := fileutil.WriteAtomic(path, func(w io.Writer) error {
			vw, err := NewVCFWriter(w, t, refColumn, altColumn)
			if err != nil {
				return err
			}
			if err := vw.WriteHeader(); err != nil {
				return err
			}
			for _, r := range t.Rows {
				if !r.Label.Valid || r.Label.Int64 != label {
					continue
				}
				if err := vw.Write(r); err != nil {
					return err
				}
				n++
			}
			return vw.Flush()
		})
		return n, err
	}

	var err error
	if exp.Positives, err = write(exp.PositivePath, 1); err != nil {
		return VCFExport{}, fmt.Errorf("write %s: %w", PositiveVCF, err)
	}
	if exp.Negatives, err = write(exp.NegativePath, 0); err != nil {
		return VCFExport{}, fmt.Errorf("write %s: %w", NegativeVCF, err)
	}

	err = fileutil.WriteAtomic(exp.SummaryPath, func(w io.Writer) error {
		_, err := fmt.Fprintf(w,
			"Positive samples: %d\nNegative samples: %d\nTotal samples: %d\n\nFiles:\nPositive VCF: %s\nNegative VCF: %s\n",
			exp.Positives, exp.Negatives, exp.Positives+exp.Negatives,
			exp.PositivePath, exp.NegativePath)
		return err
	})
	if err != nil {
		return VCFExport{}, fmt.Errorf("write %s: %w", VCFSummary, err)
	}
	return exp, nil
}
