// Package genome provides gene-model lookup and reference sequence access.
package genome

import "strings"

// Strand is the transcription orientation of a gene.
type Strand int8

const (
	StrandUnknown Strand = 0
	Forward       Strand = 1
	Reverse       Strand = -1
)

// ParseStrand converts "+" or "-" to a Strand. Anything else is StrandUnknown.
func ParseStrand(s string) Strand {
	switch s {
	case "+":
		return Forward
	case "-":
		return Reverse
	}
	return StrandUnknown
}

func (s Strand) String() string {
	switch s {
	case Forward:
		return "+"
	case Reverse:
		return "-"
	}
	return "."
}

// Gene is a gene-level record from a gene-model source.
type Gene struct {
	ID        string // Gene identifier without version (e.g., ENSG00000133703)
	Name      string // Gene symbol (e.g., KRAS)
	Chrom     string // Chromosome, chr-prefixed
	Start     int64  // Gene start (1-based, as in GTF)
	End       int64  // Gene end (1-based, inclusive)
	Strand    Strand
	Biotype   string // gene_type / gene_biotype
	Canonical bool   // carries a canonical or MANE Select tag
}

// TSS returns the transcription start site: Start on the forward strand,
// End on the reverse strand.
func (g Gene) TSS() int64 {
	if g.Strand == Reverse {
		return g.End
	}
	return g.Start
}

// IsProteinCoding reports whether the gene biotype is protein_coding.
func (g Gene) IsProteinCoding() bool {
	return g.Biotype == "protein_coding"
}

// NormalizeChrom returns the chr-prefixed form of a contig name.
// "1" -> "chr1", "chrX" -> "chrX", "MT" and "M" -> "chrM".
func NormalizeChrom(chrom string) string {
	chrom = strings.TrimSpace(chrom)
	if chrom == "" {
		return ""
	}
	bare := strings.TrimPrefix(chrom, "chr")
	if bare == "MT" || bare == "M" {
		return "chrM"
	}
	return "chr" + bare
}

// stripVersion removes the version suffix from an Ensembl ID.
// e.g., "ENSG00000133703.14" -> "ENSG00000133703"
func stripVersion(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[:idx]
	}
	return id
}
