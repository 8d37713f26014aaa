package genome

import (
	"errors"
	"strings"
)

// AlleleStatus is the outcome of comparing a record's alleles with the
// reference genome.
type AlleleStatus int

const (
	// AlleleMatched means ref matches the genome.
	AlleleMatched AlleleStatus = iota
	// AlleleSwapped means alt matches the genome but ref does not.
	AlleleSwapped
	// AlleleMismatched means neither allele matches the genome.
	AlleleMismatched
)

func (s AlleleStatus) String() string {
	switch s {
	case AlleleMatched:
		return "matched"
	case AlleleSwapped:
		return "swapped"
	}
	return "mismatched"
}

// CheckAlleles compares ref and alt against one genome sequence observed at
// the record's position. Comparison is case-insensitive. Use
// Reference.CheckRecord when the alleles differ in length.
func CheckAlleles(ref, alt, genomic string) AlleleStatus {
	genomic = strings.ToUpper(genomic)
	switch {
	case strings.EqualFold(ref, genomic):
		return AlleleMatched
	case strings.EqualFold(alt, genomic):
		return AlleleSwapped
	}
	return AlleleMismatched
}

// CheckRecord compares each allele with the genome bases it covers,
// starting at the 1-based position pos, so an indel whose alleles were
// recorded in the wrong order is reported as swapped. The returned bases are
// the span of the matching allele, or the span of ref when neither matches.
// An alt allele running past the contig end counts as not matching.
func (r *Reference) CheckRecord(chrom string, pos int64, ref, alt string) (AlleleStatus, string, error) {
	refBases, err := r.Fetch(chrom, pos-1, pos-1+alleleSpan(ref))
	if err != nil {
		return AlleleMismatched, "", err
	}
	if len(alt) == len(ref) {
		return CheckAlleles(ref, alt, refBases), refBases, nil
	}
	if strings.EqualFold(ref, refBases) {
		return AlleleMatched, refBases, nil
	}

	altBases, err := r.Fetch(chrom, pos-1, pos-1+alleleSpan(alt))
	var oor *CoordinateOutOfRangeError
	if errors.As(err, &oor) {
		return AlleleMismatched, refBases, nil
	}
	if err != nil {
		return AlleleMismatched, "", err
	}
	if strings.EqualFold(alt, altBases) {
		return AlleleSwapped, altBases, nil
	}
	return AlleleMismatched, refBases, nil
}

func alleleSpan(allele string) int64 {
	if allele == "" {
		return 1
	}
	return int64(len(allele))
}
