package genome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAlleles(t *testing.T) {
	tests := []struct {
		name     string
		ref, alt string
		genomic  string
		expected AlleleStatus
	}{
		{"ref matches", "A", "G", "A", AlleleMatched},
		{"alt matches genome", "A", "G", "G", AlleleSwapped},
		{"neither matches", "A", "G", "T", AlleleMismatched},
		{"case insensitive", "a", "g", "A", AlleleMatched},
		{"multi-base ref", "ACG", "A", "ACG", AlleleMatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CheckAlleles(tt.ref, tt.alt, tt.genomic))
		})
	}
}

func TestReference_CheckRecord(t *testing.T) {
	ref := openTestReference(t)

	status, genomic, err := ref.CheckRecord("chr1", 11, "G", "C")
	require.NoError(t, err)
	assert.Equal(t, AlleleMatched, status)
	assert.Equal(t, "G", genomic)

	status, _, err = ref.CheckRecord("chr1", 11, "A", "G")
	require.NoError(t, err)
	assert.Equal(t, AlleleSwapped, status)

	status, genomic, err = ref.CheckRecord("chr1", 1, "ACG", "A")
	require.NoError(t, err)
	assert.Equal(t, AlleleMatched, status)
	assert.Equal(t, "ACG", genomic)

	_, _, err = ref.CheckRecord("chr1", 40, "A", "G")
	assert.Error(t, err)
}

func TestReference_CheckRecord_Indels(t *testing.T) {
	ref := openTestReference(t)

	tests := []struct {
		name     string
		chrom    string
		pos      int64
		ref, alt string
		status   AlleleStatus
		genomic  string
	}{
		{"insertion swapped", "chr1", 10, "T", "CG", AlleleSwapped, "CG"},
		{"deletion swapped", "chr1", 15, "T", "gc", AlleleSwapped, "GC"},
		{"deletion matched", "chr1", 15, "GC", "G", AlleleMatched, "GC"},
		{"neither allele", "chr1", 10, "T", "CA", AlleleMismatched, "C"},
		{"alt past contig end", "chr2", 6, "A", "CTT", AlleleMismatched, "C"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, genomic, err := ref.CheckRecord(tt.chrom, tt.pos, tt.ref, tt.alt)
			require.NoError(t, err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.genomic, genomic)
		})
	}
}

func TestAlleleStatus_String(t *testing.T) {
	assert.Equal(t, "matched", AlleleMatched.String())
	assert.Equal(t, "swapped", AlleleSwapped.String())
	assert.Equal(t, "mismatched", AlleleMismatched.String())
}
