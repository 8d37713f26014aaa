package dataset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/genobench/internal/tableio"
)

func pairAdapter() *Adapter {
	return &Adapter{
		Name: "Fulco",
		Kind: KindEnhancerPair,
		Columns: map[string]string{
			"chrom": "chr", "start": "start", "end": "end",
			"gene_name": "TargetGene", "score": "EffectSize",
		},
		Label:  "Regulated",
		Extras: []string{"ABC Score"},
	}
}

func pairRaw(name string, rows ...[]string) *tableio.Raw {
	return &tableio.Raw{
		Name:    name,
		Header:  []string{"chr", "start", "end", "TargetGene", "EffectSize", "Regulated", "ABC Score"},
		Records: rows,
	}
}

func TestAdapter_EnhancerPair(t *testing.T) {
	raw := pairRaw("Fulco",
		[]string{"1", "1000", "1500", "GENE_A", "-0.25", "TRUE", "0.031"},
		[]string{"chrX", "20", "40", "GENE_B", "NA", "FALSE", "NA"},
	)

	tbl, err := pairAdapter().Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"ABC Score"}, tbl.Extra)

	r := tbl.Rows[0]
	assert.Equal(t, "chr1", r.Chrom)
	assert.Equal(t, int64(1000), r.Start)
	assert.Equal(t, int64(1500), r.End)
	assert.Equal(t, "GENE_A", r.GeneName)
	assert.Equal(t, null.FloatFrom(-0.25), r.Score)
	assert.Equal(t, null.IntFrom(1), r.Label)
	assert.Equal(t, null.StringFrom("0.031"), r.Extra[0])
	assert.False(t, r.GeneTSS.Valid)

	r = tbl.Rows[1]
	assert.Equal(t, null.IntFrom(0), r.Label)
	assert.False(t, r.Score.Valid)
	assert.False(t, r.Extra[0].Valid)

	require.NoError(t, tbl.Validate())
}

func TestAdapter_OneBasedConversion(t *testing.T) {
	a := pairAdapter()
	a.OneBased = true
	tbl, err := a.Parse(pairRaw("Fulco", []string{"chr1", "1000", "1500", "G", "0", "1", "0"}))
	require.NoError(t, err)
	assert.Equal(t, int64(999), tbl.Rows[0].Start)
	assert.Equal(t, int64(1500), tbl.Rows[0].End)
}

func TestAdapter_SchemaMismatch(t *testing.T) {
	raw := &tableio.Raw{
		Name:   "Fulco",
		Header: []string{"chr", "end", "EffectSize"},
	}
	_, err := pairAdapter().Parse(raw)

	var sm *SchemaMismatchError
	require.True(t, errors.As(err, &sm))
	assert.Equal(t, "Fulco", sm.Dataset)
	assert.Equal(t, []string{"start", "TargetGene", "Regulated", "ABC Score"}, sm.Missing)
}

func TestAdapter_BadValues(t *testing.T) {
	tests := []struct {
		name   string
		row    []string
		column string
	}{
		{"bad start", []string{"chr1", "x", "10", "G", "0", "1", "0"}, "start"},
		{"negative start", []string{"chr1", "-5", "10", "G", "0", "1", "0"}, "start"},
		{"bad score", []string{"chr1", "1", "10", "G", "high", "1", "0"}, "EffectSize"},
		{"bad label", []string{"chr1", "1", "10", "G", "0", "maybe", "0"}, "Regulated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pairAdapter().Parse(pairRaw("Fulco", tt.row))
			var ve *ValueError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.column, ve.Column)
			assert.Equal(t, 0, ve.Row)
		})
	}
}

func TestAdapter_WrongRawCount(t *testing.T) {
	_, err := pairAdapter().Parse()
	assert.Error(t, err)

	_, err = pairAdapter().Parse(pairRaw("a"), pairRaw("b"))
	assert.Error(t, err)
}

func mergedAdapter() *Adapter {
	a := pairAdapter()
	a.Name = "Merged"
	a.Kind = KindMergedEnhancer
	a.Sources = []string{"Fulco", "Gasperini"}
	return a
}

func TestAdapter_MergedPrecedence(t *testing.T) {
	gasperini := pairRaw("Gasperini",
		[]string{"chr1", "100", "200", "GENE_A", "0.1", "0", "0.5"}, // loses to Fulco
		[]string{"chr1", "300", "400", "GENE_B", "0.2", "1", "0.6"}, // unique
	)
	fulco := pairRaw("Fulco",
		[]string{"chr1", "100", "200", "GENE_A", "0.9", "1", "0.7"},
		[]string{"chr2", "10", "20", "GENE_C", "0.3", "0", "0.1"},
	)
	other := pairRaw("Schraivogel",
		[]string{"chr1", "300", "400", "GENE_B", "0.4", "0", "0.2"}, // unlisted ranks last
		[]string{"chr2", "10", "20", "GENE_C", "0.5", "1", "0.3"},   // loses to Fulco
	)

	tbl, err := mergedAdapter().Parse(gasperini, fulco, other)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC Score", "source"}, tbl.Extra)
	require.Equal(t, 3, tbl.Len())

	// Order of first appearance: GENE_A, GENE_B (both from Gasperini), GENE_C.
	assert.Equal(t, "GENE_A", tbl.Rows[0].GeneName)
	assert.Equal(t, "Fulco", tbl.Rows[0].Extra[1].String)
	assert.Equal(t, null.FloatFrom(0.9), tbl.Rows[0].Score)

	assert.Equal(t, "GENE_B", tbl.Rows[1].GeneName)
	assert.Equal(t, "Gasperini", tbl.Rows[1].Extra[1].String)

	assert.Equal(t, "GENE_C", tbl.Rows[2].GeneName)
	assert.Equal(t, "Fulco", tbl.Rows[2].Extra[1].String)
	assert.Equal(t, null.IntFrom(0), tbl.Rows[2].Label)
}

func TestAdapter_MergedEqualRankKeepsFirst(t *testing.T) {
	a := mergedAdapter()
	a.Sources = nil

	first := pairRaw("X", []string{"chr1", "1", "2", "G", "0.1", "1", "0"})
	second := pairRaw("Y", []string{"chr1", "1", "2", "G", "0.2", "0", "0"})

	tbl, err := a.Parse(first, second)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "X", tbl.Rows[0].Extra[1].String)
}

func TestAdapter_MergedSourceColumn(t *testing.T) {
	a := mergedAdapter()
	a.Source = "dataset"

	raw := &tableio.Raw{
		Name:   "Merged",
		Header: []string{"chr", "start", "end", "TargetGene", "EffectSize", "Regulated", "ABC Score", "dataset"},
		Records: [][]string{
			{"chr1", "1", "2", "G", "0.1", "0", "0", "Gasperini"},
			{"chr1", "1", "2", "G", "0.2", "1", "0", "Fulco"},
			{"chr1", "5", "9", "H", "0.3", "1", "0", "NA"},
		},
	}

	tbl, err := a.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "Fulco", tbl.Rows[0].Extra[1].String)
	assert.Equal(t, null.IntFrom(1), tbl.Rows[0].Label)
	// A null source falls back to the raw table's name.
	assert.Equal(t, "Merged", tbl.Rows[1].Extra[1].String)
}

func eqtlAdapter() *Adapter {
	return &Adapter{
		Name:     "Adipose_Subcutaneous",
		Kind:     KindEQTLVariant,
		OneBased: true,
		Columns: map[string]string{
			"variant_id": "variant_id", "gene_name": "gene_name", "score": "pip",
		},
		Extras: []string{"biotype"},
	}
}

func TestAdapter_EQTLVariant(t *testing.T) {
	raw := &tableio.Raw{
		Name:   "Adipose_Subcutaneous",
		Header: []string{"variant_id", "gene_name", "pip", "biotype"},
		Records: [][]string{
			{"chr1_1291731_TG_T_b38", "GENE_A", "0.95", "protein_coding"},
			{"X_500_a_g_b38", "GENE_B", "0.005", "lncRNA"},
		},
	}

	tbl, err := eqtlAdapter().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"variant_id", "ref", "alt", "biotype"}, tbl.Extra)
	require.Equal(t, 2, tbl.Len())

	r := tbl.Rows[0]
	assert.Equal(t, "chr1", r.Chrom)
	assert.Equal(t, int64(1291730), r.Start)
	assert.Equal(t, int64(1291732), r.End)
	assert.Equal(t, null.FloatFrom(0.95), r.Score)
	assert.False(t, r.Label.Valid)
	assert.Equal(t, "TG", r.Extra[1].String)
	assert.Equal(t, "T", r.Extra[2].String)
	assert.Equal(t, "protein_coding", r.Extra[3].String)

	r = tbl.Rows[1]
	assert.Equal(t, "chrX", r.Chrom)
	assert.Equal(t, int64(499), r.Start)
	assert.Equal(t, int64(500), r.End)
	assert.Equal(t, "A", r.Extra[1].String)

	require.NoError(t, tbl.Validate())
}

func TestAdapter_EQTLBadVariantID(t *testing.T) {
	raw := &tableio.Raw{
		Header:  []string{"variant_id", "gene_name", "pip", "biotype"},
		Records: [][]string{{"chr1-100-A-G", "G", "0.5", "x"}},
	}
	_, err := eqtlAdapter().Parse(raw)
	var ve *ValueError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "variant_id", ve.Column)
}

func TestParseVariantID(t *testing.T) {
	v, err := ParseVariantID("chr1_1291731_TG_T_b38")
	require.NoError(t, err)
	assert.Equal(t, Variant{Chrom: "chr1", Pos: 1291731, Ref: "TG", Alt: "T", Build: "b38"}, v)

	v, err = ParseVariantID("MT_10_A_C")
	require.NoError(t, err)
	assert.Equal(t, "chrM", v.Chrom)
	assert.Empty(t, v.Build)

	for _, bad := range []string{"chr1_x_A_G", "chr1_0_A_G", "chr1_5__G", "chr1_5_A"} {
		_, err := ParseVariantID(bad)
		assert.Error(t, err, "ParseVariantID(%q)", bad)
	}
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected null.Int
	}{
		{"TRUE", null.IntFrom(1)},
		{"true", null.IntFrom(1)},
		{"1", null.IntFrom(1)},
		{"yes", null.IntFrom(1)},
		{"FALSE", null.IntFrom(0)},
		{"0", null.IntFrom(0)},
		{"No", null.IntFrom(0)},
		{"NA", null.Int{}},
	}
	for _, tt := range tests {
		got, err := ParseLabel(tt.input)
		require.NoError(t, err, "ParseLabel(%q)", tt.input)
		assert.Equal(t, tt.expected, got, "ParseLabel(%q)", tt.input)
	}

	_, err := ParseLabel("2")
	assert.Error(t, err)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "enhancer_pair", KindEnhancerPair.String())
	assert.Equal(t, "merged_enhancer", KindMergedEnhancer.String())
	assert.Equal(t, "eqtl_variant", KindEQTLVariant.String())
}
