package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/genobench/internal/dataset"
	"github.com/inodb/genobench/internal/duckdb"
	"github.com/inodb/genobench/internal/fetch"
	"github.com/inodb/genobench/internal/genome"
	"github.com/inodb/genobench/internal/pipeline"
)

const testRegistryYAML = `
tasks:
  enhancer:
    Gasperini:
      name: Gasperini-like sample
      genome_version: hg38
      data_format: tsv
      score_column: ABC Score
      labeling:
        policy: provided
      adapter:
        kind: enhancer_pair
        columns:
          chrom: chr
          start: start
          end: end
          gene_name: TargetGene
          score: EffectSize
        label: Regulated
        extras: [ABC Score]
  eqtl:
    Tiny:
      name: Tiny eQTL sample
      genome_version: hg38
      data_format: tsv
      score_column: score
      labeling:
        policy: fixed_threshold
        pos: 0.90
        neg: 0.01
      adapter:
        kind: eqtl_variant
        one_based: true
        columns:
          variant_id: variant_id
          gene_name: gene_name
          score: pip
        extras: [biotype]
`

func testRegistry(t *testing.T) *dataset.Registry {
	t.Helper()
	reg, err := dataset.ParseRegistry([]byte(testRegistryYAML))
	require.NoError(t, err)
	return reg
}

// Forward gene with TSS 1,000,000 and reverse gene with TSS 3,000,000.
func testGenes() *genome.Index {
	return genome.NewIndex([]genome.Gene{
		{ID: "ENSG1", Name: "GF", Chrom: "chr1", Start: 1000000, End: 1050000, Strand: genome.Forward, Biotype: "protein_coding"},
		{ID: "ENSG2", Name: "GR", Chrom: "chr1", Start: 2950000, End: 3000000, Strand: genome.Reverse, Biotype: "protein_coding"},
		{ID: "ENSG3", Name: "GA", Chrom: "chr1", Start: 5, End: 25, Strand: genome.Forward, Biotype: "protein_coding"},
		{ID: "ENSG4", Name: "GB", Chrom: "chr1", Start: 5, End: 25, Strand: genome.Reverse, Biotype: "lncRNA"},
	})
}

// writeGasperiniLike writes 5,320 enhancer-gene pairs, 361 of them
// positive. 300 positives and 3,000 negatives lie within 100kb of the TSS;
// the remaining rows lie beyond it, and 20 far negatives name a gene that
// is not annotated.
func writeGasperiniLike(t *testing.T, path string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("chr\tstart\tend\tTargetGene\tEffectSize\tRegulated\tABC Score\n")

	row := func(i int, offset int64, positive bool, gene string) {
		strand := genome.Forward
		if gene == "GR" {
			strand = genome.Reverse
		}
		tss := int64(1000000)
		if strand == genome.Reverse {
			tss = 3000000
		}
		mid := tss - 1 + offset
		if strand == genome.Reverse {
			mid = tss - 1 - offset
		}
		abc := float64(i%60) / 100
		regulated := "FALSE"
		if positive {
			abc = 0.3 + float64(i%50)/100
			regulated = "TRUE"
		}
		fmt.Fprintf(&b, "chr1\t%d\t%d\t%s\t%.3f\t%s\t%.2f\n", mid-100, mid+100, gene, -abc, regulated, abc)
	}

	i := 0
	gene := func() string {
		if i%2 == 0 {
			return "GF"
		}
		return "GR"
	}
	for ; i < 300; i++ {
		row(i, int64(i*37)%90000, true, gene())
	}
	for ; i < 3300; i++ {
		row(i, int64(i*53)%100001, false, gene())
	}
	for ; i < 3361; i++ {
		row(i, 150000+int64(i), true, gene())
	}
	for ; i < 5300; i++ {
		row(i, 100001+int64(i), false, gene())
	}
	for ; i < 5320; i++ {
		row(i, int64(i), false, "NOT_ANNOTATED")
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func newGasperini(t *testing.T, root string, opts ...Option) *Orchestrator {
	t.Helper()
	src := filepath.Join(t.TempDir(), "Gasperini.tsv")
	writeGasperiniLike(t, src)

	opts = append([]Option{WithGenome(NewGenomeFromIndex("hg38", testGenes()))}, opts...)
	o, err := New(Config{CacheRoot: root, Task: "enhancer", Dataset: "Gasperini"},
		testRegistry(t), fetch.Local{Result: fetch.Result{DataPath: src}}, opts...)
	require.NoError(t, err)
	return o
}

func TestNew(t *testing.T) {
	reg := testRegistry(t)

	_, err := New(Config{Task: "enhancer", Dataset: "Gasperini"}, reg, nil)
	assert.Error(t, err, "empty cache root")

	_, err = New(Config{CacheRoot: "/", Task: "enhancer", Dataset: "Gasperini"}, reg, nil)
	assert.Error(t, err, "filesystem root")

	_, err = New(Config{CacheRoot: t.TempDir(), Task: "enhancer", Dataset: "Nope"}, reg, nil)
	assert.ErrorContains(t, err, "Gasperini")

	_, err = New(Config{CacheRoot: t.TempDir(), Task: "enhancer", Dataset: "Gasperini", Format: "xlsx"}, reg, nil)
	assert.Error(t, err)

	root := t.TempDir()
	o, err := New(Config{CacheRoot: root, Task: "enhancer", Dataset: "Gasperini"}, reg, nil)
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, o.State())
	assert.Equal(t, filepath.Join(root, "enhancer", "Gasperini"), o.DataDir())
	assert.Equal(t, filepath.Join(root, "enhancer", "Gasperini", "Gasperini_processed.tsv"), o.OutputPath())
}

func TestStageOrder(t *testing.T) {
	o := newGasperini(t, t.TempDir())

	var stageErr *StageError
	_, err := o.Parse()
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, Uninitialized, stageErr.Current)
	assert.Equal(t, RawFetched, stageErr.Minimum)

	_, err = o.Fetch(context.Background())
	require.NoError(t, err)
	_, err = o.Label(nil)
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, RawFetched, stageErr.Current)

	_, err = o.Evaluate("")
	require.ErrorAs(t, err, &stageErr)

	_, err = o.FilterProteinCoding()
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, RawFetched, o.State())
}

func TestStagesAreIdempotent(t *testing.T) {
	o := newGasperini(t, t.TempDir())
	ctx := context.Background()

	_, err := o.Fetch(ctx)
	require.NoError(t, err)
	rep, err := o.Parse()
	require.NoError(t, err)
	assert.Equal(t, 5320, rep.Rows)

	ann, err := o.AddStrandInfo()
	require.NoError(t, err)
	assert.Equal(t, AnnotateReport{Annotated: 5300, MissingGenes: 20}, ann)
	before := o.Table()

	// Re-running an earlier stage is a no-op.
	again, err := o.AddStrandInfo()
	require.NoError(t, err)
	assert.Zero(t, again)
	rep, err = o.Parse()
	require.NoError(t, err)
	assert.Equal(t, 5320, rep.Rows)
	assert.Same(t, before, o.Table())
	assert.Equal(t, Annotated, o.State())
}

func TestRun_GasperiniLike(t *testing.T) {
	root := t.TempDir()
	store, err := duckdb.Open(filepath.Join(root, LedgerFile))
	require.NoError(t, err)
	defer store.Close()

	o := newGasperini(t, root, WithStore(store))
	rep, err := o.Run(context.Background(), Plan{MinDistance: 0, MaxDistance: 100000})
	require.NoError(t, err)

	assert.Equal(t, 5320, rep.Parse.Rows)
	assert.Equal(t, 20, rep.Annotate.MissingGenes)
	assert.Equal(t, pipeline.FilterReport{Before: 5320, Kept: 3300, Dropped: 2020, NullDistance: 20}, rep.Distance)
	assert.Equal(t, 300, rep.Label.Positives)
	assert.Equal(t, 3000, rep.Label.Negatives)
	assert.Equal(t, SaveReport{Path: o.OutputPath(), Rows: 3300, Positives: 300, Negatives: 3000}, rep.Save)
	assert.Equal(t, Saved, o.State())

	dist, err := o.LabelDistribution()
	require.NoError(t, err)
	assert.Equal(t, 3300, dist.Total)
	assert.Equal(t, 300, dist.Positives)

	for _, r := range o.Table().Rows {
		require.True(t, r.Distance.Valid)
		d := r.Distance.Int64
		assert.True(t, d >= -100000 && d <= 100000, "distance %d", d)
	}

	_, err = os.Stat(o.OutputPath())
	require.NoError(t, err)
	_, err = os.Stat(o.OutputPath() + ".tmp")
	assert.True(t, os.IsNotExist(err))

	run, ok, err := store.LookupRun("enhancer", "Gasperini")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "saved", run.State)
	assert.Equal(t, int64(3300), run.Rows)
	assert.Equal(t, int64(300), run.Positives)
	assert.Equal(t, o.OutputPath(), run.OutputPath)

	total, positives, err := store.CountLabeledRows("enhancer", "Gasperini")
	require.NoError(t, err)
	assert.Equal(t, int64(3300), total)
	assert.Equal(t, int64(300), positives)

	m, err := o.Evaluate("")
	require.NoError(t, err)
	assert.Equal(t, 3300, m.N)
	assert.Greater(t, m.AUROC, 0.5)
	assert.LessOrEqual(t, m.AUROC, 1.0)

	// A second run skips every stage.
	rep, err = o.Run(context.Background(), Plan{MaxDistance: 100000})
	require.NoError(t, err)
	assert.Equal(t, 3300, rep.Save.Rows)
}

func TestRun_InvalidRange(t *testing.T) {
	o := newGasperini(t, t.TempDir())
	_, err := o.Run(context.Background(), Plan{MinDistance: 10, MaxDistance: 5})
	var rangeErr *pipeline.InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, Annotated, o.State())
	_, statErr := os.Stat(o.OutputPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestResume(t *testing.T) {
	root := t.TempDir()
	o := newGasperini(t, root)
	_, err := o.Run(context.Background(), Plan{MaxDistance: 100000})
	require.NoError(t, err)

	again := newGasperini(t, root)
	require.NoError(t, again.Resume())
	assert.Equal(t, Saved, again.State())
	assert.Equal(t, 3300, again.Table().Len())

	ma, err := o.Evaluate("ABC Score")
	require.NoError(t, err)
	mb, err := again.Evaluate("ABC Score")
	require.NoError(t, err)
	assert.InDelta(t, ma.AUROC, mb.AUROC, 1e-12)
	assert.InDelta(t, ma.AUPRC, mb.AUPRC, 1e-12)

	var stageErr *StageError
	require.ErrorAs(t, again.Resume(), &stageErr)

	missing := newGasperini(t, t.TempDir())
	assert.Error(t, missing.Resume())
}

func TestParquetOutput(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "Gasperini.tsv")
	writeGasperiniLike(t, src)

	o, err := New(Config{CacheRoot: root, Task: "enhancer", Dataset: "Gasperini", Format: FormatParquet},
		testRegistry(t), fetch.Local{Result: fetch.Result{DataPath: src}},
		WithGenome(NewGenomeFromIndex("hg38", testGenes())))
	require.NoError(t, err)

	rep, err := o.Run(context.Background(), Plan{MaxDistance: 100000})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(rep.Save.Path, "Gasperini_processed.parquet"))

	again, err := New(Config{CacheRoot: root, Task: "enhancer", Dataset: "Gasperini", Format: FormatParquet},
		testRegistry(t), nil)
	require.NoError(t, err)
	require.NoError(t, again.Resume())
	assert.Equal(t, 3300, again.Table().Len())
}
