package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/genobench/internal/duckdb"
	"github.com/inodb/genobench/internal/fetch"
	"github.com/inodb/genobench/internal/output"
	"github.com/inodb/genobench/internal/pipeline"
	"github.com/inodb/genobench/internal/processor"
)

type processOptions struct {
	input          string
	gtf            string
	fasta          string
	format         string
	minDistance    int64
	maxDistance    int64
	proteinCoding  bool
	snpOnly        bool
	pos            float64
	neg            float64
	raw            bool
	checkRef       bool
	correctSwapped bool
	vcf            bool
	score          string
}

func newProcessCmd() *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process <task> <dataset>",
		Short: "Run the full pipeline for a dataset",
		Long: `Fetch, parse, annotate, filter by distance, label and save a dataset.
Stages already completed in this invocation are skipped. The processed table
is written to <output-dir>/<task>/<dataset>/<dataset>_processed.tsv.`,
		Example: `  genobench process enhancer Gasperini --max-distance 100000
  genobench process eqtl Adipose_Subcutaneous --protein-coding --snp-only \
      --max-distance 100000 --check-ref --correct-swapped --vcf`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, args[0], args[1], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "Use a local data file instead of downloading")
	f.StringVar(&opts.gtf, "gtf", "", "Gene model GTF (default: downloaded for the dataset genome)")
	f.StringVar(&opts.fasta, "fasta", "", "Reference FASTA for --check-ref (default: downloaded)")
	f.StringVar(&opts.format, "format", "", "Output format: tsv or parquet")
	f.Int64Var(&opts.minDistance, "min-distance", 0, "Minimum absolute distance to the TSS")
	f.Int64Var(&opts.maxDistance, "max-distance", 0, "Maximum absolute distance to the TSS (0: unbounded)")
	f.BoolVar(&opts.proteinCoding, "protein-coding", false, "Keep only protein-coding genes")
	f.BoolVar(&opts.snpOnly, "snp-only", false, "Keep only single-base substitutions")
	f.Float64Var(&opts.pos, "pos-threshold", 0, "Positive score threshold (overrides the dataset default)")
	f.Float64Var(&opts.neg, "neg-threshold", 0, "Negative score threshold (overrides the dataset default)")
	f.BoolVar(&opts.raw, "raw", false, "Also download the raw source file")
	f.BoolVar(&opts.checkRef, "check-ref", false, "Compare ref/alt alleles with the reference genome")
	f.BoolVar(&opts.correctSwapped, "correct-swapped", false, "With --check-ref, exchange swapped ref/alt alleles")
	f.BoolVar(&opts.vcf, "vcf", false, "Export positive.vcf and negative.vcf")
	f.StringVar(&opts.score, "score", "", "Score column to evaluate (default: dataset score column)")
	viper.BindPFlag(keyFormat, f.Lookup("format"))
	return cmd
}

func runProcess(cmd *cobra.Command, task, name string, opts processOptions) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ds, err := e.registry.Lookup(task, name)
	if err != nil {
		return err
	}

	var fetcher processor.Fetcher = fetch.NewClient(e.registry,
		fetch.WithLogger(e.logger), fetch.WithProgress(cmd.ErrOrStderr()))
	if opts.input != "" {
		fetcher = fetch.Local{Result: fetch.Result{DataPath: opts.input}}
	}

	g, err := openGenome(cmd, e, ds.GenomeVersion, opts.gtf, opts.fasta, opts.checkRef)
	if err != nil {
		return err
	}
	defer g.Close()

	store, err := duckdb.Open(filepath.Join(e.cacheRoot, processor.LedgerFile))
	if err != nil {
		return err
	}
	defer store.Close()

	o, err := processor.New(processor.Config{
		CacheRoot:   e.cacheRoot,
		OutputDir:   e.outputDir,
		Task:        task,
		Dataset:     name,
		Format:      viper.GetString(keyFormat),
		DownloadRaw: opts.raw,
	}, e.registry, fetcher,
		processor.WithLogger(e.logger),
		processor.WithStore(store),
		processor.WithGenome(g))
	if err != nil {
		return err
	}

	policy, err := processor.DefaultPolicy(ds)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("pos-threshold") || cmd.Flags().Changed("neg-threshold") {
		ft, ok := policy.(pipeline.FixedThreshold)
		if !ok {
			return fmt.Errorf("dataset %s uses provided labels; thresholds do not apply", name)
		}
		if cmd.Flags().Changed("pos-threshold") {
			ft.Pos = opts.pos
		}
		if cmd.Flags().Changed("neg-threshold") {
			ft.Neg = opts.neg
		}
		policy = ft
	}

	plan := processor.Plan{
		MinDistance:       opts.minDistance,
		MaxDistance:       opts.maxDistance,
		ProteinCodingOnly: opts.proteinCoding,
		SNPOnly:           opts.snpOnly,
		Policy:            policy,
	}

	ctx := cmd.Context()
	if _, err := o.Fetch(ctx); err != nil {
		return err
	}
	if _, err := o.Parse(); err != nil {
		return err
	}
	if opts.checkRef {
		sum, _, err := o.CheckReference(opts.correctSwapped)
		if err != nil {
			return err
		}
		if err := output.WriteAlleleSummary(cmd.OutOrStdout(), sum); err != nil {
			return err
		}
	}

	rep, err := o.Run(ctx, plan)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Saved %d rows to %s\n", rep.Save.Rows, rep.Save.Path)
	dist, err := o.LabelDistribution()
	if err != nil {
		return err
	}
	if err := output.WriteDistribution(out, task+"/"+name, dist); err != nil {
		return err
	}

	if opts.vcf {
		exp, err := o.ExportVCF("")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "VCF: %s, %s\n", exp.PositivePath, exp.NegativePath)
	}

	return printMetrics(out, e.logger, o, task, name, opts.score)
}

// printMetrics writes AUROC/AUPRC of score. Single-class tables are logged
// rather than treated as failures.
func printMetrics(w io.Writer, logger *zap.Logger, o *processor.Orchestrator, task, name, score string) error {
	m, err := o.Evaluate(score)
	if err != nil {
		var diversity *pipeline.InsufficientClassDiversityError
		if errors.As(err, &diversity) {
			logger.Warn("metrics undefined", zap.Error(err))
			return nil
		}
		return err
	}
	if score == "" {
		score = o.Dataset().ScoreColumn
	}

	tw := output.NewTabWriter(w)
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	if err := tw.Write(output.MetricsRow{Task: task, Dataset: name, ScoreColumn: score, Metrics: m}); err != nil {
		return err
	}
	return tw.Flush()
}
