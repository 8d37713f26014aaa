package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/genobench/internal/fetch"
	"github.com/inodb/genobench/internal/fileutil"
	"github.com/inodb/genobench/internal/output"
	"github.com/inodb/genobench/internal/processor"
)

func newCheckRefCmd() *cobra.Command {
	var (
		fasta  string
		report string
	)

	cmd := &cobra.Command{
		Use:   "check-ref <task> <dataset>",
		Short: "Compare ref/alt alleles of a processed dataset with the reference genome",
		Long: `Classify the alleles of every row of a processed variant dataset as
matched, swapped (ref and alt reversed relative to the genome) or mismatched.`,
		Example: `  genobench check-ref eqtl Adipose_Subcutaneous --report alleles.tsv`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			task, name := args[0], args[1]
			ds, err := e.registry.Lookup(task, name)
			if err != nil {
				return err
			}

			if fasta == "" {
				client := fetch.NewClient(e.registry, fetch.WithLogger(e.logger), fetch.WithProgress(cmd.ErrOrStderr()))
				files, err := client.FetchGenome(cmd.Context(), ds.GenomeVersion, genomeDir(e.cacheRoot, ds.GenomeVersion), false)
				if err != nil {
					return err
				}
				fasta = files.FastaPath
			}
			g := processor.NewGenome(ds.GenomeVersion, "", fasta, "")
			defer g.Close()

			o, err := processor.New(processor.Config{
				CacheRoot: e.cacheRoot,
				OutputDir: e.outputDir,
				Task:      task,
				Dataset:   name,
				Format:    viper.GetString(keyFormat),
			}, e.registry, nil, processor.WithLogger(e.logger), processor.WithGenome(g))
			if err != nil {
				return err
			}
			if err := o.Resume(); err != nil {
				return fmt.Errorf("%w (run: genobench process %s %s)", err, task, name)
			}

			sum, checks, err := o.CheckReference(false)
			if err != nil {
				return err
			}
			if report != "" {
				err := fileutil.WriteAtomic(report, func(w io.Writer) error {
					return output.WriteAlleleChecks(w, checks)
				})
				if err != nil {
					return err
				}
			}
			return output.WriteAlleleSummary(cmd.OutOrStdout(), sum)
		},
	}

	f := cmd.Flags()
	f.StringVar(&fasta, "fasta", "", "Reference FASTA (default: downloaded for the dataset genome)")
	f.StringVar(&report, "report", "", "Write a per-row allele report (TSV)")
	return cmd
}
