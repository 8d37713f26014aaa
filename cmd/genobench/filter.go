package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/inodb/genobench/internal/pipeline"
	"github.com/inodb/genobench/internal/tableio"
)

func newFilterCmd() *cobra.Command {
	var (
		minDistance   int64
		maxDistance   int64
		proteinCoding bool
		snpOnly       bool
	)

	cmd := &cobra.Command{
		Use:   "filter <input> <output>",
		Short: "Filter a canonical table by distance to the TSS",
		Long: `Recompute distances of an annotated canonical table (TSV or Parquet)
and keep rows with min <= |distance| <= max. Rows without gene_tss or strand
are dropped and counted.`,
		Example: `  genobench filter Gasperini_processed.tsv near.tsv --max-distance 100000`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tableio.LoadTable(args[0])
			if err != nil {
				return err
			}

			if proteinCoding {
				if t, _, err = pipeline.FilterProteinCoding(t); err != nil {
					return err
				}
			}
			if snpOnly {
				if t, _, err = pipeline.FilterSNPOnly(t); err != nil {
					return err
				}
			}

			high := maxDistance
			if high == 0 {
				high = math.MaxInt64
			}
			withDist, _ := pipeline.ComputeDistance(t)
			out, rep, err := pipeline.FilterByDistance(withDist, minDistance, high)
			if err != nil {
				return err
			}
			if err := tableio.SaveTable(out, args[1]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Kept %d of %d rows (%d without distance) -> %s\n",
				rep.Kept, rep.Before, rep.NullDistance, args[1])
			return nil
		},
	}

	f := cmd.Flags()
	f.Int64Var(&minDistance, "min-distance", 0, "Minimum absolute distance to the TSS")
	f.Int64Var(&maxDistance, "max-distance", 0, "Maximum absolute distance to the TSS (0: unbounded)")
	f.BoolVar(&proteinCoding, "protein-coding", false, "Keep only rows with biotype protein_coding")
	f.BoolVar(&snpOnly, "snp-only", false, "Keep only single-base ref/alt rows")
	return cmd
}
