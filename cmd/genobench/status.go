package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inodb/genobench/internal/duckdb"
	"github.com/inodb/genobench/internal/processor"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List processed datasets recorded in the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := cacheRoot()
			if err != nil {
				return err
			}
			store, err := duckdb.Open(filepath.Join(root, processor.LedgerFile))
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Runs()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No processed datasets.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK\tDATASET\tSTATE\tROWS\tPOSITIVES\tNEGATIVES\tUPDATED\tOUTPUT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					r.Task, r.Dataset, r.State, r.Rows, r.Positives, r.Negatives,
					r.UpdatedAt.Local().Format("2006-01-02 15:04"), r.OutputPath)
			}
			return tw.Flush()
		},
	}
}
