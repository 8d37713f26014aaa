package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDatasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets [task]",
		Short: "List available tasks and datasets",
		Example: `  genobench datasets            # all tasks
  genobench datasets enhancer   # datasets of one task`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			tasks := e.registry.Tasks()
			if len(args) == 1 {
				tasks = args[:1]
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK\tDATASET\tGENOME\tLABELS\tDESCRIPTION")
			for _, task := range tasks {
				names, err := e.registry.Datasets(task)
				if err != nil {
					return err
				}
				for _, name := range names {
					ds, _ := e.registry.Lookup(task, name)
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", task, name, ds.GenomeVersion, ds.Labeling.Policy, ds.Description)
				}
			}
			return tw.Flush()
		},
	}
}
