package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inodb/genobench/internal/duckdb"
	"github.com/inodb/genobench/internal/processor"
)

func newClearCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear <task> <dataset> | --all",
		Short: "Remove cached downloads and processed tables",
		Long: `Remove the cached files and processed outputs of one dataset. Pass --all
to remove every entry under the cache root. This cannot be undone.`,
		Example: `  genobench clear enhancer Fulco
  genobench clear --all`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			store, err := duckdb.Open(filepath.Join(e.cacheRoot, processor.LedgerFile))
			if err != nil {
				return err
			}
			defer store.Close()

			scope := processor.ScopeDataset
			task, name := "", ""
			if all {
				scope = processor.ScopeAll
				// Any registered dataset anchors the orchestrator.
				task = e.registry.Tasks()[0]
				names, err := e.registry.Datasets(task)
				if err != nil {
					return err
				}
				name = names[0]
			} else {
				task, name = args[0], args[1]
			}

			o, err := processor.New(processor.Config{
				CacheRoot: e.cacheRoot,
				OutputDir: e.outputDir,
				Task:      task,
				Dataset:   name,
			}, e.registry, nil, processor.WithLogger(e.logger), processor.WithStore(store))
			if err != nil {
				return err
			}
			if err := o.ClearCache(scope); err != nil {
				return err
			}

			if all {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", e.cacheRoot)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s/%s\n", task, name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every dataset under the cache root")
	return cmd
}
