package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/genobench/internal/output"
	"github.com/inodb/genobench/internal/pipeline"
	"github.com/inodb/genobench/internal/processor"
	"github.com/inodb/genobench/internal/tableio"
)

func newEvaluateCmd() *cobra.Command {
	var (
		input  string
		scores []string
	)

	cmd := &cobra.Command{
		Use:   "evaluate [task dataset]",
		Short: "Compute AUROC and AUPRC of score columns",
		Example: `  genobench evaluate enhancer Gasperini --score "ABC Score"
  genobench evaluate --input labeled.tsv --score score --score distance`,
		Args: func(cmd *cobra.Command, args []string) error {
			if input != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := output.NewTabWriter(cmd.OutOrStdout())
			if err := tw.WriteHeader(); err != nil {
				return err
			}

			if input != "" {
				t, err := tableio.LoadTable(input)
				if err != nil {
					return err
				}
				if len(scores) == 0 {
					scores = []string{"score"}
				}
				for _, s := range scores {
					m, err := pipeline.Evaluate(t, s)
					if err != nil {
						return fmt.Errorf("evaluate %s: %w", s, err)
					}
					if err := tw.Write(output.MetricsRow{Dataset: input, ScoreColumn: s, Metrics: m}); err != nil {
						return err
					}
				}
				return tw.Flush()
			}

			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			task, name := args[0], args[1]
			o, err := processor.New(processor.Config{
				CacheRoot: e.cacheRoot,
				OutputDir: e.outputDir,
				Task:      task,
				Dataset:   name,
				Format:    viper.GetString(keyFormat),
			}, e.registry, nil, processor.WithLogger(e.logger))
			if err != nil {
				return err
			}
			if err := o.Resume(); err != nil {
				return fmt.Errorf("%w (run: genobench process %s %s)", err, task, name)
			}

			if len(scores) == 0 {
				scores = []string{o.Dataset().ScoreColumn}
			}
			for _, s := range scores {
				m, err := o.Evaluate(s)
				if err != nil {
					return fmt.Errorf("evaluate %s: %w", s, err)
				}
				if err := tw.Write(output.MetricsRow{Task: task, Dataset: name, ScoreColumn: s, Metrics: m}); err != nil {
					return err
				}
			}
			return tw.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&input, "input", "", "Evaluate a labeled table file instead of a processed dataset")
	f.StringArrayVar(&scores, "score", nil, "Score column (repeatable; default: dataset score column)")
	return cmd
}
