package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inodb/genobench/internal/fetch"
	"github.com/inodb/genobench/internal/processor"
)

func newDownloadCmd() *cobra.Command {
	var (
		raw      bool
		force    bool
		genomeV  string
		withSeqs bool
	)

	cmd := &cobra.Command{
		Use:   "download [task dataset]",
		Short: "Download dataset or genome files into the cache",
		Example: `  genobench download enhancer Gasperini        # data and info files
  genobench download eqtl Adipose_Subcutaneous --raw
  genobench download --genome hg38 --fasta     # GTF and FASTA`,
		Args: func(cmd *cobra.Command, args []string) error {
			if genomeV != "" {
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

			client := fetch.NewClient(e.registry,
				fetch.WithLogger(e.logger),
				fetch.WithProgress(os.Stderr),
				fetch.WithForce(force))
			out := cmd.OutOrStdout()

			if genomeV != "" {
				files, err := client.FetchGenome(cmd.Context(), genomeV, genomeDir(e.cacheRoot, genomeV), !withSeqs)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "GTF:   %s\n", files.GTFPath)
				if files.FastaPath != "" {
					fmt.Fprintf(out, "FASTA: %s\n", files.FastaPath)
				}
				return nil
			}

			task, name := args[0], args[1]
			res, err := client.Fetch(cmd.Context(), task, name, filepath.Join(e.cacheRoot, task, name), raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Data: %s\n", res.DataPath)
			if res.InfoPath != "" {
				fmt.Fprintf(out, "Info: %s\n", res.InfoPath)
			}
			if res.RawPath != "" {
				fmt.Fprintf(out, "Raw:  %s\n", res.RawPath)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&raw, "raw", false, "Also download the raw source file")
	f.BoolVar(&force, "force", false, "Re-download files already in the cache")
	f.StringVar(&genomeV, "genome", "", "Download gene model files for a genome version instead")
	f.BoolVar(&withSeqs, "fasta", false, "With --genome, also download the reference FASTA")
	return cmd
}

// genomeDir is where gene model, FASTA and index cache of a version live.
func genomeDir(root, version string) string {
	return filepath.Join(root, "genomes", version)
}

// openGenome resolves the gene model for version, downloading it unless
// gtfPath is given. The FASTA is downloaded only when needFasta is set and
// fastaPath is empty.
func openGenome(cmd *cobra.Command, e *env, version, gtfPath, fastaPath string, needFasta bool) (*processor.Genome, error) {
	dir := genomeDir(e.cacheRoot, version)
	if gtfPath == "" || (needFasta && fastaPath == "") {
		client := fetch.NewClient(e.registry, fetch.WithLogger(e.logger), fetch.WithProgress(os.Stderr))
		files, err := client.FetchGenome(cmd.Context(), version, dir, !needFasta || fastaPath != "")
		if err != nil {
			return nil, fmt.Errorf("fetch genome %s: %w", version, err)
		}
		if gtfPath == "" {
			gtfPath = files.GTFPath
		}
		if fastaPath == "" {
			fastaPath = files.FastaPath
		}
	}

	g := processor.NewGenome(version, gtfPath, fastaPath, dir)
	g.SetLogger(e.logger)
	return g, nil
}
