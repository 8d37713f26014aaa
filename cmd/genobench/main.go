// Package main provides the genobench command-line tool.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/genobench/internal/dataset"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Configuration keys.
const (
	keyCacheRoot = "cache_root"
	keyOutputDir = "output_dir"
	keyLogLevel  = "log.level"
	keyFormat    = "format"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "genobench",
		Short: "Genomic benchmark dataset processor",
		Long: `genobench downloads enhancer-gene and eQTL benchmark datasets, normalizes
them into a canonical table, annotates them against a gene model, derives
labels and computes AUROC/AUPRC for a score column.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/.genobench.yaml)")
	pf.String("cache-root", "", "Cache root directory (default: ~/.cache/genomics_benchmark)")
	pf.String("output-dir", "", "Directory for processed tables (default: cache root)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	viper.BindPFlag(keyCacheRoot, pf.Lookup("cache-root"))
	viper.BindPFlag(keyOutputDir, pf.Lookup("output-dir"))
	viper.BindPFlag(keyLogLevel, pf.Lookup("log-level"))

	cmd.AddCommand(
		newDatasetsCmd(),
		newDownloadCmd(),
		newProcessCmd(),
		newFilterCmd(),
		newEvaluateCmd(),
		newCheckRefCmd(),
		newClearCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return cmd
}

// initConfig loads ~/.genobench.yaml (or cfgFile) and the environment.
// GENOMIC_BENCHMARK_CACHE_ROOT is honoured as well as GENOBENCH_CACHE_ROOT.
func initConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".genobench")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GENOBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.BindEnv(keyCacheRoot, "GENOBENCH_CACHE_ROOT", "GENOMIC_BENCHMARK_CACHE_ROOT")

	viper.SetDefault(keyLogLevel, "info")
	viper.SetDefault(keyFormat, "tsv")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// cacheRoot returns the configured cache root.
func cacheRoot() (string, error) {
	if root := viper.GetString(keyCacheRoot); root != "" {
		return root, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "genomics_benchmark"), nil
}

// newLogger builds a console logger writing to stderr.
func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString(keyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// env bundles what every subcommand needs.
type env struct {
	registry  *dataset.Registry
	logger    *zap.Logger
	cacheRoot string
	outputDir string
}

func newEnv() (*env, error) {
	reg, err := dataset.Default()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	root, err := cacheRoot()
	if err != nil {
		return nil, err
	}
	return &env{
		registry:  reg,
		logger:    logger,
		cacheRoot: root,
		outputDir: viper.GetString(keyOutputDir),
	}, nil
}

func (e *env) close() {
	e.logger.Sync()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "genobench version %s (%s) built %s\n", version, commit, date)
		},
	}
}
