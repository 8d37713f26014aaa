package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/inodb/genobench/internal/fileutil"
	"github.com/inodb/genobench/internal/processor"
)

// configKey describes a setting that may be persisted in the config file.
type configKey struct {
	name  string
	usage string
	check func(string) error
}

var configKeys = []configKey{
	{name: keyCacheRoot, usage: "downloads, genomes and the run ledger"},
	{name: keyOutputDir, usage: "processed tables (default: cache root)"},
	{name: keyFormat, usage: "processed table format: tsv, parquet", check: checkFormat},
	{name: keyLogLevel, usage: "debug, info, warn, error", check: checkLogLevel},
}

func lookupConfigKey(name string) (configKey, error) {
	for _, k := range configKeys {
		if k.name == name {
			return k, nil
		}
	}
	return configKey{}, fmt.Errorf("unknown config key %q (known: %s)", name, strings.Join(configKeyNames(), ", "))
}

func checkFormat(v string) error {
	switch v {
	case processor.FormatTSV, processor.FormatParquet:
		return nil
	}
	return fmt.Errorf("unsupported output format %q", v)
}

func checkLogLevel(v string) error {
	_, err := zapcore.ParseLevel(v)
	return err
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage genobench configuration",
		Long: `Show, get, or set configuration values. Values are stored in ~/.genobench.yaml
unless --config names another file. Environment variables (GENOBENCH_CACHE_ROOT,
GENOBENCH_FORMAT, ...) and flags take precedence over the file.`,
		Example: `  genobench config                                 # show effective config
  genobench config set cache_root /data/benchmarks  # move the cache
  genobench config get format                       # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
		ValidArgsFunction: completeConfigKey,
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a configuration key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
		ValidArgsFunction: completeConfigKey,
	}
}

// effective resolves a key the way subcommands see it.
func effective(name string) (string, error) {
	if name == keyCacheRoot {
		return cacheRoot()
	}
	return viper.GetString(name), nil
}

func runConfigShow(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tDESCRIPTION")
	for _, k := range configKeys {
		v, err := effective(k.name)
		if err != nil {
			return err
		}
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k.name, v, k.usage)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(w, "\nConfig file: %s\n", used)
	}
	return nil
}

func runConfigGet(w io.Writer, name string) error {
	if _, err := lookupConfigKey(name); err != nil {
		return err
	}
	v, err := effective(name)
	if err != nil {
		return err
	}
	if v == "" {
		return fmt.Errorf("key %q is not set", name)
	}
	fmt.Fprintln(w, v)
	return nil
}

// runConfigSet rewrites only the config file's own settings, so values that
// came from flags or the environment are not persisted by accident.
func runConfigSet(w io.Writer, name, value string) error {
	key, err := lookupConfigKey(name)
	if err != nil {
		return err
	}
	if key.check != nil {
		if err := key.check(value); err != nil {
			return err
		}
	}

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".genobench.yaml")
	}

	settings, err := readConfigFile(cfgFile)
	if err != nil {
		return err
	}
	setNested(settings, strings.Split(name, "."), value)

	err = fileutil.WriteAtomic(cfgFile, func(out io.Writer) error {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(settings); err != nil {
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %s in %s\n", name, value, cfgFile)
	return nil
}

func readConfigFile(path string) (map[string]any, error) {
	settings := map[string]any{}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, nil
}

// setNested assigns value at a dotted path, creating intermediate maps.
func setNested(m map[string]any, path []string, value string) {
	for _, p := range path[:len(path)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[p] = child
		}
		m = child
	}
	m[path[len(path)-1]] = value
}

func completeConfigKey(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return configKeyNames(), cobra.ShellCompDirectiveNoFileComp
}

func configKeyNames() []string {
	names := make([]string, 0, len(configKeys))
	for _, k := range configKeys {
		names = append(names, k.name)
	}
	sort.Strings(names)
	return names
}
