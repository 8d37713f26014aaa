// Package dataset holds the dataset registry and the adapters that turn
// dataset-specific raw tables into canonical tables.
package dataset

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed datasets.yaml
var registryYAML []byte

// Dataset describes one benchmark dataset.
type Dataset struct {
	Task          string   `yaml:"-"`
	Key           string   `yaml:"-"`              // registry key, e.g. "Fulco"
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	GenomeVersion string   `yaml:"genome_version"`
	DataURL       string   `yaml:"data_url"`
	DataFormat    string   `yaml:"data_format"`
	InfoURL       string   `yaml:"info_url"`
	InfoFormat    string   `yaml:"info_format"`
	RawURL        string   `yaml:"raw_url"`
	RawFormat     string   `yaml:"raw_format"`
	ScoreColumn   string   `yaml:"score_column"`   // default column for metrics
	Labeling      Labeling `yaml:"labeling"`
	Adapter       Adapter  `yaml:"adapter"`
}

// Labeling is the default label policy of a dataset.
type Labeling struct {
	Policy string  `yaml:"policy"` // "provided" or "fixed_threshold"
	Pos    float64 `yaml:"pos"`
	Neg    float64 `yaml:"neg"`
}

// Label policy names.
const (
	PolicyProvided       = "provided"
	PolicyFixedThreshold = "fixed_threshold"
)

// Genome holds download locations for a genome assembly.
type Genome struct {
	Version  string `yaml:"-"`
	FastaURL string `yaml:"fasta_url"`
	GTFURL   string `yaml:"gtf_url"`
}

// Registry is the set of known tasks, datasets and genomes.
type Registry struct {
	TaskMap map[string]map[string]*Dataset `yaml:"tasks"`
	Genomes map[string]*Genome             `yaml:"genomes"`
}

// Default returns the embedded registry.
func Default() (*Registry, error) {
	return ParseRegistry(registryYAML)
}

// ParseRegistry parses a registry document.
func ParseRegistry(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse dataset registry: %w", err)
	}
	for task, datasets := range reg.TaskMap {
		for key, ds := range datasets {
			ds.Task = task
			ds.Key = key
			ds.Adapter.Name = key
		}
	}
	for version, g := range reg.Genomes {
		g.Version = version
	}
	return &reg, nil
}

// Tasks returns task names in sorted order.
func (r *Registry) Tasks() []string {
	return sortedKeys(r.TaskMap)
}

// Datasets returns the dataset names of a task in sorted order.
func (r *Registry) Datasets(task string) ([]string, error) {
	datasets, ok := r.TaskMap[task]
	if !ok {
		return nil, fmt.Errorf("unknown task %q (available: %s)", task, strings.Join(r.Tasks(), ", "))
	}
	return sortedKeys(datasets), nil
}

// Lookup returns a dataset by task and name.
func (r *Registry) Lookup(task, name string) (*Dataset, error) {
	names, err := r.Datasets(task)
	if err != nil {
		return nil, err
	}
	ds, ok := r.TaskMap[task][name]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q for task %q (available: %s)", name, task, strings.Join(names, ", "))
	}
	return ds, nil
}

// Genome returns download locations for a genome version.
func (r *Registry) Genome(version string) (*Genome, error) {
	g, ok := r.Genomes[version]
	if !ok {
		return nil, fmt.Errorf("unknown genome version %q (available: %s)", version, strings.Join(sortedKeys(r.Genomes), ", "))
	}
	return g, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
