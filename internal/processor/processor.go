// Package processor sequences the pipeline stages of one benchmark dataset:
// fetch, parse, annotation join, distance filter, labeling and save.
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/genobench/internal/dataset"
	"github.com/inodb/genobench/internal/duckdb"
	"github.com/inodb/genobench/internal/fetch"
	"github.com/inodb/genobench/internal/pipeline"
	"github.com/inodb/genobench/internal/table"
	"github.com/inodb/genobench/internal/tableio"
)

// Output formats accepted by Config.Format.
const (
	FormatTSV     = "tsv"
	FormatParquet = "parquet"
)

// LedgerFile is the name of the run ledger database under the cache root.
const LedgerFile = "genobench.duckdb"

// Config locates the cache and selects the dataset to process.
type Config struct {
	CacheRoot   string // raw downloads and caches
	OutputDir   string // processed tables; defaults to CacheRoot
	Task        string
	Dataset     string
	Format      string // FormatTSV (default) or FormatParquet
	DownloadRaw bool
}

// Fetcher retrieves the files of a dataset into outputDir.
type Fetcher interface {
	Fetch(ctx context.Context, task, dataset, outputDir string, downloadRaw bool) (fetch.Result, error)
}

// Orchestrator drives one dataset through the pipeline states. It is not
// safe for concurrent use.
type Orchestrator struct {
	cfg     Config
	ds      *dataset.Dataset
	fetcher Fetcher
	genome  *Genome
	store   *duckdb.Store
	logger  *zap.Logger

	state  State
	files  fetch.Result
	source duckdb.FileFingerprint
	table  *table.Table
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithStore records saved runs in the given ledger.
func WithStore(s *duckdb.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithGenome sets the annotation and reference holder.
func WithGenome(g *Genome) Option {
	return func(o *Orchestrator) { o.genome = g }
}

// New creates an orchestrator for cfg.Task/cfg.Dataset from reg.
func New(cfg Config, reg *dataset.Registry, fetcher Fetcher, opts ...Option) (*Orchestrator, error) {
	if err := checkCacheRoot(cfg.CacheRoot); err != nil {
		return nil, err
	}
	ds, err := reg.Lookup(cfg.Task, cfg.Dataset)
	if err != nil {
		return nil, err
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.CacheRoot
	}
	switch cfg.Format {
	case "":
		cfg.Format = FormatTSV
	case FormatTSV, FormatParquet:
	default:
		return nil, fmt.Errorf("unsupported output format %q", cfg.Format)
	}

	o := &Orchestrator{
		cfg:     cfg,
		ds:      ds,
		fetcher: fetcher,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("task", cfg.Task), zap.String("dataset", cfg.Dataset))
	return o, nil
}

// State returns the current pipeline state.
func (o *Orchestrator) State() State { return o.state }

// Dataset returns the registry entry being processed.
func (o *Orchestrator) Dataset() *dataset.Dataset { return o.ds }

// Table returns the current table. It is nil before Parse.
func (o *Orchestrator) Table() *table.Table { return o.table }

// Files returns the fetched file paths.
func (o *Orchestrator) Files() fetch.Result { return o.files }

// DataDir is the cache directory holding this dataset's downloads.
func (o *Orchestrator) DataDir() string {
	return filepath.Join(o.cfg.CacheRoot, o.cfg.Task, o.cfg.Dataset)
}

// OutputPath is where Save writes the processed table.
func (o *Orchestrator) OutputPath() string {
	name := o.cfg.Dataset + "_processed." + o.cfg.Format
	return filepath.Join(o.outputDir(), name)
}

func (o *Orchestrator) outputDir() string {
	return filepath.Join(o.cfg.OutputDir, o.cfg.Task, o.cfg.Dataset)
}

// enter checks that stage may run. It returns false with a nil error when
// the dataset is already at or past target.
func (o *Orchestrator) enter(stage string, target State) (bool, error) {
	if o.state >= target {
		o.logger.Info("stage already done, skipping",
			zap.String("stage", stage),
			zap.Stringer("state", o.state))
		return false, nil
	}
	if o.state < target-1 {
		return false, &StageError{Stage: stage, Current: o.state, Minimum: target - 1, Maximum: target - 1}
	}
	return true, nil
}

// Fetch retrieves the dataset files into DataDir.
func (o *Orchestrator) Fetch(ctx context.Context) (fetch.Result, error) {
	if ok, err := o.enter("fetch", RawFetched); !ok {
		return o.files, err
	}
	if o.fetcher == nil {
		return fetch.Result{}, errors.New("no fetcher configured")
	}

	res, err := o.fetcher.Fetch(ctx, o.cfg.Task, o.cfg.Dataset, o.DataDir(), o.cfg.DownloadRaw)
	if err != nil {
		return fetch.Result{}, fmt.Errorf("fetch %s/%s: %w", o.cfg.Task, o.cfg.Dataset, err)
	}
	fp, err := duckdb.StatFile(res.DataPath)
	if err != nil {
		return fetch.Result{}, fmt.Errorf("stat data file: %w", err)
	}

	o.files = res
	o.source = fp
	o.state = RawFetched
	o.logger.Info("fetched dataset", zap.String("data", res.DataPath), zap.Int64("bytes", fp.Size))
	return res, nil
}

// ParseReport describes the result of Parse.
type ParseReport struct {
	Rows    int
	Columns []string
}

// Parse reads the data file and converts it with the dataset adapter.
func (o *Orchestrator) Parse() (ParseReport, error) {
	if ok, err := o.enter("parse", Parsed); !ok {
		return o.parseReport(), err
	}

	raw, err := tableio.ReadRaw(o.files.DataPath)
	if err != nil {
		return ParseReport{}, err
	}
	t, err := o.ds.Adapter.Parse(raw)
	if err != nil {
		return ParseReport{}, err
	}
	if err := t.Validate(); err != nil {
		return ParseReport{}, fmt.Errorf("parse %s: %w", o.cfg.Dataset, err)
	}

	o.table = t
	o.state = Parsed
	rep := o.parseReport()
	o.logger.Info("parsed dataset", zap.Int("rows", rep.Rows))
	return rep, nil
}

func (o *Orchestrator) parseReport() ParseReport {
	if o.table == nil {
		return ParseReport{}
	}
	return ParseReport{Rows: o.table.Len(), Columns: o.table.Columns()}
}

// AnnotateReport describes the result of AddStrandInfo.
type AnnotateReport struct {
	Annotated    int
	MissingGenes int // rows whose gene is absent from the index
}

// AddStrandInfo joins gene_tss and strand from the annotation index. Rows
// whose gene is not found keep null values. An empty biotype column is
// filled from the gene model.
func (o *Orchestrator) AddStrandInfo() (AnnotateReport, error) {
	if ok, err := o.enter("add_strand_info", Annotated); !ok {
		return AnnotateReport{}, err
	}
	if o.genome == nil {
		return AnnotateReport{}, errors.New("no genome configured for annotation")
	}
	idx, err := o.genome.Index()
	if err != nil {
		return AnnotateReport{}, fmt.Errorf("load annotation index: %w", err)
	}

	out := o.table.Clone()
	bi := out.ExtraIndex(pipeline.ColBiotype)
	var rep AnnotateReport
	for i := range out.Rows {
		r := &out.Rows[i]
		g, ok := idx.Lookup(r.GeneName)
		if !ok {
			rep.MissingGenes++
			continue
		}
		r.GeneTSS.SetValid(g.TSS())
		r.Strand = g.Strand
		if bi >= 0 && !r.Extra[bi].Valid && g.Biotype != "" {
			r.Extra[bi].SetValid(g.Biotype)
		}
		rep.Annotated++
	}

	o.table = out
	o.state = Annotated
	if rep.MissingGenes > 0 {
		o.logger.Warn("genes missing from annotation index", zap.Int("rows", rep.MissingGenes))
	}
	o.logger.Info("added strand info", zap.Int("annotated", rep.Annotated))
	return rep, nil
}

// FilterDistance computes distances and keeps rows with
// low <= |distance| <= high.
func (o *Orchestrator) FilterDistance(low, high int64) (pipeline.FilterReport, error) {
	if ok, err := o.enter("filter_distance", Filtered); !ok {
		return pipeline.FilterReport{}, err
	}

	withDist, drep := pipeline.ComputeDistance(o.table)
	out, rep, err := pipeline.FilterByDistance(withDist, low, high)
	if err != nil {
		return pipeline.FilterReport{}, err
	}

	o.table = out
	o.state = Filtered
	o.logger.Info("filtered by distance",
		zap.Int64("low", low),
		zap.Int64("high", high),
		zap.Int("before", rep.Before),
		zap.Int("kept", rep.Kept),
		zap.Int("null_distance", drep.Missing))
	return rep, nil
}

// auxFilter runs a non-advancing filter, allowed from Annotated until
// labels are assigned.
func (o *Orchestrator) auxFilter(stage string, f func(*table.Table) (*table.Table, pipeline.FilterReport, error)) (pipeline.FilterReport, error) {
	if o.state < Annotated || o.state >= Labeled {
		return pipeline.FilterReport{}, &StageError{Stage: stage, Current: o.state, Minimum: Annotated, Maximum: Filtered}
	}
	out, rep, err := f(o.table)
	if err != nil {
		return pipeline.FilterReport{}, err
	}
	o.table = out
	o.logger.Info(stage, zap.Int("before", rep.Before), zap.Int("kept", rep.Kept))
	return rep, nil
}

// FilterProteinCoding keeps rows whose biotype is protein_coding.
func (o *Orchestrator) FilterProteinCoding() (pipeline.FilterReport, error) {
	return o.auxFilter("filter_protein_coding", pipeline.FilterProteinCoding)
}

// FilterSNPOnly keeps single-base substitutions.
func (o *Orchestrator) FilterSNPOnly() (pipeline.FilterReport, error) {
	return o.auxFilter("filter_snp_only", pipeline.FilterSNPOnly)
}

// DefaultPolicy returns the label policy configured for ds.
func DefaultPolicy(ds *dataset.Dataset) (pipeline.Policy, error) {
	switch ds.Labeling.Policy {
	case dataset.PolicyProvided, "":
		return pipeline.ProvidedLabel{}, nil
	case dataset.PolicyFixedThreshold:
		return pipeline.FixedThreshold{Pos: ds.Labeling.Pos, Neg: ds.Labeling.Neg}, nil
	default:
		return nil, fmt.Errorf("dataset %s: unknown label policy %q", ds.Key, ds.Labeling.Policy)
	}
}

// Label assigns labels with policy, or the dataset default when nil.
func (o *Orchestrator) Label(policy pipeline.Policy) (pipeline.LabelReport, error) {
	if ok, err := o.enter("label", Labeled); !ok {
		return pipeline.LabelReport{}, err
	}
	if policy == nil {
		var err error
		if policy, err = DefaultPolicy(o.ds); err != nil {
			return pipeline.LabelReport{}, err
		}
	}

	out, rep, err := pipeline.Assign(o.table, o.scoreColumn(""), policy)
	if err != nil {
		return pipeline.LabelReport{}, err
	}

	o.table = out
	o.state = Labeled
	o.logger.Info("assigned labels",
		zap.Int("positives", rep.Positives),
		zap.Int("negatives", rep.Negatives),
		zap.Int("excluded", rep.Excluded),
		zap.Int("null_score", rep.NullScore))
	return rep, nil
}

func (o *Orchestrator) scoreColumn(name string) string {
	switch {
	case name != "":
		return name
	case o.ds.ScoreColumn != "":
		return o.ds.ScoreColumn
	default:
		return table.ColScore
	}
}

// SaveReport describes the result of Save.
type SaveReport struct {
	Path      string
	Rows      int
	Positives int
	Negatives int
}

// Save writes the labeled table to OutputPath in one atomic write and
// records the run in the ledger.
func (o *Orchestrator) Save() (SaveReport, error) {
	if ok, err := o.enter("save", Saved); !ok {
		return o.saveReport(), err
	}

	path := o.OutputPath()
	if err := tableio.SaveTable(o.table, path); err != nil {
		return SaveReport{}, fmt.Errorf("save %s: %w", o.cfg.Dataset, err)
	}
	o.state = Saved
	rep := o.saveReport()

	if o.store != nil {
		if err := o.record(rep); err != nil {
			return rep, err
		}
	}
	o.logger.Info("saved processed table", zap.String("path", path), zap.Int("rows", rep.Rows))
	return rep, nil
}

func (o *Orchestrator) saveReport() SaveReport {
	if o.table == nil {
		return SaveReport{}
	}
	d := o.table.LabelDistribution()
	return SaveReport{Path: o.OutputPath(), Rows: d.Total, Positives: d.Positives, Negatives: d.Negatives}
}

func (o *Orchestrator) record(rep SaveReport) error {
	err := o.store.RecordRun(duckdb.Run{
		Task:       o.cfg.Task,
		Dataset:    o.cfg.Dataset,
		State:      o.state.String(),
		Rows:       int64(rep.Rows),
		Positives:  int64(rep.Positives),
		Negatives:  int64(rep.Negatives),
		OutputPath: rep.Path,
		Source:     o.source,
	})
	if err != nil {
		return err
	}
	return o.store.WriteLabeledRows(o.cfg.Task, o.cfg.Dataset, o.table)
}

// Resume loads a previously saved table, leaving the orchestrator in the
// Saved state. It fails when no processed table exists.
func (o *Orchestrator) Resume() error {
	if o.state != Uninitialized {
		return &StageError{Stage: "resume", Current: o.state, Minimum: Uninitialized, Maximum: Uninitialized}
	}
	t, err := tableio.LoadTable(o.OutputPath())
	if err != nil {
		return fmt.Errorf("resume %s: %w", o.cfg.Dataset, err)
	}
	o.table = t
	o.state = Saved
	o.logger.Info("resumed processed table", zap.String("path", o.OutputPath()), zap.Int("rows", t.Len()))
	return nil
}

// Evaluate computes AUROC and AUPRC of score (the dataset score column when
// empty) against the labels.
func (o *Orchestrator) Evaluate(score string) (pipeline.Metrics, error) {
	if o.state < Labeled {
		return pipeline.Metrics{}, &StageError{Stage: "evaluate", Current: o.state, Minimum: Labeled, Maximum: Saved}
	}
	return pipeline.Evaluate(o.table, o.scoreColumn(score))
}

// LabelDistribution counts positive and negative rows of the current table.
func (o *Orchestrator) LabelDistribution() (table.Distribution, error) {
	if o.table == nil {
		return table.Distribution{}, &StageError{Stage: "label_distribution", Current: o.state, Minimum: Parsed, Maximum: Saved}
	}
	return o.table.LabelDistribution(), nil
}

// Scope selects what ClearCache removes.
type Scope int

const (
	// ScopeDataset removes this dataset's downloads and outputs.
	ScopeDataset Scope = iota
	// ScopeAll removes every entry under the cache root.
	ScopeAll
)

// ClearCache removes cached artifacts. ScopeAll must be passed explicitly
// to clear other datasets. The orchestrator returns to Uninitialized.
func (o *Orchestrator) ClearCache(scope Scope) error {
	if err := checkCacheRoot(o.cfg.CacheRoot); err != nil {
		return err
	}

	switch scope {
	case ScopeDataset:
		for _, dir := range []string{o.DataDir(), o.outputDir()} {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("remove %s: %w", dir, err)
			}
		}
		if o.store != nil {
			if err := o.store.ClearRuns(o.cfg.Task, o.cfg.Dataset); err != nil {
				return err
			}
		}
		o.logger.Info("cleared dataset cache", zap.String("dir", o.DataDir()))

	case ScopeAll:
		if err := o.clearAll(); err != nil {
			return err
		}
		o.logger.Info("cleared cache root", zap.String("dir", o.cfg.CacheRoot))

	default:
		return fmt.Errorf("unknown cache scope %d", scope)
	}

	o.state = Uninitialized
	o.table = nil
	o.files = fetch.Result{}
	return nil
}

func (o *Orchestrator) clearAll() error {
	if o.store != nil {
		runs, err := o.store.Runs()
		if err != nil {
			return err
		}
		for _, r := range runs {
			if r.OutputPath == "" {
				continue
			}
			if err := os.RemoveAll(filepath.Dir(r.OutputPath)); err != nil {
				return fmt.Errorf("remove %s: %w", r.OutputPath, err)
			}
		}
		if err := o.store.ClearAll(); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(o.outputDir()); err != nil {
		return fmt.Errorf("remove %s: %w", o.outputDir(), err)
	}

	entries, err := os.ReadDir(o.cfg.CacheRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache root: %w", err)
	}
	for _, e := range entries {
		if isLedgerFile(e.Name()) {
			continue
		}
		p := filepath.Join(o.cfg.CacheRoot, e.Name())
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

func isLedgerFile(name string) bool {
	return strings.HasPrefix(name, LedgerFile)
}

// checkCacheRoot refuses paths whose removal would be catastrophic.
func checkCacheRoot(root string) error {
	if strings.TrimSpace(root) == "" {
		return errors.New("cache root is not set")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve cache root: %w", err)
	}
	if abs == filepath.Dir(abs) {
		return fmt.Errorf("refusing to use filesystem root %s as cache root", abs)
	}
	if home, err := os.UserHomeDir(); err == nil && filepath.Clean(home) == abs {
		return fmt.Errorf("refusing to use home directory %s as cache root", abs)
	}
	return nil
}

