package processor

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/inodb/genobench/internal/duckdb"
	"github.com/inodb/genobench/internal/genome"
)

// Genome lazily loads the annotation index and reference sequence of one
// assembly. It is safe for concurrent use and may be shared by several
// orchestrators.
type Genome struct {
	Version   string
	GTFPath   string
	FastaPath string

	cache  *duckdb.IndexCache // nil disables the on-disk index cache
	logger *zap.Logger

	mu    sync.Mutex
	index *genome.Index
	ref   *genome.Reference
}

// NewGenome creates a lazy holder. cacheDir may be empty to always parse
// the GTF.
func NewGenome(version, gtfPath, fastaPath, cacheDir string) *Genome {
	g := &Genome{
		Version:   version,
		GTFPath:   gtfPath,
		FastaPath: fastaPath,
		logger:    zap.NewNop(),
	}
	if cacheDir != "" {
		g.cache = duckdb.NewIndexCache(cacheDir)
	}
	return g
}

// NewGenomeFromIndex wraps an already built index.
func NewGenomeFromIndex(version string, idx *genome.Index) *Genome {
	return &Genome{Version: version, index: idx, logger: zap.NewNop()}
}

// SetLogger sets the logger used while loading.
func (g *Genome) SetLogger(l *zap.Logger) {
	g.logger = l
}

// Index returns the annotation index, building it on first use.
func (g *Genome) Index() (*genome.Index, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.index != nil {
		return g.index, nil
	}
	if g.GTFPath == "" {
		return nil, fmt.Errorf("no GTF configured for genome %s", g.Version)
	}

	fp, err := duckdb.StatFile(g.GTFPath)
	if err != nil {
		return nil, fmt.Errorf("stat GTF: %w", err)
	}

	if g.cache != nil && g.cache.Valid(fp) {
		idx, err := g.cache.Load()
		if err == nil {
			g.logger.Info("loaded annotation index from cache",
				zap.String("genome", g.Version),
				zap.Int("genes", idx.Len()))
			g.index = idx
			return idx, nil
		}
		g.logger.Warn("discarding unreadable index cache", zap.Error(err))
		g.cache.Clear()
	}

	g.logger.Info("building annotation index", zap.String("gtf", g.GTFPath))
	idx, err := genome.LoadIndex(g.GTFPath)
	if err != nil {
		return nil, err
	}
	if g.cache != nil {
		if err := g.cache.Write(idx, fp); err != nil {
			g.logger.Warn("could not write index cache", zap.Error(err))
		}
	}
	g.index = idx
	return idx, nil
}

// Reference returns the reference sequence, opening it on first use.
func (g *Genome) Reference() (*genome.Reference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ref != nil {
		return g.ref, nil
	}
	if g.FastaPath == "" {
		return nil, fmt.Errorf("no FASTA configured for genome %s", g.Version)
	}
	if _, err := os.Stat(g.FastaPath); err != nil {
		return nil, fmt.Errorf("reference FASTA: %w", err)
	}
	ref, err := genome.OpenReference(g.FastaPath)
	if err != nil {
		return nil, err
	}
	g.ref = ref
	return ref, nil
}

// Close releases the reference file if it was opened.
func (g *Genome) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ref == nil {
		return nil
	}
	err := g.ref.Close()
	g.ref = nil
	return err
}
