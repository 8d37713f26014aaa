package duckdb

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/inodb/genobench/internal/genome"
)

// IndexCache manages a gob-serialized annotation index on disk.
// Files are stored under the cache root, per genome version:
//
//	{cache_root}/genomes/{version}/genes.gob       (serialized genes)
//	{cache_root}/genomes/{version}/genes.gob.meta  (source file fingerprint)
type IndexCache struct {
	dir string
}

// NewIndexCache creates an index cache for the given directory.
func NewIndexCache(dir string) *IndexCache {
	return &IndexCache{dir: dir}
}

func (ic *IndexCache) gobPath() string {
	return filepath.Join(ic.dir, "genes.gob")
}

func (ic *IndexCache) metaPath() string {
	return filepath.Join(ic.dir, "genes.gob.meta")
}

// Valid checks whether the cached index matches the current GTF file.
func (ic *IndexCache) Valid(gtf FileFingerprint) bool {
	meta, err := ic.readMeta()
	if err != nil {
		return false
	}

	for _, kv := range gtf.metaEntries("gtf") {
		if meta[kv[0]] != kv[1] {
			return false
		}
	}

	if _, err := os.Stat(ic.gobPath()); err != nil {
		return false
	}
	return true
}

// Load reads the serialized genes and rebuilds the index.
func (ic *IndexCache) Load() (*genome.Index, error) {
	f, err := os.Open(ic.gobPath())
	if err != nil {
		return nil, fmt.Errorf("open index cache: %w", err)
	}
	defer f.Close()

	var genes []genome.Gene
	if err := gob.NewDecoder(f).Decode(&genes); err != nil {
		return nil, fmt.Errorf("decode index cache: %w", err)
	}
	return genome.NewIndex(genes), nil
}

// Write serializes the index to disk along with the GTF fingerprint.
func (ic *IndexCache) Write(idx *genome.Index, gtf FileFingerprint) error {
	if err := os.MkdirAll(ic.dir, 0755); err != nil {
		return fmt.Errorf("create index cache directory: %w", err)
	}

	f, err := os.Create(ic.gobPath())
	if err != nil {
		return fmt.Errorf("create index cache: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(idx.Genes()); err != nil {
		f.Close()
		os.Remove(ic.gobPath())
		return fmt.Errorf("encode index cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close index cache: %w", err)
	}

	return ic.writeMeta(gtf)
}

// Clear removes the cached index files.
func (ic *IndexCache) Clear() {
	os.Remove(ic.gobPath())
	os.Remove(ic.metaPath())
}

func (ic *IndexCache) writeMeta(gtf FileFingerprint) error {
	var lines []string
	for _, kv := range gtf.metaEntries("gtf") {
		lines = append(lines, kv[0]+"="+kv[1])
	}
	lines = append(lines, "created_at="+time.Now().UTC().Format(time.RFC3339), "")
	return os.WriteFile(ic.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

func (ic *IndexCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(ic.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
