package genome

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/biogo/hts/fai"
)

// Reference provides random access to an indexed FASTA genome.
// It is safe for concurrent use.
type Reference struct {
	path string
	f    *os.File
	idx  fai.Index

	mu   sync.Mutex
	file *fai.File
}

// OpenReference opens an uncompressed FASTA file. The sibling .fai index is
// used when present; otherwise the index is computed by scanning the file.
func OpenReference(path string) (*Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}

	idx, err := loadFaidx(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Reference{
		path: path,
		f:    f,
		idx:  idx,
		file: fai.NewFile(f, idx),
	}, nil
}

func loadFaidx(path string, f *os.File) (fai.Index, error) {
	if ff, err := os.Open(path + ".fai"); err == nil {
		defer ff.Close()
		idx, err := fai.ReadFrom(ff)
		if err != nil {
			return nil, fmt.Errorf("read FASTA index: %w", err)
		}
		return idx, nil
	}

	idx, err := fai.NewIndex(f)
	if err != nil {
		return nil, fmt.Errorf("index FASTA file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind FASTA file: %w", err)
	}
	return idx, nil
}

// Close releases the underlying file.
func (r *Reference) Close() error {
	return r.f.Close()
}

// Path returns the FASTA path.
func (r *Reference) Path() string {
	return r.path
}

// ContigLength returns the length of a contig, resolving chr-prefix
// differences between the query and the FASTA.
func (r *Reference) ContigLength(chrom string) (int64, bool) {
	name, ok := r.resolve(chrom)
	if !ok {
		return 0, false
	}
	return int64(r.idx[name].Length), true
}

// resolve maps a query contig name to the name used in the FASTA.
func (r *Reference) resolve(chrom string) (string, bool) {
	if _, ok := r.idx[chrom]; ok {
		return chrom, true
	}
	norm := NormalizeChrom(chrom)
	candidates := []string{norm, strings.TrimPrefix(norm, "chr")}
	if norm == "chrM" {
		candidates = append(candidates, "MT", "M")
	}
	for _, c := range candidates {
		if _, ok := r.idx[c]; ok {
			return c, true
		}
	}
	return "", false
}

// Fetch returns the upper-cased bases of chrom in the 0-based half-open
// interval [start, end).
func (r *Reference) Fetch(chrom string, start, end int64) (string, error) {
	name, ok := r.resolve(chrom)
	if !ok {
		return "", &CoordinateOutOfRangeError{Chrom: chrom, Pos: start, Length: -1}
	}
	length := int64(r.idx[name].Length)
	if start < 0 || end > length || start >= end {
		return "", &CoordinateOutOfRangeError{Chrom: chrom, Pos: start, Length: length}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seq, err := r.file.SeqRange(name, int(start), int(end))
	if err != nil {
		return "", fmt.Errorf("fetch %s:%d-%d: %w", chrom, start, end, err)
	}
	b, err := io.ReadAll(seq)
	if err != nil {
		return "", fmt.Errorf("read %s:%d-%d: %w", chrom, start, end, err)
	}
	return string(bytes.ToUpper(b)), nil
}

// BaseAt returns the base at a 1-based position.
func (r *Reference) BaseAt(chrom string, pos int64) (byte, error) {
	s, err := r.Fetch(chrom, pos-1, pos)
	if err != nil {
		return 0, err
	}
	return s[0], nil
}
