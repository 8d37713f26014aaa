// Package fetch downloads dataset and genome files into the local cache.
package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/genobench/internal/dataset"
	"github.com/inodb/genobench/internal/fileutil"
)

// Result holds local paths of a fetched dataset. RawPath is empty when the
// raw file was not requested.
type Result struct {
	DataPath string
	InfoPath string
	RawPath  string
}

// GenomeFiles holds local paths of a fetched genome assembly.
type GenomeFiles struct {
	GTFPath   string
	FastaPath string
}

// Client downloads registry files over HTTP. Files already present are
// reused unless Force is set.
type Client struct {
	registry *dataset.Registry
	http     *http.Client
	logger   *zap.Logger
	progress io.Writer
	force    bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithProgress writes download progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(c *Client) { c.progress = w }
}

// WithForce re-downloads files that already exist.
func WithForce(force bool) Option {
	return func(c *Client) { c.force = force }
}

// NewClient creates a Client for the given registry.
func NewClient(reg *dataset.Registry, opts ...Option) *Client {
	c := &Client{
		registry: reg,
		http: &http.Client{
			Timeout: 30 * time.Minute, // Long timeout for large files
		},
		logger:   zap.NewNop(),
		progress: io.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads the data and info files of a dataset, plus the raw file
// when downloadRaw is set, into outputDir.
//
// Files are named <dataset>.<fmt>, <dataset>_info.<fmt> and
// <dataset>_raw.<fmt>.
func (c *Client) Fetch(ctx context.Context, task, name, outputDir string, downloadRaw bool) (Result, error) {
	ds, err := c.registry.Lookup(task, name)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return Result{}, fmt.Errorf("create directory %s: %w", outputDir, err)
	}

	var res Result
	res.DataPath = filepath.Join(outputDir, FileName(ds.DataURL, ds.Key, ds.DataFormat))
	if err := c.Download(ctx, ds.DataURL, res.DataPath); err != nil {
		return Result{}, fmt.Errorf("download data file: %w", err)
	}

	if ds.InfoURL != "" {
		res.InfoPath = filepath.Join(outputDir, FileName(ds.InfoURL, ds.Key+"_info", ds.InfoFormat))
		if err := c.Download(ctx, ds.InfoURL, res.InfoPath); err != nil {
			return Result{}, fmt.Errorf("download info file: %w", err)
		}
	}

	if downloadRaw && ds.RawURL != "" {
		res.RawPath = filepath.Join(outputDir, FileName(ds.RawURL, ds.Key+"_raw", ds.RawFormat))
		if err := c.Download(ctx, ds.RawURL, res.RawPath); err != nil {
			return Result{}, fmt.Errorf("download raw file: %w", err)
		}
	}
	return res, nil
}

// FetchGenome downloads the GTF and FASTA of a genome version into dir.
// The FASTA is skipped when gtfOnly is set.
func (c *Client) FetchGenome(ctx context.Context, version, dir string, gtfOnly bool) (GenomeFiles, error) {
	g, err := c.registry.Genome(version)
	if err != nil {
		return GenomeFiles{}, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return GenomeFiles{}, fmt.Errorf("create directory %s: %w", dir, err)
	}

	files := GenomeFiles{GTFPath: filepath.Join(dir, FileName(g.GTFURL, "", ""))}
	if err := c.Download(ctx, g.GTFURL, files.GTFPath); err != nil {
		return GenomeFiles{}, fmt.Errorf("download GTF: %w", err)
	}
	if !gtfOnly {
		files.FastaPath = filepath.Join(dir, FileName(g.FastaURL, "", ""))
		if err := c.Download(ctx, g.FastaURL, files.FastaPath); err != nil {
			return GenomeFiles{}, fmt.Errorf("download FASTA: %w", err)
		}
		// Indexed access needs an uncompressed FASTA.
		if plain := fileutil.TrimCompression(files.FastaPath); plain != files.FastaPath {
			if err := c.decompress(files.FastaPath, plain); err != nil {
				return GenomeFiles{}, err
			}
			files.FastaPath = plain
		}
	}
	return files, nil
}

// decompress writes the gunzipped content of src to dst unless dst already
// exists.
func (c *Client) decompress(src, dst string) error {
	if _, err := os.Stat(dst); err == nil && !c.force {
		return nil
	}
	c.logger.Info("decompressing", zap.String("path", src))

	in, err := fileutil.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	return fileutil.WriteAtomic(dst, func(w io.Writer) error {
		if _, err := io.Copy(w, in); err != nil {
			return fmt.Errorf("decompress %s: %w", filepath.Base(src), err)
		}
		return nil
	})
}

// FileName picks the cache file name for a URL. An explicit name wins;
// otherwise the last URL path segment is used, falling back to the MD5 of
// the URL when the segment is empty. A format replaces any extension.
func FileName(rawURL, name, format string) string {
	if name == "" {
		if u, err := url.Parse(rawURL); err == nil && u.RawQuery == "" {
			name = path.Base(u.Path)
		}
		if name == "" || name == "." || name == "/" {
			sum := md5.Sum([]byte(rawURL))
			name = hex.EncodeToString(sum[:])
		}
	}
	if format != "" {
		name = strings.TrimSuffix(name, path.Ext(name)) + "." + format
	}
	return name
}

// Download fetches url to destPath. An existing destPath is reused unless
// the client forces downloads. The body is written to destPath.tmp and
// renamed on success.
func (c *Client) Download(ctx context.Context, rawURL, destPath string) error {
	if info, err := os.Stat(destPath); err == nil && !c.force {
		c.logger.Info("using cached file",
			zap.String("path", destPath),
			zap.String("size", FormatSize(info.Size())))
		return nil
	}

	c.logger.Info("downloading", zap.String("url", rawURL), zap.String("path", destPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	var downloaded int64
	pw := &progressWriter{
		out:        c.progress,
		total:      resp.ContentLength,
		downloaded: &downloaded,
		lastPrint:  time.Now(),
	}

	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	c.logger.Info("download complete", zap.String("path", destPath), zap.String("size", FormatSize(downloaded)))
	return nil
}

// progressWriter tracks download progress.
type progressWriter struct {
	out        io.Writer
	total      int64
	downloaded *int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	*pw.downloaded += int64(n)

	// Print progress every second
	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(*pw.downloaded) / float64(pw.total) * 100
			fmt.Fprintf(pw.out, "\r    Progress: %s / %s (%.1f%%)  ",
				FormatSize(*pw.downloaded), FormatSize(pw.total), pct)
		} else {
			fmt.Fprintf(pw.out, "\r    Progress: %s  ", FormatSize(*pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}

	return n, nil
}

// FormatSize formats bytes as human-readable size.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
