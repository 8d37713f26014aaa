package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/genobench/internal/dataset"
)

func testRegistry(t *testing.T, base string) *dataset.Registry {
	t.Helper()
	yml := `
tasks:
  enhancer:
    Tiny:
      name: Tiny dataset
      genome_version: hg38
      data_url: ` + base + `/data/
      data_format: tsv
      info_url: ` + base + `/info
      info_format: md
      raw_url: ` + base + `/raw
      raw_format: tsv
      adapter:
        kind: enhancer_pair
genomes:
  hg38:
    gtf_url: ` + base + `/genes.gtf.gz
    fasta_url: ` + base + `/genome.fa
`
	reg, err := dataset.ParseRegistry([]byte(yml))
	require.NoError(t, err)
	return reg
}

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			w.Write([]byte("payload:" + r.URL.Path))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(testRegistry(t, srv.URL), WithHTTPClient(srv.Client()))

	dir := filepath.Join(t.TempDir(), "enhancer", "Tiny")
	res, err := c.Fetch(context.Background(), "enhancer", "Tiny", dir, false)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "Tiny.tsv"), res.DataPath)
	assert.Equal(t, filepath.Join(dir, "Tiny_info.md"), res.InfoPath)
	assert.Empty(t, res.RawPath)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	data, err := os.ReadFile(res.DataPath)
	require.NoError(t, err)
	assert.Equal(t, "payload:/data/", string(data))

	// Second fetch reuses cached files and also pulls the raw file.
	res, err = c.Fetch(context.Background(), "enhancer", "Tiny", dir, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Tiny_raw.tsv"), res.RawPath)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	_, err = os.Stat(res.DataPath + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFetch_Force(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(testRegistry(t, srv.URL), WithHTTPClient(srv.Client()), WithForce(true))

	dir := t.TempDir()
	_, err := c.Fetch(context.Background(), "enhancer", "Tiny", dir, false)
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), "enhancer", "Tiny", dir, false)
	require.NoError(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
}

func TestFetch_UnknownDataset(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(testRegistry(t, srv.URL))

	_, err := c.Fetch(context.Background(), "enhancer", "Nope", t.TempDir(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tiny")
	assert.Zero(t, hits)
}

func TestDownload_HTTPError(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(testRegistry(t, srv.URL), WithHTTPClient(srv.Client()))

	dest := filepath.Join(t.TempDir(), "out.tsv")
	err := c.Download(context.Background(), srv.URL+"/missing", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownload_Canceled(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(testRegistry(t, srv.URL), WithHTTPClient(srv.Client()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest := filepath.Join(t.TempDir(), "out.tsv")
	require.Error(t, c.Download(ctx, srv.URL+"/data", dest))
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchGenome(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(testRegistry(t, srv.URL), WithHTTPClient(srv.Client()))

	dir := t.TempDir()
	files, err := c.FetchGenome(context.Background(), "hg38", dir, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "genes.gtf.gz"), files.GTFPath)
	assert.Empty(t, files.FastaPath)

	files, err = c.FetchGenome(context.Background(), "hg38", dir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "genome.fa"), files.FastaPath)

	_, err = c.FetchGenome(context.Background(), "hg99", dir, false)
	assert.Error(t, err)
}

func TestFetchGenome_DecompressesFasta(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte(">chr1\nACGT\n"))
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gz.Bytes())
	}))
	defer srv.Close()

	reg, err := dataset.ParseRegistry([]byte(`
genomes:
  hg38:
    gtf_url: ` + srv.URL + `/genes.gtf.gz
    fasta_url: ` + srv.URL + `/genome.fa.gz
`))
	require.NoError(t, err)

	dir := t.TempDir()
	files, err := NewClient(reg, WithHTTPClient(srv.Client())).FetchGenome(context.Background(), "hg38", dir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "genome.fa"), files.FastaPath)

	data, err := os.ReadFile(files.FastaPath)
	require.NoError(t, err)
	assert.Equal(t, ">chr1\nACGT\n", string(data))
}

func TestFileName(t *testing.T) {
	tests := []struct {
		url, name, format, want string
	}{
		{"https://example.org/a/genes.gtf.gz", "", "", "genes.gtf.gz"},
		{"https://example.org/a/b.txt", "Fulco", "tsv", "Fulco.tsv"},
		{"https://example.org/a/b.txt", "", "tsv", "b.tsv"},
		{"https://example.org/a/b.txt", "Fulco_info", "", "Fulco_info"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.url, tt.name, tt.format), tt.url)
	}

	hashed := FileName("https://example.org/get?id=1", "", "")
	assert.Len(t, hashed, 32)
	assert.Equal(t, hashed, FileName("https://example.org/get?id=1", "", ""))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.0 KB", FormatSize(1024))
	assert.Equal(t, "1.5 MB", FormatSize(1536*1024))
}

func TestLocal(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "in.tsv")
	require.NoError(t, os.WriteFile(data, []byte("x\n"), 0644))

	l := Local{Result: Result{DataPath: data, RawPath: "raw.tsv"}}
	res, err := l.Fetch(context.Background(), "enhancer", "X", dir, false)
	require.NoError(t, err)
	assert.Equal(t, data, res.DataPath)
	assert.Empty(t, res.RawPath)

	l.Result.DataPath = filepath.Join(dir, "gone.tsv")
	_, err = l.Fetch(context.Background(), "enhancer", "X", dir, false)
	assert.Error(t, err)
}
