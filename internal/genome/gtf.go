package genome

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/inodb/genobench/internal/fileutil"
)

// canonicalTags are transcript/gene tags that mark the primary model of a gene.
var canonicalTags = []string{"Ensembl_canonical", "MANE_Select"}

// Index maps gene names to gene records. It is immutable once built.
type Index struct {
	genes map[string]Gene
	order []string // gene names in declaration order of the chosen entries
}

// gtfFeature represents a parsed GTF line.
type gtfFeature struct {
	chrom       string
	featureType string
	start       int64
	end         int64
	strand      string
	attributes  map[string]string
}

// geneEntry is a gene feature retained during the build, in declaration order.
type geneEntry struct {
	gene Gene
	line int
}

// LoadIndex reads a GTF file (plain or gzipped) and builds an Index.
func LoadIndex(path string) (*Index, error) {
	rc, err := fileutil.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open GTF file: %w", err)
	}
	defer rc.Close()

	return BuildIndex(rc)
}

// BuildIndex parses GTF content into an Index.
//
// Only "gene" features become entries. Canonical tags found on a gene line or
// on any transcript of that gene mark the gene as canonical. When a gene name
// occurs more than once, the canonical entry wins; otherwise the first
// occurrence in the file is kept.
func BuildIndex(r io.Reader) (*Index, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var entries []geneEntry
	canonicalIDs := make(map[string]bool)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		feat, err := parseLine(line, lineNum)
		if err != nil {
			return nil, err
		}

		switch feat.featureType {
		case "gene":
			g, err := geneFromFeature(feat, lineNum)
			if err != nil {
				return nil, err
			}
			entries = append(entries, geneEntry{gene: g, line: lineNum})
		case "transcript":
			if hasCanonicalTag(feat.attributes["tag"]) {
				canonicalIDs[stripVersion(feat.attributes["gene_id"])] = true
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}

	return newIndex(entries, canonicalIDs), nil
}

// NewIndex builds an Index from gene records, applying the same duplicate
// resolution as BuildIndex. Genes are considered in slice order.
func NewIndex(genes []Gene) *Index {
	entries := make([]geneEntry, len(genes))
	for i, g := range genes {
		entries[i] = geneEntry{gene: g, line: i}
	}
	return newIndex(entries, nil)
}

func newIndex(entries []geneEntry, canonicalIDs map[string]bool) *Index {
	idx := &Index{genes: make(map[string]Gene, len(entries))}
	firstLine := make(map[string]int, len(entries))

	for _, e := range entries {
		g := e.gene
		if canonicalIDs[g.ID] {
			g.Canonical = true
		}

		prev, seen := idx.genes[g.Name]
		if !seen {
			idx.genes[g.Name] = g
			firstLine[g.Name] = e.line
			continue
		}
		// A later entry only replaces an earlier non-canonical one.
		if g.Canonical && !prev.Canonical {
			idx.genes[g.Name] = g
		}
	}

	idx.order = make([]string, 0, len(idx.genes))
	for name := range idx.genes {
		idx.order = append(idx.order, name)
	}
	sort.Slice(idx.order, func(i, j int) bool {
		return firstLine[idx.order[i]] < firstLine[idx.order[j]]
	})
	return idx
}

// Lookup returns the gene record for a gene name.
func (idx *Index) Lookup(name string) (Gene, bool) {
	g, ok := idx.genes[name]
	return g, ok
}

// Len returns the number of distinct gene names.
func (idx *Index) Len() int {
	return len(idx.genes)
}

// Genes returns all gene records in declaration order.
func (idx *Index) Genes() []Gene {
	out := make([]Gene, 0, len(idx.order))
	for _, name := range idx.order {
		out = append(out, idx.genes[name])
	}
	return out
}

// geneFromFeature validates a gene feature and converts it to a Gene.
func geneFromFeature(feat *gtfFeature, lineNum int) (Gene, error) {
	id := feat.attributes["gene_id"]
	if id == "" {
		return Gene{}, &MalformedAnnotationError{Line: lineNum, Field: "gene_id", Message: "missing"}
	}
	name := feat.attributes["gene_name"]
	if name == "" {
		return Gene{}, &MalformedAnnotationError{Line: lineNum, Field: "gene_name", Message: "missing"}
	}

	strand := ParseStrand(feat.strand)
	if strand == StrandUnknown {
		return Gene{}, &MalformedAnnotationError{
			Line:    lineNum,
			Field:   "strand",
			Message: fmt.Sprintf("expected + or -, got %q", feat.strand),
		}
	}

	// GTF is 1-based inclusive, so start == end is a single base.
	if feat.start < 1 || feat.start > feat.end {
		return Gene{}, &MalformedAnnotationError{
			Line:    lineNum,
			Field:   "coordinates",
			Message: fmt.Sprintf("invalid interval %d-%d", feat.start, feat.end),
		}
	}

	biotype := feat.attributes["gene_type"]
	if biotype == "" {
		biotype = feat.attributes["gene_biotype"]
	}

	return Gene{
		ID:        stripVersion(id),
		Name:      name,
		Chrom:     feat.chrom,
		Start:     feat.start,
		End:       feat.end,
		Strand:    strand,
		Biotype:   biotype,
		Canonical: hasCanonicalTag(feat.attributes["tag"]),
	}, nil
}

// parseLine parses a single GTF line.
func parseLine(line string, lineNum int) (*gtfFeature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, &MalformedAnnotationError{
			Line:    lineNum,
			Message: fmt.Sprintf("expected 9 fields, got %d", len(fields)),
		}
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, &MalformedAnnotationError{Line: lineNum, Field: "start", Message: err.Error()}
	}

	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, &MalformedAnnotationError{Line: lineNum, Field: "end", Message: err.Error()}
	}

	return &gtfFeature{
		chrom:       NormalizeChrom(fields[0]),
		featureType: fields[2],
		start:       start,
		end:         end,
		strand:      fields[6],
		attributes:  parseAttributes(fields[8]),
	}, nil
}

// parseAttributes parses the GTF attribute column.
// Format: key "value"; key "value"; ...
// Repeated keys (typically "tag") are joined with commas.
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)

	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		idx := strings.Index(part, " ")
		if idx == -1 {
			continue
		}

		key := part[:idx]
		value := strings.Trim(strings.TrimSpace(part[idx+1:]), "\"")

		if prev, ok := attrs[key]; ok {
			attrs[key] = prev + "," + value
			continue
		}
		attrs[key] = value
	}

	return attrs
}

func hasCanonicalTag(tags string) bool {
	if tags == "" {
		return false
	}
	for _, tag := range strings.Split(tags, ",") {
		for _, c := range canonicalTags {
			if tag == c {
				return true
			}
		}
	}
	return false
}
