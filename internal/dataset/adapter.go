package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/inodb/genobench/internal/genome"
	"github.com/inodb/genobench/internal/table"
	"github.com/inodb/genobench/internal/tableio"
)

// Kind selects the parse rule of an adapter.
type Kind int

const (
	// KindEnhancerPair reads one interval-gene table with provided labels.
	KindEnhancerPair Kind = iota
	// KindMergedEnhancer unions several interval-gene tables and collapses
	// duplicate pairs by source precedence.
	KindMergedEnhancer
	// KindEQTLVariant reads variant-gene associations keyed by a variant id
	// of the form chr1_1291731_TG_T_b38.
	KindEQTLVariant
)

var kindNames = map[Kind]string{
	KindEnhancerPair:   "enhancer_pair",
	KindMergedEnhancer: "merged_enhancer",
	KindEQTLVariant:    "eqtl_variant",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// UnmarshalYAML decodes a kind name.
func (k *Kind) UnmarshalYAML(value *yaml.Node) error {
	for kind, name := range kindNames {
		if value.Value == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("line %d: unknown adapter kind %q", value.Line, value.Value)
}

// Canonical keys accepted in Adapter.Columns besides the table columns.
const (
	ColVariantID = "variant_id"
	ColRef       = "ref"
	ColAlt       = "alt"
	ColSource    = "source"
)

// columnOrder fixes the order in which mapped columns are checked, so that
// missing columns are always reported in the same order.
var columnOrder = []string{
	table.ColChrom, table.ColStart, table.ColEnd, ColVariantID,
	table.ColGeneName, table.ColGeneTSS, table.ColStrand, table.ColScore,
}

// Adapter converts a dataset's raw tables into a canonical table.
type Adapter struct {
	Name     string            `yaml:"-"`
	Kind     Kind              `yaml:"kind"`
	Columns  map[string]string `yaml:"columns"`   // canonical name -> raw column
	Extras   []string          `yaml:"extras"`    // raw columns carried as extra columns
	OneBased bool              `yaml:"one_based"` // raw coordinates are 1-based inclusive
	Label    string            `yaml:"label"`     // raw column holding provided labels
	Source   string            `yaml:"source"`    // raw column naming the source dataset
	Sources  []string          `yaml:"sources"`   // merge precedence, highest first
}

// Parse builds a canonical table from the adapter's raw inputs.
// KindMergedEnhancer accepts one or more raws; the others exactly one.
func (a *Adapter) Parse(raws ...*tableio.Raw) (*table.Table, error) {
	if len(raws) == 0 {
		return nil, fmt.Errorf("dataset %s: no raw input", a.Name)
	}

	switch a.Kind {
	case KindEnhancerPair:
		if len(raws) != 1 {
			return nil, fmt.Errorf("dataset %s: expected 1 raw input, got %d", a.Name, len(raws))
		}
		return a.parsePairs(raws[0], a.extraColumns())
	case KindMergedEnhancer:
		return a.parseMerged(raws)
	case KindEQTLVariant:
		if len(raws) != 1 {
			return nil, fmt.Errorf("dataset %s: expected 1 raw input, got %d", a.Name, len(raws))
		}
		return a.parseVariants(raws[0])
	}
	return nil, fmt.Errorf("dataset %s: unsupported adapter kind %s", a.Name, a.Kind)
}

// extraColumns returns the extra columns of the output table.
func (a *Adapter) extraColumns() []string {
	var extras []string
	if a.Kind == KindEQTLVariant {
		extras = append(extras, ColVariantID, ColRef, ColAlt)
	}
	extras = append(extras, a.Extras...)
	if a.Kind == KindMergedEnhancer {
		extras = append(extras, ColSource)
	}
	return extras
}

// columnIndices resolves every mapped column against raw, reporting all
// missing ones at once.
func (a *Adapter) columnIndices(raw *tableio.Raw, required ...string) (map[string]int, error) {
	idx := make(map[string]int)
	var missing []string

	need := func(key, col string) {
		if i := raw.Column(col); i >= 0 {
			idx[key] = i
		} else {
			missing = append(missing, col)
		}
	}

	for _, key := range required {
		if _, ok := a.Columns[key]; !ok {
			return nil, fmt.Errorf("dataset %s: adapter has no mapping for %q", a.Name, key)
		}
	}
	for _, key := range columnOrder {
		if col, ok := a.Columns[key]; ok {
			need(key, col)
		}
	}
	if a.Label != "" {
		need(table.ColLabel, a.Label)
	}
	if a.Kind == KindMergedEnhancer && a.Source != "" {
		need(ColSource, a.Source)
	}
	for _, col := range a.Extras {
		need("extra:"+col, col)
	}

	if len(missing) > 0 {
		return nil, &SchemaMismatchError{Dataset: a.Name, Source: raw.Name, Missing: missing}
	}
	return idx, nil
}

// parsePairs reads interval-gene rows from one raw table.
func (a *Adapter) parsePairs(raw *tableio.Raw, extras []string) (*table.Table, error) {
	idx, err := a.columnIndices(raw, table.ColChrom, table.ColStart, table.ColEnd, table.ColGeneName)
	if err != nil {
		return nil, err
	}

	t := table.New(extras...)
	for n, rec := range raw.Records {
		r, err := a.baseRow(n, rec, idx)
		if err != nil {
			return nil, err
		}

		start, err := a.intCell(n, rec, idx, table.ColStart)
		if err != nil {
			return nil, err
		}
		end, err := a.intCell(n, rec, idx, table.ColEnd)
		if err != nil {
			return nil, err
		}
		if a.OneBased {
			start--
		}
		r.Chrom = genome.NormalizeChrom(rec[idx[table.ColChrom]])
		r.Start = start
		r.End = end

		a.fillExtras(&r, rec, idx, extras)
		t.Append(r)
	}
	return t, nil
}

// parseMerged unions pair tables and collapses duplicate
// (chrom, start, end, gene_name) rows. The row whose source ranks first in
// Sources wins; unlisted sources rank after listed ones; equal ranks keep
// the first occurrence. Output follows the first appearance of each pair.
func (a *Adapter) parseMerged(raws []*tableio.Raw) (*table.Table, error) {
	extras := a.extraColumns()
	srcCol := len(extras) - 1

	rank := make(map[string]int, len(a.Sources))
	for i, s := range a.Sources {
		rank[s] = i
	}
	rankOf := func(source string) int {
		if r, ok := rank[source]; ok {
			return r
		}
		return len(a.Sources)
	}

	type pairKey struct {
		chrom      string
		start, end int64
		gene       string
	}

	out := table.New(extras...)
	pos := make(map[pairKey]int)
	for _, raw := range raws {
		parsed, err := a.parsePairs(raw, extras)
		if err != nil {
			return nil, err
		}
		for _, r := range parsed.Rows {
			if !r.Extra[srcCol].Valid || a.Source == "" {
				r.Extra[srcCol] = null.StringFrom(raw.Name)
			}

			k := pairKey{r.Chrom, r.Start, r.End, r.GeneName}
			i, seen := pos[k]
			if !seen {
				pos[k] = out.Len()
				out.Append(r)
				continue
			}
			if rankOf(r.Extra[srcCol].String) < rankOf(out.Rows[i].Extra[srcCol].String) {
				out.Rows[i] = r
			}
		}
	}
	return out, nil
}

// parseVariants reads eQTL rows keyed by variant id.
func (a *Adapter) parseVariants(raw *tableio.Raw) (*table.Table, error) {
	idx, err := a.columnIndices(raw, ColVariantID, table.ColGeneName)
	if err != nil {
		return nil, err
	}

	extras := a.extraColumns()
	t := table.New(extras...)
	for n, rec := range raw.Records {
		r, err := a.baseRow(n, rec, idx)
		if err != nil {
			return nil, err
		}

		id := strings.TrimSpace(rec[idx[ColVariantID]])
		v, err := ParseVariantID(id)
		if err != nil {
			return nil, &ValueError{Dataset: a.Name, Row: n, Column: a.Columns[ColVariantID], Value: id}
		}

		start := v.Pos
		if a.OneBased {
			start--
		}
		r.Chrom = v.Chrom
		r.Start = start
		r.End = start + int64(len(v.Ref))

		a.fillExtras(&r, rec, idx, a.Extras)
		r.Extra = append([]null.String{null.StringFrom(id), null.StringFrom(v.Ref), null.StringFrom(v.Alt)}, r.Extra...)
		t.Append(r)
	}
	return t, nil
}

// baseRow fills gene, score, label and provided annotation fields.
func (a *Adapter) baseRow(n int, rec []string, idx map[string]int) (table.Row, error) {
	r := table.Row{GeneName: strings.TrimSpace(rec[idx[table.ColGeneName]])}

	if i, ok := idx[table.ColScore]; ok {
		score, err := tableio.ParseFloat(rec[i])
		if err != nil {
			return r, &ValueError{Dataset: a.Name, Row: n, Column: a.Columns[table.ColScore], Value: rec[i]}
		}
		r.Score = score
	}
	if i, ok := idx[table.ColGeneTSS]; ok {
		tss, err := tableio.ParseInt(rec[i])
		if err != nil {
			return r, &ValueError{Dataset: a.Name, Row: n, Column: a.Columns[table.ColGeneTSS], Value: rec[i]}
		}
		r.GeneTSS = tss
	}
	if i, ok := idx[table.ColStrand]; ok {
		r.Strand = genome.ParseStrand(strings.TrimSpace(rec[i]))
	}
	if i, ok := idx[table.ColLabel]; ok {
		label, err := ParseLabel(rec[i])
		if err != nil {
			return r, &ValueError{Dataset: a.Name, Row: n, Column: a.Label, Value: rec[i]}
		}
		r.Label = label
	}
	return r, nil
}

func (a *Adapter) intCell(n int, rec []string, idx map[string]int, key string) (int64, error) {
	s := strings.TrimSpace(rec[idx[key]])
	v, err := tableio.ParseInt(s)
	if err != nil || !v.Valid || v.Int64 < 0 {
		return 0, &ValueError{Dataset: a.Name, Row: n, Column: a.Columns[key], Value: s}
	}
	return v.Int64, nil
}

// fillExtras copies extra raw columns in the order of names. A source
// column, when mapped, lands in the "source" extra.
func (a *Adapter) fillExtras(r *table.Row, rec []string, idx map[string]int, names []string) {
	r.Extra = make([]null.String, 0, len(names))
	for _, name := range names {
		var v null.String
		switch {
		case name == ColSource && a.Kind == KindMergedEnhancer:
			if i, ok := idx[ColSource]; ok {
				v = tableio.ParseString(rec[i])
			}
		default:
			if i, ok := idx["extra:"+name]; ok {
				v = tableio.ParseString(rec[i])
			}
		}
		r.Extra = append(r.Extra, v)
	}
}

// ParseLabel accepts TRUE/FALSE, 1/0 and yes/no in any case.
func ParseLabel(s string) (null.Int, error) {
	s = strings.TrimSpace(s)
	if tableio.IsNull(s) {
		return null.Int{}, nil
	}
	switch strings.ToLower(s) {
	case "true", "1", "1.0", "yes":
		return null.IntFrom(1), nil
	case "false", "0", "0.0", "no":
		return null.IntFrom(0), nil
	}
	return null.Int{}, fmt.Errorf("invalid label %q", s)
}

// Variant is a parsed eQTL variant id.
type Variant struct {
	Chrom string
	Pos   int64 // 1-based
	Ref   string
	Alt   string
	Build string
}

// ParseVariantID parses ids like "chr1_1291731_TG_T_b38".
func ParseVariantID(id string) (Variant, error) {
	parts := strings.Split(id, "_")
	if len(parts) < 4 {
		return Variant{}, fmt.Errorf("variant id %q: expected chrom_pos_ref_alt[_build]", id)
	}
	pos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || pos < 1 {
		return Variant{}, fmt.Errorf("variant id %q: invalid position", id)
	}
	if parts[2] == "" || parts[3] == "" {
		return Variant{}, fmt.Errorf("variant id %q: empty allele", id)
	}
	v := Variant{
		Chrom: genome.NormalizeChrom(parts[0]),
		Pos:   pos,
		Ref:   strings.ToUpper(parts[2]),
		Alt:   strings.ToUpper(parts[3]),
	}
	if len(parts) > 4 {
		v.Build = parts[4]
	}
	return v, nil
}
