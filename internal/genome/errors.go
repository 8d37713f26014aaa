package genome

import "fmt"

// MalformedAnnotationError reports a gene-model record that cannot be used.
type MalformedAnnotationError struct {
	Line    int
	Field   string
	Message string
}

func (e *MalformedAnnotationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed annotation at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("malformed annotation at line %d: %s: %s", e.Line, e.Field, e.Message)
}

// CoordinateOutOfRangeError reports a lookup against an unknown contig or
// outside a contig's bounds. Length is -1 when the contig is unknown.
type CoordinateOutOfRangeError struct {
	Chrom  string
	Pos    int64
	Length int64
}

func (e *CoordinateOutOfRangeError) Error() string {
	if e.Length < 0 {
		return fmt.Sprintf("coordinate %s:%d out of range: unknown contig", e.Chrom, e.Pos)
	}
	return fmt.Sprintf("coordinate %s:%d out of range: contig length %d", e.Chrom, e.Pos, e.Length)
}
