package dataset

import (
	"fmt"
	"strings"
)

// SchemaMismatchError reports raw columns an adapter expects but cannot find.
type SchemaMismatchError struct {
	Dataset string
	Source  string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("dataset %s: source %q missing columns: %s",
		e.Dataset, e.Source, strings.Join(e.Missing, ", "))
}

// ValueError reports a raw cell that cannot be converted.
type ValueError struct {
	Dataset string
	Row     int // 0-based record index
	Column  string
	Value   string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("dataset %s: row %d: column %q: invalid value %q", e.Dataset, e.Row, e.Column, e.Value)
}
