package table

import "fmt"

// ColumnError reports a missing column, or a value in it that is not usable.
type ColumnError struct {
	Column string
	Row    int
	Value  string
}

func (e *ColumnError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("unknown column %q", e.Column)
	}
	return fmt.Sprintf("column %q row %d: non-numeric value %q", e.Column, e.Row, e.Value)
}

// RowError reports a row that violates the canonical schema.
type RowError struct {
	Row     int
	Column  string
	Message string
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Column, e.Message)
}
