package tableio

import "fmt"

// FormatError reports a table file that cannot be parsed.
type FormatError struct {
	Path    string
	Line    int
	Message string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("table format error at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("%s: table format error at line %d: %s", e.Path, e.Line, e.Message)
}
