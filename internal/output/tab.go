// Package output provides report and export formatters for processed tables.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/genobench/internal/pipeline"
	"github.com/inodb/genobench/internal/table"
)

// MetricsRow is one line of a metrics report.
type MetricsRow struct {
	Task        string
	Dataset     string
	ScoreColumn string
	Metrics     pipeline.Metrics
}

// TabWriter writes metrics reports in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#Task",
			"Dataset",
			"Score",
			"N",
			"Positives",
			"Negatives",
			"AUROC",
			"AUPRC",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single metrics row.
func (tw *TabWriter) Write(m MetricsRow) error {
	values := []string{
		m.Task,
		m.Dataset,
		m.ScoreColumn,
		strconv.Itoa(m.Metrics.N),
		strconv.Itoa(m.Metrics.Positives),
		strconv.Itoa(m.Metrics.Negatives),
		formatMetric(m.Metrics.AUROC),
		formatMetric(m.Metrics.AUPRC),
	}
	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// WriteDistribution writes a human-readable label distribution.
func WriteDistribution(w io.Writer, name string, d table.Distribution) error {
	_, err := fmt.Fprintf(w, "%s\n  Total:     %d\n  Positives: %d (%s)\n  Negatives: %d (%s)\n",
		name, d.Total, d.Positives, percent(d.Positives, d.Total), d.Negatives, percent(d.Negatives, d.Total))
	if err != nil || d.Unlabeled == 0 {
		return err
	}
	_, err = fmt.Fprintf(w, "  Unlabeled: %d (%s)\n", d.Unlabeled, percent(d.Unlabeled, d.Total))
	return err
}

func percent(n, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(n)/float64(total)*100)
}
