package fetch

import (
	"context"
	"fmt"
	"os"
)

// Local serves files that already exist on disk, such as a table supplied
// on the command line.
type Local struct {
	Result Result
}

// Fetch returns the configured paths after checking that the data file exists.
func (l Local) Fetch(ctx context.Context, task, name, outputDir string, downloadRaw bool) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(l.Result.DataPath); err != nil {
		return Result{}, fmt.Errorf("data file for %s/%s: %w", task, name, err)
	}
	res := l.Result
	if !downloadRaw {
		res.RawPath = ""
	}
	return res, nil
}
