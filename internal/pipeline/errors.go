package pipeline

import "fmt"

// InvalidThresholdError reports a fixed-threshold policy whose thresholds do
// not split scores into three bands.
type InvalidThresholdError struct {
	Pos float64
	Neg float64
}

func (e *InvalidThresholdError) Error() string {
	return fmt.Sprintf("invalid thresholds: positive threshold %g must be greater than negative threshold %g", e.Pos, e.Neg)
}

// InvalidRangeError reports distance bounds that select nothing.
type InvalidRangeError struct {
	Low  int64
	High int64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid distance range [%d, %d]", e.Low, e.High)
}

// LabelValidationError reports a provided label that is missing or not 0/1.
type LabelValidationError struct {
	Row   int
	Value string
}

func (e *LabelValidationError) Error() string {
	return fmt.Sprintf("row %d: invalid label %s, expected 0 or 1", e.Row, e.Value)
}

// InsufficientClassDiversityError reports a label column lacking positives
// or negatives, for which ranking metrics are undefined.
type InsufficientClassDiversityError struct {
	Positives int
	Negatives int
}

func (e *InsufficientClassDiversityError) Error() string {
	return fmt.Sprintf("need both classes to compute metrics, got %d positive and %d negative", e.Positives, e.Negatives)
}
