package pipeline

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/guregu/null.v3"

	"github.com/inodb/genobench/internal/table"
)

// Policy decides how labels are assigned. It is one of FixedThreshold or
// ProvidedLabel.
type Policy interface {
	isPolicy()
}

// FixedThreshold labels score >= Pos as 1 and score <= Neg as 0. Rows with
// a score strictly between the thresholds, or without a score, are removed.
type FixedThreshold struct {
	Pos float64
	Neg float64
}

// ProvidedLabel keeps labels already present in the table after checking
// that every one is 0 or 1.
type ProvidedLabel struct{}

func (FixedThreshold) isPolicy() {}
func (ProvidedLabel) isPolicy()  {}

// LabelReport counts the outcome of Assign.
type LabelReport struct {
	Positives int
	Negatives int
	Excluded  int // score strictly between thresholds
	NullScore int // removed for lacking a score
}

// Assign applies policy to t. scoreColumn is read only by FixedThreshold.
func Assign(t *table.Table, scoreColumn string, policy Policy) (*table.Table, LabelReport, error) {
	switch p := policy.(type) {
	case FixedThreshold:
		return assignFixed(t, scoreColumn, p)
	case *FixedThreshold:
		return assignFixed(t, scoreColumn, *p)
	case ProvidedLabel, *ProvidedLabel:
		return validateProvided(t)
	}
	return nil, LabelReport{}, fmt.Errorf("unsupported label policy %T", policy)
}

func assignFixed(t *table.Table, scoreColumn string, p FixedThreshold) (*table.Table, LabelReport, error) {
	if !(p.Pos > p.Neg) {
		return nil, LabelReport{}, &InvalidThresholdError{Pos: p.Pos, Neg: p.Neg}
	}

	scores, err := t.Numeric(scoreColumn)
	if err != nil {
		return nil, LabelReport{}, err
	}

	var rep LabelReport
	out := &table.Table{Extra: append([]string(nil), t.Extra...)}
	for i, r := range t.Rows {
		s := scores[i]
		switch {
		case !s.Valid || math.IsNaN(s.Float64):
			rep.NullScore++
			continue
		case s.Float64 >= p.Pos:
			r.Label = null.IntFrom(1)
			rep.Positives++
		case s.Float64 <= p.Neg:
			r.Label = null.IntFrom(0)
			rep.Negatives++
		default:
			rep.Excluded++
			continue
		}
		r.Extra = append([]null.String(nil), r.Extra...)
		out.Rows = append(out.Rows, r)
	}
	return out, rep, nil
}

func validateProvided(t *table.Table) (*table.Table, LabelReport, error) {
	var rep LabelReport
	for i, r := range t.Rows {
		if !r.Label.Valid {
			return nil, LabelReport{}, &LabelValidationError{Row: i, Value: "null"}
		}
		switch r.Label.Int64 {
		case 1:
			rep.Positives++
		case 0:
			rep.Negatives++
		default:
			return nil, LabelReport{}, &LabelValidationError{Row: i, Value: strconv.FormatInt(r.Label.Int64, 10)}
		}
	}
	return t.Clone(), rep, nil
}
