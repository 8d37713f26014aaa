package pipeline

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/inodb/genobench/internal/table"
)

// Metrics holds ranking-quality scores of one score column.
type Metrics struct {
	AUROC     float64
	AUPRC     float64
	N         int
	Positives int
	Negatives int
}

// Evaluate scores scoreColumn against the label column. Rows where either
// value is null are skipped.
//
// AUROC is the trapezoidal area under the ROC curve over every distinct
// score, which equals the probability that a random positive outranks a
// random negative with ties counting one half. AUPRC is the average
// precision over the same operating points.
func Evaluate(t *table.Table, scoreColumn string) (Metrics, error) {
	scores, err := t.Numeric(scoreColumn)
	if err != nil {
		return Metrics{}, err
	}

	var (
		y       []float64
		classes []bool
		m       Metrics
	)
	for i, r := range t.Rows {
		s := scores[i]
		if !s.Valid || math.IsNaN(s.Float64) || !r.Label.Valid {
			continue
		}
		y = append(y, s.Float64)
		positive := r.Label.Int64 == 1
		classes = append(classes, positive)
		if positive {
			m.Positives++
		} else {
			m.Negatives++
		}
	}
	m.N = len(y)

	if m.Positives == 0 || m.Negatives == 0 {
		return Metrics{}, &InsufficientClassDiversityError{Positives: m.Positives, Negatives: m.Negatives}
	}

	// stat.ROC requires y in ascending order.
	inds := make([]int, len(y))
	floats.Argsort(y, inds)
	sorted := make([]bool, len(classes))
	for i, j := range inds {
		sorted[i] = classes[j]
	}

	tpr, fpr, _ := stat.ROC(nil, y, sorted, nil)
	m.AUROC = integrate.Trapezoidal(fpr, tpr)
	m.AUPRC = averagePrecision(tpr, fpr, float64(m.Positives), float64(m.Negatives))
	return m, nil
}

// averagePrecision sums precision weighted by recall increments, walking
// the operating points from the highest cutoff down.
func averagePrecision(tpr, fpr []float64, nPos, nNeg float64) float64 {
	var ap, prevRecall float64
	for i := range tpr {
		tp := tpr[i] * nPos
		fp := fpr[i] * nNeg
		if tp+fp == 0 {
			continue
		}
		ap += (tpr[i] - prevRecall) * tp / (tp + fp)
		prevRecall = tpr[i]
	}
	return ap
}
