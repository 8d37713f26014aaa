package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/inodb/genobench/internal/genome"
	"github.com/inodb/genobench/internal/output"
	"github.com/inodb/genobench/internal/pipeline"
)

// CheckReference compares the ref and alt alleles of every row with the
// reference genome. Rows whose lookup fails are counted, not fatal. With
// correctSwapped, swapped rows have their alleles exchanged.
func (o *Orchestrator) CheckReference(correctSwapped bool) (output.AlleleSummary, []*output.AlleleCheck, error) {
	if o.state < Parsed {
		return output.AlleleSummary{}, nil, &StageError{Stage: "check_reference", Current: o.state, Minimum: Parsed, Maximum: Labeled}
	}
	if correctSwapped && o.state >= Saved {
		return output.AlleleSummary{}, nil, &StageError{Stage: "check_reference", Current: o.state, Minimum: Parsed, Maximum: Labeled}
	}
	ri, ai := o.table.ExtraIndex(pipeline.ColRef), o.table.ExtraIndex(pipeline.ColAlt)
	if ri < 0 || ai < 0 {
		return output.AlleleSummary{}, nil, fmt.Errorf("dataset %s has no ref/alt columns", o.cfg.Dataset)
	}
	if o.genome == nil {
		return output.AlleleSummary{}, nil, errors.New("no genome configured for reference check")
	}
	ref, err := o.genome.Reference()
	if err != nil {
		return output.AlleleSummary{}, nil, err
	}

	out := o.table
	if correctSwapped {
		out = o.table.Clone()
	}

	var sum output.AlleleSummary
	checks := make([]*output.AlleleCheck, 0, out.Len())
	for i := range out.Rows {
		r := &out.Rows[i]
		sum.Total++
		c := &output.AlleleCheck{
			Chrom: r.Chrom,
			Pos:   r.Start + 1,
			Gene:  r.GeneName,
			Ref:   r.Extra[ri].String,
			Alt:   r.Extra[ai].String,
		}
		checks = append(checks, c)

		status, bases, err := ref.CheckRecord(r.Chrom, r.Start+1, c.Ref, c.Alt)
		if err != nil {
			var oor *genome.CoordinateOutOfRangeError
			if !errors.As(err, &oor) {
				return output.AlleleSummary{}, nil, err
			}
			sum.Failed++
			c.Status = "failed"
			c.Message = err.Error()
			continue
		}
		c.Genome = bases
		c.Status = status.String()

		switch status {
		case genome.AlleleMatched:
			sum.Matched++
		case genome.AlleleSwapped:
			sum.Swapped++
			if correctSwapped {
				r.Extra[ri], r.Extra[ai] = r.Extra[ai], r.Extra[ri]
				sum.Corrected++
			}
		default:
			sum.Mismatched++
		}
	}

	if correctSwapped {
		o.table = out
	}
	o.logger.Info("checked reference alleles",
		zap.Int("matched", sum.Matched),
		zap.Int("swapped", sum.Swapped),
		zap.Int("mismatched", sum.Mismatched),
		zap.Int("failed", sum.Failed))
	return sum, checks, nil
}

// ExportVCF writes positive.vcf, negative.vcf and vcf_summary.txt into dir,
// or into a vcf directory beside the processed table when dir is empty.
func (o *Orchestrator) ExportVCF(dir string) (output.VCFExport, error) {
	if o.state < Labeled {
		return output.VCFExport{}, &StageError{Stage: "export_vcf", Current: o.state, Minimum: Labeled, Maximum: Saved}
	}
	if dir == "" {
		dir = filepath.Join(o.outputDir(), "vcf")
	}
	exp, err := output.ExportVCF(o.table, dir, pipeline.ColRef, pipeline.ColAlt)
	if err != nil {
		return output.VCFExport{}, err
	}
	o.logger.Info("exported VCF",
		zap.String("dir", dir),
		zap.Int("positives", exp.Positives),
		zap.Int("negatives", exp.Negatives))
	return exp, nil
}

// Plan configures a full Run.
type Plan struct {
	MinDistance       int64
	MaxDistance       int64 // 0 means unbounded
	ProteinCodingOnly bool
	SNPOnly           bool
	Policy            pipeline.Policy // nil uses the dataset default
}

// RunReport collects the stage reports of a Run.
type RunReport struct {
	Parse    ParseReport
	Annotate AnnotateReport
	Distance pipeline.FilterReport
	Label    pipeline.LabelReport
	Save     SaveReport
}

// Run executes every remaining stage up to Saved. Stages already done are
// skipped.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (RunReport, error) {
	var (
		rep RunReport
		err error
	)
	if _, err = o.Fetch(ctx); err != nil {
		return rep, err
	}
	if rep.Parse, err = o.Parse(); err != nil {
		return rep, err
	}
	if err = ctx.Err(); err != nil {
		return rep, err
	}

	if rep.Annotate, err = o.AddStrandInfo(); err != nil {
		return rep, err
	}

	if plan.ProteinCodingOnly && o.state < Labeled {
		if _, err = o.FilterProteinCoding(); err != nil {
			return rep, err
		}
	}
	if plan.SNPOnly && o.state < Labeled {
		if _, err = o.FilterSNPOnly(); err != nil {
			return rep, err
		}
	}

	high := plan.MaxDistance
	if high == 0 {
		high = math.MaxInt64
	}
	if rep.Distance, err = o.FilterDistance(plan.MinDistance, high); err != nil {
		return rep, err
	}
	if rep.Label, err = o.Label(plan.Policy); err != nil {
		return rep, err
	}
	if err = ctx.Err(); err != nil {
		return rep, err
	}
	if rep.Save, err = o.Save(); err != nil {
		return rep, err
	}
	return rep, nil
}
