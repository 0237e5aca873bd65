package core

import (
	"sort"
	"strings"
)

// ConsensusPolicy tunes how disagreeing model outputs are reduced to one
// grade range. Zero values fall back to the defaults below.
type ConsensusPolicy struct {
	// DeviationBand is the maximum distance from the median percentage
	// for a run to be included in consensus.
	DeviationBand float64

	// RangeBuffer widens the reported range beyond the included min/max.
	RangeBuffer float64
}

const (
	DefaultDeviationBand = 10.0
	DefaultRangeBuffer   = 3.0
)

func (p ConsensusPolicy) withDefaults() ConsensusPolicy {
	if p.DeviationBand <= 0 {
		p.DeviationBand = DefaultDeviationBand
	}
	if p.RangeBuffer <= 0 {
		p.RangeBuffer = DefaultRangeBuffer
	}
	return p
}

// RunOutcome is one successful model run handed to the reducer.
type RunOutcome struct {
	Model      string
	Percentage float64
	Feedback   Feedback
}

// Reduce computes the consensus grade from the successful run outcomes.
// Runs outside the deviation band of the median are excluded with reason
// "outlier" but kept in the result for auditability. A single included
// run degenerates to [pct-buffer, pct+buffer]; that is not an error.
// When the band excludes every run, all runs are included instead: a
// disagreement with no majority has no outliers to exclude.
//
// failed carries the non-included results of runs that produced no
// percentage at all; they are appended to the model list untouched.
func Reduce(outcomes []RunOutcome, failed []ModelResult, policy ConsensusPolicy) *GradeResult {
	if len(outcomes) == 0 {
		return nil
	}
	policy = policy.withDefaults()

	med := median(outcomes)

	var (
		models   []ModelResult
		included []RunOutcome
	)
	for _, o := range outcomes {
		dev := o.Percentage - med
		if dev < 0 {
			dev = -dev
		}
		if dev <= policy.DeviationBand {
			included = append(included, o)
			models = append(models, ModelResult{
				Model:      o.Model,
				Percentage: o.Percentage,
				Included:   true,
			})
		} else {
			models = append(models, ModelResult{
				Model:      o.Model,
				Percentage: o.Percentage,
				Included:   false,
				Reason:     ReasonOutlier,
			})
		}
	}

	// With an even run count the median is the average of the two
	// middle values, so two runs more than twice the band apart can
	// exclude every run. No run is more of an outlier than another
	// then; keep them all and report the wide range honestly.
	if len(included) == 0 {
		included = outcomes
		models = models[:0]
		for _, o := range outcomes {
			models = append(models, ModelResult{
				Model:      o.Model,
				Percentage: o.Percentage,
				Included:   true,
			})
		}
	}
	models = append(models, failed...)

	lo, hi := included[0].Percentage, included[0].Percentage
	for _, o := range included[1:] {
		if o.Percentage < lo {
			lo = o.Percentage
		}
		if o.Percentage > hi {
			hi = o.Percentage
		}
	}
	lower := clampPercent(lo - policy.RangeBuffer)
	upper := clampPercent(hi + policy.RangeBuffer)

	return &GradeResult{
		LowerPercent: lower,
		UpperPercent: upper,
		LetterBand:   LetterBand((lower + upper) / 2),
		Models:       models,
		Feedback:     mergeFeedback(included),
	}
}

// LetterBand maps a percentage to a letter grade via fixed thresholds.
func LetterBand(pct float64) string {
	switch {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	default:
		return "F"
	}
}

func median(outcomes []RunOutcome) float64 {
	pcts := make([]float64, len(outcomes))
	for i, o := range outcomes {
		pcts[i] = o.Percentage
	}
	sort.Float64s(pcts)
	n := len(pcts)
	if n%2 == 1 {
		return pcts[n/2]
	}
	return (pcts[n/2-1] + pcts[n/2]) / 2
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// mergeFeedback unions the qualitative feedback of the included runs,
// collapsing entries with the same title (case-insensitive). The first
// run to mention a topic wins; later duplicates are dropped.
func mergeFeedback(included []RunOutcome) Feedback {
	var merged Feedback

	seenStrength := map[string]bool{}
	seenImprovement := map[string]bool{}
	seenTip := map[string]bool{}
	seenResource := map[string]bool{}

	for _, o := range included {
		for _, s := range o.Feedback.Strengths {
			key := strings.ToLower(strings.TrimSpace(s.Title))
			if key == "" || seenStrength[key] {
				continue
			}
			seenStrength[key] = true
			merged.Strengths = append(merged.Strengths, s)
		}
		for _, imp := range o.Feedback.Improvements {
			key := strings.ToLower(strings.TrimSpace(imp.Title))
			if key == "" || seenImprovement[key] {
				continue
			}
			seenImprovement[key] = true
			merged.Improvements = append(merged.Improvements, imp)
		}
		for _, tip := range o.Feedback.LanguageTips {
			key := strings.ToLower(strings.TrimSpace(tip.Category))
			if key == "" || seenTip[key] {
				continue
			}
			seenTip[key] = true
			merged.LanguageTips = append(merged.LanguageTips, tip)
		}
		for _, r := range o.Feedback.Resources {
			key := strings.ToLower(strings.TrimSpace(r.URL))
			if key == "" || seenResource[key] {
				continue
			}
			seenResource[key] = true
			merged.Resources = append(merged.Resources, r)
		}
	}
	return merged
}
