package core

import "testing"

func outcomes(pcts ...float64) []RunOutcome {
	var out []RunOutcome
	for i, p := range pcts {
		out = append(out, RunOutcome{Model: modelName(i), Percentage: p})
	}
	return out
}

func modelName(i int) string {
	return "model-" + string(rune('a'+i))
}

func TestReduce_ExcludesOutlier(t *testing.T) {
	// Median of [70, 72, 95] is 72; 95 deviates by 23 and is excluded.
	result := Reduce(outcomes(70, 72, 95), nil, ConsensusPolicy{})
	if result == nil {
		t.Fatal("Reduce returned nil for non-empty outcomes")
	}

	if len(result.Models) != 3 {
		t.Fatalf("len(Models) = %d, want 3", len(result.Models))
	}

	var excluded *ModelResult
	for i := range result.Models {
		if result.Models[i].Percentage == 95 {
			excluded = &result.Models[i]
		}
	}
	if excluded == nil {
		t.Fatal("outlier run missing from model results")
	}
	if excluded.Included {
		t.Error("outlier run marked included")
	}
	if excluded.Reason != ReasonOutlier {
		t.Errorf("outlier reason = %q, want %q", excluded.Reason, ReasonOutlier)
	}

	// Range derives only from [70, 72] with buffer 3.
	if result.LowerPercent != 67 {
		t.Errorf("LowerPercent = %v, want 67", result.LowerPercent)
	}
	if result.UpperPercent != 75 {
		t.Errorf("UpperPercent = %v, want 75", result.UpperPercent)
	}
}

func TestReduce_SingleIncludedRun(t *testing.T) {
	result := Reduce(outcomes(85), nil, ConsensusPolicy{})
	if result == nil {
		t.Fatal("Reduce returned nil for a single outcome")
	}
	if result.LowerPercent != 82 || result.UpperPercent != 88 {
		t.Errorf("range = [%v, %v], want [82, 88]", result.LowerPercent, result.UpperPercent)
	}
	if !result.Models[0].Included {
		t.Error("single run should be included")
	}
}

func TestReduce_ClampsRange(t *testing.T) {
	tests := []struct {
		name  string
		pcts  []float64
		lower float64
		upper float64
	}{
		{"top of scale", []float64{99, 100}, 96, 100},
		{"bottom of scale", []float64{0, 2}, 0, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Reduce(outcomes(tt.pcts...), nil, ConsensusPolicy{})
			if result.LowerPercent != tt.lower || result.UpperPercent != tt.upper {
				t.Errorf("range = [%v, %v], want [%v, %v]",
					result.LowerPercent, result.UpperPercent, tt.lower, tt.upper)
			}
		})
	}
}

func TestReduce_EvenCountMedian(t *testing.T) {
	// Median of [60, 70, 80, 90] is 75; band ±10 keeps 70 and 80 only.
	result := Reduce(outcomes(60, 70, 80, 90), nil, ConsensusPolicy{})

	includedCount := 0
	for _, m := range result.Models {
		if m.Included {
			includedCount++
		}
	}
	if includedCount != 2 {
		t.Errorf("included count = %d, want 2", includedCount)
	}
	if result.LowerPercent != 67 || result.UpperPercent != 83 {
		t.Errorf("range = [%v, %v], want [67, 83]", result.LowerPercent, result.UpperPercent)
	}
}

func TestReduce_WideDisagreementKeepsAllRuns(t *testing.T) {
	// Median of [70, 95] is 82.5; both runs deviate by 12.5 and the
	// ±10 band would exclude everything. The reducer must keep both
	// rather than fail a job with valid percentages.
	result := Reduce(outcomes(70, 95), nil, ConsensusPolicy{})
	if result == nil {
		t.Fatal("Reduce returned nil for non-empty outcomes")
	}

	for _, m := range result.Models {
		if !m.Included {
			t.Errorf("run %s excluded; want all runs included when none fit the band", m.Model)
		}
	}
	if result.LowerPercent != 67 || result.UpperPercent != 98 {
		t.Errorf("range = [%v, %v], want [67, 98]", result.LowerPercent, result.UpperPercent)
	}
	if result.LetterBand != "B" {
		t.Errorf("LetterBand = %q, want B", result.LetterBand)
	}
}

func TestReduce_CarriesFailedRuns(t *testing.T) {
	failed := []ModelResult{{Model: "model-x", Included: false, Reason: ReasonRequestFailed}}
	result := Reduce(outcomes(80), failed, ConsensusPolicy{})

	if len(result.Models) != 2 {
		t.Fatalf("len(Models) = %d, want 2", len(result.Models))
	}
	last := result.Models[1]
	if last.Included || last.Reason != ReasonRequestFailed {
		t.Errorf("failed run = %+v, want excluded with reason %q", last, ReasonRequestFailed)
	}
}

func TestReduce_NoOutcomes(t *testing.T) {
	if result := Reduce(nil, nil, ConsensusPolicy{}); result != nil {
		t.Errorf("Reduce(nil) = %+v, want nil", result)
	}
}

func TestLetterBand(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{95, "A"},
		{90, "A"},
		{89.9, "B"},
		{80, "B"},
		{75, "C"},
		{65, "D"},
		{42, "F"},
	}

	for _, tt := range tests {
		if got := LetterBand(tt.pct); got != tt.want {
			t.Errorf("LetterBand(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}

func TestMergeFeedback_CollapsesDuplicateTitles(t *testing.T) {
	runs := []RunOutcome{
		{
			Percentage: 80,
			Feedback: Feedback{
				Strengths: []Strength{
					{Title: "Clear Thesis", Description: "from run one"},
				},
				Improvements: []Improvement{
					{Title: "Paragraph Structure", Description: "a", Suggestion: "b"},
				},
			},
		},
		{
			Percentage: 82,
			Feedback: Feedback{
				Strengths: []Strength{
					{Title: "clear thesis", Description: "duplicate, different case"},
					{Title: "Strong Evidence", Description: "unique"},
				},
				Improvements: []Improvement{
					{Title: "Paragraph Structure", Description: "dup", Suggestion: "dup"},
				},
			},
		},
	}

	merged := mergeFeedback(runs)
	if len(merged.Strengths) != 2 {
		t.Errorf("len(Strengths) = %d, want 2", len(merged.Strengths))
	}
	if merged.Strengths[0].Description != "from run one" {
		t.Error("first run's entry should win on duplicate title")
	}
	if len(merged.Improvements) != 1 {
		t.Errorf("len(Improvements) = %d, want 1", len(merged.Improvements))
	}
}
