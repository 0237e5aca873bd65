package core

import (
	"strings"
	"testing"
)

func validSubmission() *Submission {
	return &Submission{
		EssayID:   "essay-1",
		UserID:    "user-1",
		EssayText: "The industrial revolution reshaped European society...",
		Brief:     "Discuss the social impact of the industrial revolution.",
	}
}

func TestValidateSubmission_Valid(t *testing.T) {
	if err := ValidateSubmission(validSubmission()); err != nil {
		t.Errorf("ValidateSubmission(valid) = %v, want nil", err)
	}
}

func TestValidateSubmission_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Submission)
	}{
		{"missing essay_id", func(s *Submission) { s.EssayID = "" }},
		{"missing user_id", func(s *Submission) { s.UserID = "" }},
		{"missing essay_text", func(s *Submission) { s.EssayText = "" }},
		{"missing brief", func(s *Submission) { s.Brief = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := validSubmission()
			tt.mutate(sub)
			err := ValidateSubmission(sub)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if err.Code != ErrCodeValidation {
				t.Errorf("Code = %q, want %q", err.Code, ErrCodeValidation)
			}
		})
	}
}

func TestValidateSubmission_OversizedEssay(t *testing.T) {
	sub := validSubmission()
	sub.EssayText = strings.Repeat("a", MaxEssayBytes+1)
	if err := ValidateSubmission(sub); err == nil {
		t.Error("expected validation error for oversized essay")
	}
}

func TestValidateGradingConfig(t *testing.T) {
	run := func(n int) []ModelRun {
		runs := make([]ModelRun, n)
		for i := range runs {
			runs[i] = ModelRun{Model: "gpt-4o-mini", Temperature: 0.5}
		}
		return runs
	}

	tests := []struct {
		name    string
		cfg     GradingConfig
		wantErr bool
	}{
		{"one run", GradingConfig{Runs: run(1)}, false},
		{"ten runs", GradingConfig{Runs: run(10)}, false},
		{"zero runs", GradingConfig{}, true},
		{"eleven runs", GradingConfig{Runs: run(11)}, true},
		{"missing model", GradingConfig{Runs: []ModelRun{{Temperature: 0.5}}}, true},
		{"temperature below range", GradingConfig{Runs: []ModelRun{{Model: "m", Temperature: -0.1}}}, true},
		{"temperature above range", GradingConfig{Runs: []ModelRun{{Model: "m", Temperature: 1.1}}}, true},
		{"temperature at bounds", GradingConfig{Runs: []ModelRun{{Model: "m", Temperature: 0}, {Model: "m", Temperature: 1}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGradingConfig(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGradingConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
