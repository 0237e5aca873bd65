package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if cfg.Service.Address != ":8080" {
		t.Errorf("Address = %q", cfg.Service.Address)
	}
	if cfg.Grading.PriceCents != 100 {
		t.Errorf("PriceCents = %d", cfg.Grading.PriceCents)
	}
	if cfg.Grading.SignupBonus != 500 {
		t.Errorf("SignupBonus = %d", cfg.Grading.SignupBonus)
	}
	if len(cfg.Grading.Models) != 3 {
		t.Errorf("Models = %v", cfg.Grading.Models)
	}
	if cfg.Grading.ProcessingStale != 30*time.Minute {
		t.Errorf("ProcessingStale = %s", cfg.Grading.ProcessingStale)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MARKWISE_GRADING_MODELS", "gpt-4o,gpt-4o")
	t.Setenv("MARKWISE_GRADING_PRICE_CENTS", "250")
	t.Setenv("DB_TYPE", "sqlite")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if len(cfg.Grading.Models) != 2 || cfg.Grading.Models[0] != "gpt-4o" {
		t.Errorf("Models = %v", cfg.Grading.Models)
	}
	if cfg.Grading.PriceCents != 250 {
		t.Errorf("PriceCents = %d", cfg.Grading.PriceCents)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q", cfg.Database.Type)
	}
}
