package config

import (
	"os"
	"testing"
)

func TestLoadAppliesEnvOverrides(t *testing.T) {
	os.Setenv("RELAY_MAX_CONCURRENT_UTTERANCES", "25")
	os.Setenv("RELAY_ENABLE_AUTOMATIC_CLEANUP", "false")
	defer os.Unsetenv("RELAY_MAX_CONCURRENT_UTTERANCES")
	defer os.Unsetenv("RELAY_ENABLE_AUTOMATIC_CLEANUP")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxConcurrentUtterances != 25 {
		t.Errorf("expected override to apply, got %d", cfg.MaxConcurrentUtterances)
	}
	if cfg.EnableAutomaticCleanup {
		t.Error("expected cleanup disabled by override")
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	os.Unsetenv("RELAY_MAX_CONCURRENT_UTTERANCES")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxConcurrentUtterances != 10 {
		t.Errorf("expected default of 10, got %d", cfg.MaxConcurrentUtterances)
	}
}
