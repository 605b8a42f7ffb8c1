// Package config loads process configuration from the environment,
// optionally pre-populated from a .env file, following the bootstrap
// style of the retrieval pack's own CLI entry points.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/lokutor-ai/lokutor-relay/pkg/orchestrator"
)

// Load reads a .env file at path if present (missing is not an error,
// matching godotenv.Load's typical use in a dev bootstrap) and returns
// an orchestrator.Config built from environment variables, falling
// back to orchestrator.DefaultConfig for anything unset.
func Load(path string) (orchestrator.Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return orchestrator.Config{}, err
		}
	}

	cfg := orchestrator.DefaultConfig()

	if v, ok := lookupInt("RELAY_MAX_CONCURRENT_UTTERANCES"); ok {
		cfg.MaxConcurrentUtterances = v
	}
	if v, ok := lookupDuration("RELAY_UTTERANCE_TIMEOUT"); ok {
		cfg.UtteranceTimeout = v
	}
	if v, ok := lookupDuration("RELAY_CLEANUP_INTERVAL"); ok {
		cfg.CleanupInterval = v
	}
	if v, ok := lookupBool("RELAY_ENABLE_AUTOMATIC_CLEANUP"); ok {
		cfg.EnableAutomaticCleanup = v
	}

	return cfg, nil
}

// STTAPIKey, MTAPIKey, TTSAPIKey read the credentials the reference
// engine adapters need, matching the env-var-per-provider convention
// the pack's own demo CLI used.
func STTAPIKey() string { return os.Getenv("RELAY_STT_API_KEY") }
func MTAPIKey() string  { return os.Getenv("RELAY_MT_API_KEY") }
func TTSAPIKey() string { return os.Getenv("RELAY_TTS_API_KEY") }

func lookupInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func lookupBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
