// Package config loads and validates the configurable parameter table
// from spec.md §6. Every field has a hardcoded default and can be
// overridden from a JSON file without a schema migration.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// CoreConfig is the full set of tunable constants the rating, pairing,
// and convergence engines depend on.
type CoreConfig struct {
	EpsilonGreedy         float64 `json:"epsilon_greedy" validate:"min=0,max=1"`
	SkipInjectProbability float64 `json:"skip_inject_probability" validate:"min=0,max=1"`
	SkipCooldownMin       int     `json:"skip_cooldown_min" validate:"required,min=1"`
	SkipCooldownMax       int     `json:"skip_cooldown_max" validate:"required,min=1,gtefield=SkipCooldownMin"`
	RecentImagesWindow    int     `json:"recent_images_window" validate:"required,min=1"`
	RecentPairsWindow     int     `json:"recent_pairs_window" validate:"required,min=1"`
	ShortlistK            int     `json:"shortlist_k" validate:"required,min=1"`
	InfoGapAlpha          float64 `json:"info_gap_alpha" validate:"min=0"`
	SigmaInitial          float64 `json:"sigma_initial" validate:"required,min=1"`
	SigmaMin              float64 `json:"sigma_min" validate:"required,min=1,ltefield=SigmaInitial"`
	SigmaDecay            float64 `json:"sigma_decay" validate:"required,min=0,max=1"`
	KFactorBase           float64 `json:"k_factor_base" validate:"required,min=1"`
	KFactorMin            float64 `json:"k_factor_min" validate:"required,min=1"`
	KFactorMax            float64 `json:"k_factor_max" validate:"required,min=1,gtefield=KFactorMin"`
	TargetTopK            int     `json:"target_top_k" validate:"required,min=1"`
	MinExposuresPerImage  int     `json:"min_exposures_per_image" validate:"required,min=1"`
	SigmaConfidentMax     float64 `json:"sigma_confident_max" validate:"required,min=1"`
	StabilityWindow       int     `json:"stability_window" validate:"required,min=1"`
	TargetExposures       int     `json:"target_exposures" validate:"required,min=1"`
	MaxFiles              int     `json:"max_files" validate:"required,min=1"`
	MaxFileBytes          int64   `json:"max_file_bytes" validate:"required,min=1"`
	ScanWorkers           int     `json:"scan_workers" validate:"required,min=1,max=64"`
	RecordChoiceRetries   int     `json:"record_choice_retries" validate:"required,min=1,max=10"`
}

// Default returns the spec.md §6 default configuration.
func Default() CoreConfig {
	return CoreConfig{
		EpsilonGreedy:         0.10,
		SkipInjectProbability: 0.30,
		SkipCooldownMin:       11,
		SkipCooldownMax:       49,
		RecentImagesWindow:    64,
		RecentPairsWindow:     128,
		ShortlistK:            64,
		InfoGapAlpha:          1.0 / 100,
		SigmaInitial:          350,
		SigmaMin:              60,
		SigmaDecay:            0.97,
		KFactorBase:           24,
		KFactorMin:            8,
		KFactorMax:            48,
		TargetTopK:            40,
		MinExposuresPerImage:  5,
		SigmaConfidentMax:     90,
		StabilityWindow:       120,
		TargetExposures:       10,
		MaxFiles:              200_000,
		MaxFileBytes:          250 * 1024 * 1024,
		ScanWorkers:           4,
		RecordChoiceRetries:   3,
	}
}

var validate = validator.New()

// Load reads a JSON config file at path, falling back to Default for
// any field JSON leaves unset, and validates the result. A missing file
// is not an error: Default() alone is returned.
func Load(path string) (CoreConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return CoreConfig{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return CoreConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return CoreConfig{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save writes cfg to path as indented JSON.
func Save(path string, cfg CoreConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
