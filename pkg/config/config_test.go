package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrant/mcc-go/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "steady_state", cfg.Engine.Variant)
	assert.Equal(t, "minimal_criterion", cfg.Evaluation.Mode)
}

func TestParseMergesOverDefaults(t *testing.T) {
	yaml := []byte(`
run:
  name: maze-night-run
  seed: 99
engine:
  population_size: 250
novelty_archive:
  initial_threshold: 3.5
`)
	cfg, err := Parse(yaml)
	require.NoError(t, err)

	// Overridden fields.
	assert.Equal(t, "maze-night-run", cfg.Run.Name)
	assert.Equal(t, int64(99), cfg.Run.Seed)
	assert.Equal(t, 250, cfg.Engine.PopulationSize)
	assert.Equal(t, 3.5, cfg.Archive.InitialThreshold)

	// Untouched fields keep their defaults.
	assert.Equal(t, "steady_state", cfg.Engine.Variant)
	assert.Equal(t, 10, cfg.Engine.BatchSize)
	assert.Equal(t, 20, cfg.MCC.QueueCapacity)
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("run: [unclosed"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ConfigurationInvalid))
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown engine variant", func(c *Config) { c.Engine.Variant = "quantum" }},
		{"unknown evaluation mode", func(c *Config) { c.Evaluation.Mode = "vibes" }},
		{"population too small", func(c *Config) { c.Engine.PopulationSize = 1 }},
		{"zero parallelism", func(c *Config) { c.Evaluation.Parallelism = 0 }},
		{"elitism above one", func(c *Config) { c.Engine.ElitismProportion = 1.5 }},
		{"decrease factor at one", func(c *Config) { c.Archive.ThresholdDecreaseFactor = 1.0 }},
		{"empty run name", func(c *Config) { c.Run.Name = "" }},
		{"bad log level", func(c *Config) { c.Run.LogLevel = "LOUD" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ConfigurationInvalid))
		})
	}
}

func TestValidateCrossFieldRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{
			"batch larger than population",
			func(c *Config) { c.Engine.BatchSize = c.Engine.PopulationSize + 1 },
			"batch_size",
		},
		{
			"species count above population",
			func(c *Config) { c.Engine.SpeciesCount = c.Engine.PopulationSize + 1 },
			"species_count",
		},
		{
			"min species above species count",
			func(c *Config) { c.Speciation.MinSpecies = c.Engine.SpeciesCount + 1 },
			"min_species",
		},
		{
			"bootstrap viable count above its population",
			func(c *Config) { c.MCC.Bootstrap.ViableCount = c.MCC.Bootstrap.PopulationSize + 1 },
			"viable_count",
		},
		{
			"archive floor above initial threshold",
			func(c *Config) { c.Archive.MinThreshold = c.Archive.InitialThreshold + 1 },
			"min_threshold",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("round trip through a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "experiment.yaml")
		content := []byte("run:\n  name: from-disk\n")
		require.NoError(t, os.WriteFile(path, content, 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-disk", cfg.Run.Name)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ConfigurationInvalid))
	})
}

func TestValidationErrorMessages(t *testing.T) {
	errs := ValidationErrors{
		{Field: "Engine.PopulationSize", Tag: "min"},
		{Message: "custom message"},
	}
	msg := errs.Error()
	assert.Contains(t, msg, "Engine.PopulationSize is below its minimum")
	assert.Contains(t, msg, "custom message")

	assert.Empty(t, ValidationErrors{}.Error())
}
