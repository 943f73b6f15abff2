// Package config loads and validates experiment configuration from YAML
// files. Defaults are merged in code before validation so a minimal file
// stays minimal.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jbrant/mcc-go/pkg/errors"
)

// Config is the root experiment configuration.
type Config struct {
	Run        RunConfig        `yaml:"run"`
	Engine     EngineConfig     `yaml:"engine"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Speciation SpeciationConfig `yaml:"speciation"`
	Archive    ArchiveConfig    `yaml:"novelty_archive"`
	MCC        MCCConfig        `yaml:"mcc"`
	Store      StoreConfig      `yaml:"store"`
}

// RunConfig names and seeds the experiment.
type RunConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Seed     int64  `yaml:"seed"`
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR FATAL"`
	LogFile  string `yaml:"log_file"`
}

// EngineConfig selects the cycle cadence and its budgets.
type EngineConfig struct {
	Variant                string  `yaml:"variant" validate:"oneof=generational steady_state"`
	PopulationSize         int     `yaml:"population_size" validate:"min=2"`
	MaxGenerations         int     `yaml:"max_generations" validate:"min=0"`
	MaxEvaluations         uint64  `yaml:"max_evaluations"`
	UpdateEveryGenerations int     `yaml:"update_every_generations" validate:"min=0"`
	BatchSize              int     `yaml:"batch_size" validate:"min=1"`
	PopulationEvalFreq     int     `yaml:"population_evaluation_frequency" validate:"min=1"`
	SpeciesCount           int     `yaml:"species_count" validate:"min=1"`
	ElitismProportion      float64 `yaml:"elitism_proportion" validate:"gte=0,lte=1"`
	SelectionProportion    float64 `yaml:"selection_proportion" validate:"gte=0,lte=1"`
	AsexualProportion      float64 `yaml:"asexual_proportion" validate:"gte=0,lte=1"`
	TournamentSize         int     `yaml:"tournament_size" validate:"min=1"`
	ComplexityCeiling      float64 `yaml:"complexity_ceiling" validate:"gte=0"`
}

// EvaluationConfig selects the scoring policy.
type EvaluationConfig struct {
	Mode              string `yaml:"mode" validate:"oneof=fitness novelty minimal_criterion"`
	Parallelism       int    `yaml:"parallelism" validate:"min=1"`
	BehaviorLength    int    `yaml:"behavior_length" validate:"min=0"`
	KNearest          int    `yaml:"k_nearest" validate:"min=1"`
	RequiredSuccesses int    `yaml:"required_successes" validate:"min=1"`
}

// SpeciationConfig tunes the distance metric and clustering.
type SpeciationConfig struct {
	MaxIterations    int     `yaml:"max_iterations" validate:"min=1"`
	MinSpecies       int     `yaml:"min_species" validate:"min=1"`
	MismatchPenalty  float64 `yaml:"mismatch_penalty" validate:"gt=0"`
	ValueCoefficient float64 `yaml:"value_coefficient" validate:"gt=0"`
	Parallelism      int     `yaml:"parallelism" validate:"min=1"`
}

// ArchiveConfig tunes novelty admission.
type ArchiveConfig struct {
	InitialThreshold         float64 `yaml:"initial_threshold" validate:"gt=0"`
	MaxAdditionsPerCycle     int     `yaml:"max_additions_per_cycle" validate:"min=1"`
	MaxCyclesWithoutAddition int     `yaml:"max_cycles_without_addition" validate:"min=1"`
	ThresholdIncreaseFactor  float64 `yaml:"threshold_increase_factor" validate:"gt=1"`
	ThresholdDecreaseFactor  float64 `yaml:"threshold_decrease_factor" validate:"gt=0,lt=1"`
	MinThreshold             float64 `yaml:"min_threshold" validate:"gt=0"`
}

// MCCConfig tunes cross-population exchange and bootstrapping.
type MCCConfig struct {
	QueueCapacity        int             `yaml:"queue_capacity" validate:"min=1"`
	ViabilityRetryBudget int             `yaml:"viability_retry_budget" validate:"min=1"`
	Bootstrap            BootstrapConfig `yaml:"bootstrap"`
}

// BootstrapConfig budgets seed-population evolution.
type BootstrapConfig struct {
	PopulationSize int    `yaml:"population_size" validate:"min=2"`
	ViableCount    int    `yaml:"viable_count" validate:"min=1"`
	MaxEvaluations uint64 `yaml:"max_evaluations"`
	MaxRestarts    int    `yaml:"max_restarts" validate:"min=0"`
}

// StoreConfig enables the SQLite run recorder.
type StoreConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Load reads, defaults and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationInvalid, "reading config file")
	}
	return Parse(data)
}

// Parse defaults and validates raw YAML.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationInvalid, "parsing config yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
