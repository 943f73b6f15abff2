package config

// Default returns a configuration filled with conventional values. Loaded
// files override individual fields; anything untouched keeps its default.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Name:     "mcc-run",
			Seed:     1,
			LogLevel: "INFO",
		},
		Engine: EngineConfig{
			Variant:                "steady_state",
			PopulationSize:         100,
			MaxGenerations:         0,
			MaxEvaluations:         0,
			UpdateEveryGenerations: 1,
			BatchSize:              10,
			PopulationEvalFreq:     25,
			SpeciesCount:           4,
			ElitismProportion:      0.1,
			SelectionProportion:    0.4,
			AsexualProportion:      0.5,
			TournamentSize:         3,
			ComplexityCeiling:      0,
		},
		Evaluation: EvaluationConfig{
			Mode:              "minimal_criterion",
			Parallelism:       4,
			BehaviorLength:    0,
			KNearest:          15,
			RequiredSuccesses: 1,
		},
		Speciation: SpeciationConfig{
			MaxIterations:    10,
			MinSpecies:       1,
			MismatchPenalty:  1.0,
			ValueCoefficient: 0.4,
			Parallelism:      4,
		},
		Archive: ArchiveConfig{
			InitialThreshold:         1.0,
			MaxAdditionsPerCycle:     5,
			MaxCyclesWithoutAddition: 10,
			ThresholdIncreaseFactor:  1.2,
			ThresholdDecreaseFactor:  0.95,
			MinThreshold:             0.01,
		},
		MCC: MCCConfig{
			QueueCapacity:        20,
			ViabilityRetryBudget: 10,
			Bootstrap: BootstrapConfig{
				PopulationSize: 50,
				ViableCount:    10,
				MaxEvaluations: 20000,
				MaxRestarts:    5,
			},
		},
	}
}
