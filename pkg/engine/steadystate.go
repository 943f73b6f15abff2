package engine

import (
	"context"
	"math/rand"

	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/errors"
	"github.com/jbrant/mcc-go/pkg/eval"
)

// SteadyStateConfig tunes continuous small-batch cycles.
type SteadyStateConfig struct {
	// BatchSize offspring are produced and evaluated per cycle.
	BatchSize int
	// PopulationEvaluationFrequency: every this many batches the whole
	// population is re-evaluated and re-speciated.
	PopulationEvaluationFrequency int
	SpeciesCount                  int
	AsexualProportion             float64
	TournamentSize                int
}

// DefaultSteadyStateConfig returns the conventional batch cadence.
func DefaultSteadyStateConfig() SteadyStateConfig {
	return SteadyStateConfig{
		BatchSize:                     10,
		PopulationEvaluationFrequency: 25,
		SpeciesCount:                  4,
		AsexualProportion:             0.5,
		TournamentSize:                3,
	}
}

// SteadyStateStrategy implements CycleStrategy as a steady-state batch:
// produce a small batch of offspring, evaluate it, and insert it over the
// least-fit (oldest among ties) members. Periodically the full population is
// re-evaluated and re-speciated so selection pressure stays honest as the
// partner target set drifts.
type SteadyStateStrategy struct {
	config    SteadyStateConfig
	evaluator *eval.Evaluator
	speciator core.SpeciationStrategy
	factory   core.GenomeFactory
	regulator *ComplexityRegulator
	rng       *rand.Rand

	batchesSinceFullEvaluation int
	lastSpeciesSizes           map[int]int
}

// NewSteadyStateStrategy wires a steady-state cycle.
func NewSteadyStateStrategy(config SteadyStateConfig, evaluator *eval.Evaluator, speciator core.SpeciationStrategy, factory core.GenomeFactory, regulator *ComplexityRegulator, seed int64) (*SteadyStateStrategy, error) {
	if evaluator == nil || factory == nil {
		return nil, errors.New(errors.ConfigurationInvalid, "steady-state strategy requires evaluator and factory")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSteadyStateConfig().BatchSize
	}
	if config.PopulationEvaluationFrequency <= 0 {
		config.PopulationEvaluationFrequency = DefaultSteadyStateConfig().PopulationEvaluationFrequency
	}
	if config.TournamentSize <= 0 {
		config.TournamentSize = DefaultSteadyStateConfig().TournamentSize
	}
	return &SteadyStateStrategy{
		config:    config,
		evaluator: evaluator,
		speciator: speciator,
		factory:   factory,
		regulator: regulator,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

// RunOneCycle implements CycleStrategy.
func (s *SteadyStateStrategy) RunOneCycle(ctx context.Context, pop *core.Population, generation int) (CycleOutcome, error) {
	if pop.Len() == 0 {
		return CycleOutcome{}, errors.New(errors.InvalidInput, "cannot run a batch over an empty population")
	}

	offspring := make([]*core.Genome, 0, s.config.BatchSize)
	for i := 0; i < s.config.BatchSize; i++ {
		child, err := s.produceOffspring(pop.Members(), generation+1)
		if err != nil {
			return CycleOutcome{}, err
		}
		offspring = append(offspring, child)
	}

	res, err := s.evaluator.EvaluateAll(ctx, offspring)
	if err != nil {
		return CycleOutcome{}, err
	}

	// Replacement: evict the least fit, oldest first among ties, then take
	// ownership of the batch. The population is transiently below target
	// size inside this window only.
	for _, id := range pop.WorstIDs(len(offspring)) {
		pop.Remove(id)
	}
	pop.AddAll(offspring)

	s.batchesSinceFullEvaluation++
	if s.batchesSinceFullEvaluation >= s.config.PopulationEvaluationFrequency {
		s.batchesSinceFullEvaluation = 0
		fullRes, err := s.evaluator.EvaluateAll(ctx, pop.Members())
		if err != nil {
			return CycleOutcome{}, err
		}
		res.Evaluated += fullRes.Evaluated
		res.ViableCount = fullRes.ViableCount
		res.StopConditionSatisfied = res.StopConditionSatisfied || fullRes.StopConditionSatisfied

		if s.speciator != nil {
			species, err := s.speciator.Speciate(ctx, pop, s.config.SpeciesCount)
			if err != nil {
				return CycleOutcome{}, err
			}
			s.lastSpeciesSizes = speciesSizes(species)
		}
	}

	if s.regulator != nil {
		s.regulator.Observe(pop.MeanComplexity())
	}
	if archive := s.evaluator.Archive(); archive != nil {
		archive.EndCycle()
	}

	outcome := CycleOutcome{
		Evaluated:              res.Evaluated,
		ViableCount:            res.ViableCount,
		StopConditionSatisfied: res.StopConditionSatisfied,
		SpeciesSizes:           s.lastSpeciesSizes,
	}
	if archive := s.evaluator.Archive(); archive != nil {
		outcome.ArchiveSize = archive.Size()
	}
	return outcome, nil
}

func (s *SteadyStateStrategy) produceOffspring(parents []*core.Genome, generation int) (*core.Genome, error) {
	opts := core.OffspringOptions{AllowStructuralGrowth: true}
	if s.regulator != nil && s.regulator.Pruning() {
		opts.AllowStructuralGrowth = false
		opts.PreferSimplification = true
	}

	first := tournamentSelect(s.rng, parents, s.config.TournamentSize)
	if first == nil {
		return nil, errors.New(errors.InvalidInput, "no parents available for reproduction")
	}
	if s.rng.Float64() < s.config.AsexualProportion {
		opts.Asexual = true
		return s.factory.CreateOffspring([]*core.Genome{first}, generation, opts)
	}
	second := tournamentSelect(s.rng, parents, s.config.TournamentSize)
	return s.factory.CreateOffspring([]*core.Genome{first, second}, generation, opts)
}
