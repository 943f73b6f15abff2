package engine

import (
	"context"
	"math"
	"math/rand"

	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/errors"
	"github.com/jbrant/mcc-go/pkg/eval"
)

// GenerationalConfig tunes full-population replacement cycles.
type GenerationalConfig struct {
	SpeciesCount int
	// ElitismProportion of each species carries over unchanged.
	ElitismProportion float64
	// SelectionProportion of each species (fittest-first) is eligible as a
	// parent.
	SelectionProportion float64
	// AsexualProportion of offspring are produced from a single parent.
	AsexualProportion float64
	TournamentSize    int
}

// DefaultGenerationalConfig returns the conventional proportions.
func DefaultGenerationalConfig() GenerationalConfig {
	return GenerationalConfig{
		SpeciesCount:        4,
		ElitismProportion:   0.1,
		SelectionProportion: 0.4,
		AsexualProportion:   0.3,
		TournamentSize:      3,
	}
}

// GenerationalStrategy implements CycleStrategy as a full generational step:
// evaluate the entire population, speciate, then build a complete
// replacement generation from per-species elites and offspring.
type GenerationalStrategy struct {
	config    GenerationalConfig
	evaluator *eval.Evaluator
	speciator core.SpeciationStrategy
	factory   core.GenomeFactory
	regulator *ComplexityRegulator
	rng       *rand.Rand
}

// NewGenerationalStrategy wires a generational cycle.
func NewGenerationalStrategy(config GenerationalConfig, evaluator *eval.Evaluator, speciator core.SpeciationStrategy, factory core.GenomeFactory, regulator *ComplexityRegulator, seed int64) (*GenerationalStrategy, error) {
	if evaluator == nil || speciator == nil || factory == nil {
		return nil, errors.New(errors.ConfigurationInvalid, "generational strategy requires evaluator, speciator and factory")
	}
	if config.SpeciesCount <= 0 {
		config.SpeciesCount = DefaultGenerationalConfig().SpeciesCount
	}
	if config.TournamentSize <= 0 {
		config.TournamentSize = DefaultGenerationalConfig().TournamentSize
	}
	return &GenerationalStrategy{
		config:    config,
		evaluator: evaluator,
		speciator: speciator,
		factory:   factory,
		regulator: regulator,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

// RunOneCycle implements CycleStrategy.
func (s *GenerationalStrategy) RunOneCycle(ctx context.Context, pop *core.Population, generation int) (CycleOutcome, error) {
	res, err := s.evaluator.EvaluateAll(ctx, pop.Members())
	if err != nil {
		return CycleOutcome{}, err
	}

	species, err := s.speciator.Speciate(ctx, pop, s.config.SpeciesCount)
	if err != nil {
		return CycleOutcome{}, err
	}

	if s.regulator != nil {
		s.regulator.Observe(pop.MeanComplexity())
	}

	next := make([]*core.Genome, 0, pop.TargetSize())
	for _, sp := range species {
		members := sp.Members(pop)
		sortByFitnessDesc(members)

		quota := len(members)
		elites := int(math.Ceil(s.config.ElitismProportion * float64(quota)))
		if elites > quota {
			elites = quota
		}
		for _, g := range members[:elites] {
			next = append(next, g) // ownership carries into the next generation
		}

		parentCut := int(math.Ceil(s.config.SelectionProportion * float64(quota)))
		if parentCut < 1 {
			parentCut = 1
		}
		parents := members[:parentCut]

		for len(next) < pop.TargetSize() && quota > elites {
			child, err := s.produceOffspring(parents, generation+1)
			if err != nil {
				return CycleOutcome{}, err
			}
			next = append(next, child)
			quota--
		}
	}

	// Species quotas can undershoot the target after extinctions; top up
	// from the global parent pool.
	for len(next) < pop.TargetSize() {
		child, err := s.produceOffspring(pop.Members(), generation+1)
		if err != nil {
			return CycleOutcome{}, err
		}
		next = append(next, child)
	}

	pop.ReplaceAll(next[:pop.TargetSize()])

	if archive := s.evaluator.Archive(); archive != nil {
		archive.EndCycle()
	}

	outcome := CycleOutcome{
		Evaluated:              res.Evaluated,
		ViableCount:            res.ViableCount,
		StopConditionSatisfied: res.StopConditionSatisfied,
		SpeciesSizes:           speciesSizes(species),
	}
	if archive := s.evaluator.Archive(); archive != nil {
		outcome.ArchiveSize = archive.Size()
	}
	return outcome, nil
}

func (s *GenerationalStrategy) produceOffspring(parents []*core.Genome, generation int) (*core.Genome, error) {
	opts := core.OffspringOptions{AllowStructuralGrowth: true}
	if s.regulator != nil && s.regulator.Pruning() {
		opts.AllowStructuralGrowth = false
		opts.PreferSimplification = true
	}

	asexual := s.rng.Float64() < s.config.AsexualProportion
	first := tournamentSelect(s.rng, parents, s.config.TournamentSize)
	if first == nil {
		return nil, errors.New(errors.InvalidInput, "no parents available for reproduction")
	}
	if asexual {
		opts.Asexual = true
		return s.factory.CreateOffspring([]*core.Genome{first}, generation, opts)
	}
	second := tournamentSelect(s.rng, parents, s.config.TournamentSize)
	return s.factory.CreateOffspring([]*core.Genome{first, second}, generation, opts)
}

func speciesSizes(species []*core.Species) map[int]int {
	sizes := make(map[int]int, len(species))
	for _, sp := range species {
		sizes[sp.ID] = sp.Size()
	}
	return sizes
}
