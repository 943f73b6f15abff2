package mcc

import (
	"context"
	"math/rand"
	"sort"

	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/errors"
	"github.com/jbrant/mcc-go/pkg/eval"
	"github.com/jbrant/mcc-go/pkg/logging"
)

// BootstrapConfig controls seed-population evolution before the main MCC
// run.
type BootstrapConfig struct {
	// PopulationSize of each bootstrap attempt.
	PopulationSize int
	// ViableCount is how many minimal-criterion-satisfying genomes must be
	// produced.
	ViableCount int
	// MaxEvaluations budgets a single attempt; exceeding it discards the
	// attempt and reinitializes from a fresh random population.
	MaxEvaluations uint64
	// MaxRestarts bounds discarded attempts before the initializer gives
	// up with a hard failure.
	MaxRestarts int
	// TournamentSize for parent selection inside an attempt.
	TournamentSize int
	// AsexualProportion of offspring per attempt generation.
	AsexualProportion float64
}

// DefaultBootstrapConfig returns conventional seeding parameters.
func DefaultBootstrapConfig() BootstrapConfig {
	return BootstrapConfig{
		PopulationSize:    50,
		ViableCount:       10,
		MaxEvaluations:    20000,
		MaxRestarts:       5,
		TournamentSize:    3,
		AsexualProportion: 0.5,
	}
}

// Bootstrapper evolves a seed population that meets the minimal criterion,
// using fitness- or novelty-guided search depending on the evaluator's
// mode. Each discarded attempt resets the factory's id sequences and the
// evaluation counter, so no state leaks between attempts.
type Bootstrapper struct {
	config    BootstrapConfig
	factory   core.GenomeFactory
	evaluator *eval.Evaluator
	rng       *rand.Rand
}

// NewBootstrapper wires an initializer.
func NewBootstrapper(config BootstrapConfig, factory core.GenomeFactory, evaluator *eval.Evaluator, seed int64) (*Bootstrapper, error) {
	if factory == nil || evaluator == nil {
		return nil, errors.New(errors.ConfigurationInvalid, "bootstrapper requires factory and evaluator")
	}
	if config.PopulationSize <= 0 {
		config.PopulationSize = DefaultBootstrapConfig().PopulationSize
	}
	if config.ViableCount <= 0 {
		config.ViableCount = DefaultBootstrapConfig().ViableCount
	}
	if config.ViableCount > config.PopulationSize {
		return nil, errors.New(errors.ConfigurationInvalid, "viable count cannot exceed population size")
	}
	if config.MaxEvaluations == 0 {
		config.MaxEvaluations = DefaultBootstrapConfig().MaxEvaluations
	}
	if config.TournamentSize <= 0 {
		config.TournamentSize = DefaultBootstrapConfig().TournamentSize
	}
	return &Bootstrapper{
		config:    config,
		factory:   factory,
		evaluator: evaluator,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

// Run evolves until ViableCount genomes satisfy the minimal criterion,
// restarting from scratch whenever an attempt exhausts its evaluation
// budget. It never returns fewer viable genomes than requested: once
// MaxRestarts attempts are spent it fails with InsufficientViableGenomes.
func (b *Bootstrapper) Run(ctx context.Context) ([]*core.Genome, error) {
	logger := logging.GetLogger()

	for attempt := 0; attempt <= b.config.MaxRestarts; attempt++ {
		if err := errors.CheckContext(ctx, "bootstrap"); err != nil {
			return nil, err
		}

		// Idempotence across restarts: discard id sequences and the
		// evaluation counter from the previous attempt.
		b.factory.Reset()
		b.evaluator.Counter().Reset()

		viable, err := b.attempt(ctx)
		if err != nil {
			return nil, err
		}
		if viable != nil {
			logger.Info(ctx, "bootstrap succeeded on attempt %d: viable=%d, evaluations=%d",
				attempt+1, len(viable), b.evaluator.Counter().Value())
			return viable, nil
		}

		logger.Warn(ctx, "bootstrap attempt %d exhausted %d evaluations, restarting",
			attempt+1, b.config.MaxEvaluations)
	}

	return nil, errors.WithFields(
		errors.New(errors.InsufficientViableGenomes, "bootstrap failed to seed a viable population"),
		errors.Fields{
			"requested": b.config.ViableCount,
			"restarts":  b.config.MaxRestarts,
		})
}

// attempt runs one evolve-until-budget loop. Returns the viable genomes on
// success or nil when the budget ran out.
func (b *Bootstrapper) attempt(ctx context.Context) ([]*core.Genome, error) {
	pop := core.NewPopulation(b.config.PopulationSize)
	pop.AddAll(b.factory.CreateRandom(b.config.PopulationSize, 0))

	for generation := 0; ; generation++ {
		if err := errors.CheckContext(ctx, "bootstrap attempt"); err != nil {
			return nil, err
		}

		if _, err := b.evaluator.EvaluateAll(ctx, pop.Members()); err != nil {
			return nil, err
		}
		if archive := b.evaluator.Archive(); archive != nil {
			archive.EndCycle()
		}

		if viable := b.collectViable(pop); len(viable) >= b.config.ViableCount {
			return viable[:b.config.ViableCount], nil
		}
		if b.evaluator.Counter().Value() >= b.config.MaxEvaluations {
			return nil, nil // budget exhausted, caller restarts
		}

		if err := b.nextGeneration(pop, generation+1); err != nil {
			return nil, err
		}
	}
}

// collectViable returns detached copies of the genomes satisfying the
// minimal criterion, fittest first.
func (b *Bootstrapper) collectViable(pop *core.Population) []*core.Genome {
	viable := make([]*core.Genome, 0, pop.Len())
	for _, g := range pop.Members() {
		if g.Eval.SatisfiesMinimalCriterion {
			viable = append(viable, g.Clone())
		}
	}
	sort.SliceStable(viable, func(i, j int) bool {
		return viable[i].Eval.Fitness > viable[j].Eval.Fitness
	})
	return viable
}

// nextGeneration replaces the population with offspring of
// tournament-selected parents, keeping viable genomes as elites.
func (b *Bootstrapper) nextGeneration(pop *core.Population, generation int) error {
	members := pop.Members()

	next := make([]*core.Genome, 0, pop.TargetSize())
	for _, g := range members {
		if g.Eval.SatisfiesMinimalCriterion {
			next = append(next, g)
		}
	}

	for len(next) < pop.TargetSize() {
		opts := core.OffspringOptions{AllowStructuralGrowth: true}
		first := b.tournament(members)
		parents := []*core.Genome{first}
		if b.rng.Float64() >= b.config.AsexualProportion {
			parents = append(parents, b.tournament(members))
		} else {
			opts.Asexual = true
		}
		child, err := b.factory.CreateOffspring(parents, generation, opts)
		if err != nil {
			return err
		}
		next = append(next, child)
	}

	pop.ReplaceAll(next)
	return nil
}

func (b *Bootstrapper) tournament(candidates []*core.Genome) *core.Genome {
	best := candidates[b.rng.Intn(len(candidates))]
	for i := 1; i < b.config.TournamentSize; i++ {
		c := candidates[b.rng.Intn(len(candidates))]
		if c.Eval.Fitness > best.Eval.Fitness {
			best = c
		}
	}
	return best
}
