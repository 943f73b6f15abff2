// Package mcc orchestrates minimal-criteria coevolution: two populations
// evolve side by side, each serving as the evaluation environment for the
// other, with survival gated on a viability predicate instead of a
// competitive fitness score.
package mcc

import (
	"context"

	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/engine"
	"github.com/jbrant/mcc-go/pkg/errors"
	"github.com/jbrant/mcc-go/pkg/eval"
	"github.com/jbrant/mcc-go/pkg/logging"
)

// Config controls cross-population exchange.
type Config struct {
	// QueueCapacity bounds each side's evaluation-target queue.
	QueueCapacity int
	// ViabilityRetryBudget is how many evaluations a genome may fail the
	// minimal criterion before it is evicted.
	ViabilityRetryBudget int
}

// DefaultConfig returns conventional exchange parameters.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:        20,
		ViabilityRetryBudget: 10,
	}
}

// SideConfig wires one half of the coevolutionary pairing.
type SideConfig struct {
	Name      string
	Engine    *engine.Engine
	Evaluator *eval.Evaluator
	Decoder   core.Decoder
	Factory   core.GenomeFactory
}

// side is the runtime state for one population.
type side struct {
	SideConfig
	// incoming holds the partner-produced targets this side is evaluated
	// against.
	incoming *TargetQueue
	// promoted remembers genomes already pushed to the partner so a genome
	// is promoted at most once.
	promoted map[core.GenomeID]struct{}
	partner  *side
}

// Container owns two engines and mediates their interdependence. Each
// engine's evaluator scores genomes against the partner population's
// current target set; the set is swapped atomically between cycles, so a
// cycle always sees one consistent snapshot.
type Container struct {
	config Config
	a, b   *side
	logger *logging.Logger
}

// NewContainer pairs two sides. Both engines must still be in the Ready
// state; the container registers the cycle hooks that drive the exchange.
func NewContainer(config Config, sideA, sideB SideConfig) (*Container, error) {
	for _, sc := range []SideConfig{sideA, sideB} {
		if sc.Engine == nil || sc.Evaluator == nil || sc.Decoder == nil || sc.Factory == nil {
			return nil, errors.New(errors.ConfigurationInvalid, "both sides need engine, evaluator, decoder and factory")
		}
	}
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = DefaultConfig().QueueCapacity
	}
	if config.ViabilityRetryBudget <= 0 {
		config.ViabilityRetryBudget = DefaultConfig().ViabilityRetryBudget
	}

	c := &Container{
		config: config,
		a:      newSide(sideA, config.QueueCapacity),
		b:      newSide(sideB, config.QueueCapacity),
		logger: logging.GetLogger(),
	}
	c.a.partner = c.b
	c.b.partner = c.a

	c.a.Engine.AddCycleHook(c.hookFor(c.a))
	c.b.Engine.AddCycleHook(c.hookFor(c.b))
	return c, nil
}

func newSide(sc SideConfig, queueCapacity int) *side {
	return &side{
		SideConfig: sc,
		incoming:   NewTargetQueue(queueCapacity),
		promoted:   make(map[core.GenomeID]struct{}),
	}
}

// PrimeTargets seeds both exchange queues from the genomes that already
// satisfy the minimal criterion (the bootstrapped seed populations) and
// installs the initial evaluator snapshots. Must be called before Start.
func (c *Container) PrimeTargets(ctx context.Context) error {
	for _, s := range []*side{c.a, c.b} {
		pushed := 0
		for _, g := range s.Engine.Population().Members() {
			if !g.Eval.SatisfiesMinimalCriterion {
				continue
			}
			if err := c.promote(s, g); err != nil {
				return err
			}
			pushed++
		}
		if pushed == 0 {
			return errors.WithFields(
				errors.New(errors.InsufficientViableGenomes, "no viable genomes to prime partner targets"),
				errors.Fields{"side": s.Name})
		}
	}
	c.swapTargets(c.a)
	c.swapTargets(c.b)
	c.logger.Info(ctx, "primed exchange queues: %s=%d targets, %s=%d targets",
		c.a.Name, c.a.incoming.Len(), c.b.Name, c.b.incoming.Len())
	return nil
}

// Start launches both engines.
func (c *Container) Start(ctx context.Context) error {
	if err := c.a.Engine.Start(ctx); err != nil {
		return err
	}
	return c.b.Engine.Start(ctx)
}

// PauseAndWait pauses both engines at their next cycle boundaries.
func (c *Container) PauseAndWait(ctx context.Context) error {
	if err := c.a.Engine.RequestPauseAndWait(ctx); err != nil {
		return err
	}
	return c.b.Engine.RequestPauseAndWait(ctx)
}

// Reset terminates both engines.
func (c *Container) Reset(ctx context.Context) error {
	if err := c.a.Engine.Reset(ctx); err != nil {
		return err
	}
	return c.b.Engine.Reset(ctx)
}

// Sides exposes the paired engines, agents-side first.
func (c *Container) Sides() (*engine.Engine, *engine.Engine) {
	return c.a.Engine, c.b.Engine
}

// hookFor builds the cycle hook for one side. It runs on that side's worker
// goroutine between cycles, which is the only window in which the side's
// population may be mutated.
func (c *Container) hookFor(s *side) engine.CycleHook {
	return func(ctx context.Context, pop *core.Population, outcome engine.CycleOutcome) {
		c.reconcile(ctx, s, pop)
	}
}

// reconcile applies the three exchange duties at a cycle boundary:
// promote newly viable genomes into the partner's queue, refresh the
// partner's target snapshot, and evict genomes that exhausted the viability
// retry budget.
func (c *Container) reconcile(ctx context.Context, s *side, pop *core.Population) {
	promotedNow := 0
	for _, g := range pop.Members() {
		if !g.Eval.SatisfiesMinimalCriterion {
			continue
		}
		if _, seen := s.promoted[g.ID]; seen {
			continue
		}
		if err := c.promote(s, g); err != nil {
			c.logger.Warn(ctx, "promotion of genome %d failed: %v", g.ID, err)
			continue
		}
		promotedNow++
	}
	if promotedNow > 0 {
		// The partner picks up the new snapshot at its next cycle start;
		// its in-flight cycle keeps the snapshot it began with.
		c.swapTargets(s.partner)
	}

	evicted := c.evictExhausted(s, pop)

	if promotedNow > 0 || evicted > 0 {
		c.logger.Debug(ctx, "%s reconciled: promoted=%d, evicted=%d, partner_targets=%d",
			s.Name, promotedNow, evicted, s.partner.incoming.Len())
	}
}

// promote decodes the genome and queues its phenome for the partner.
func (c *Container) promote(s *side, g *core.Genome) error {
	phenome, err := s.Decoder.Decode(g)
	if err != nil {
		return errors.Wrap(err, errors.InvalidInput, "decode for promotion")
	}
	s.partner.incoming.Push(g.ID, phenome)
	s.promoted[g.ID] = struct{}{}
	return nil
}

func (c *Container) swapTargets(s *side) {
	s.Evaluator.SetTargets(s.incoming.Snapshot())
}

// evictExhausted removes genomes that stayed non-viable past the retry
// budget and backfills with offspring of viable members so the population
// size invariant holds.
func (c *Container) evictExhausted(s *side, pop *core.Population) int {
	var evict []core.GenomeID
	for _, g := range pop.Members() {
		if g.Eval.SatisfiesMinimalCriterion {
			continue
		}
		if g.Eval.EvaluationCount >= c.config.ViabilityRetryBudget {
			evict = append(evict, g.ID)
		}
	}
	if len(evict) == 0 {
		return 0
	}

	for _, id := range evict {
		pop.Remove(id)
	}

	viable := make([]*core.Genome, 0, pop.Len())
	for _, g := range pop.Members() {
		if g.Eval.SatisfiesMinimalCriterion {
			viable = append(viable, g)
		}
	}
	parents := viable
	if len(parents) == 0 {
		parents = pop.Members()
	}

	generation := s.Engine.Generation()
	for pop.Len() < pop.TargetSize() && len(parents) > 0 {
		child, err := s.Factory.CreateOffspring([]*core.Genome{parents[pop.Len()%len(parents)]}, generation, core.OffspringOptions{
			AllowStructuralGrowth: true,
			Asexual:               true,
		})
		if err != nil {
			break
		}
		pop.Add(child)
	}
	return len(evict)
}
