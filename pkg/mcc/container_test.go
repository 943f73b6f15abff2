package mcc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/domains/point"
	"github.com/jbrant/mcc-go/pkg/engine"
	"github.com/jbrant/mcc-go/pkg/errors"
	"github.com/jbrant/mcc-go/pkg/eval"
	"github.com/jbrant/mcc-go/pkg/speciation"
)

func stablePointFactory(seed int64) *core.Factory {
	cfg := core.DefaultFactoryConfig()
	cfg.AddGeneProb = 0
	cfg.RemoveGeneProb = 0
	return core.NewFactory(cfg, seed)
}

// buildTestSide assembles one MCC side over the point domain. The generous
// radius makes viability easy so the exchange plumbing, not the search, is
// under test.
func buildTestSide(t *testing.T, name string, seed int64, popSize int, maxGenerations int, radius float64) SideConfig {
	t.Helper()

	factory := stablePointFactory(seed)
	counter := eval.NewCounter()
	evaluator, err := eval.New(eval.Config{
		Mode:                   eval.ModeMinimalCriterion,
		Parallelism:            2,
		ExpectedBehaviorLength: 2,
	}, point.Decoder{}, point.ProximityScorer{Goal: point.Point{}, Radius: radius}, counter, nil)
	require.NoError(t, err)

	speciator := speciation.NewKMeansStrategy(
		speciation.NewWeightedEditDistance(), speciation.DefaultKMeansConfig(), seed)
	strategy, err := engine.NewSteadyStateStrategy(engine.SteadyStateConfig{
		BatchSize:                     4,
		PopulationEvaluationFrequency: 2,
		SpeciesCount:                  2,
		AsexualProportion:             0.5,
		TournamentSize:                3,
	}, evaluator, speciator, factory, nil, seed)
	require.NoError(t, err)

	pop := core.NewPopulation(popSize)
	pop.AddAll(factory.CreateRandom(popSize, 0))
	_, err = evaluator.EvaluateAll(context.Background(), pop.Members())
	require.NoError(t, err)

	eng, err := engine.New(engine.Config{Name: name, MaxGenerations: maxGenerations},
		pop, strategy, counter)
	require.NoError(t, err)

	return SideConfig{
		Name:      name,
		Engine:    eng,
		Evaluator: evaluator,
		Decoder:   point.Decoder{},
		Factory:   factory,
	}
}

func waitForEngineState(t *testing.T, e *engine.Engine, want core.RunState) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		if e.State() == want {
			return
		}
		if h := e.Health(); h.FatalErr != nil {
			t.Fatalf("engine %s worker died: %v", e.Name(), h.FatalErr)
		}
		select {
		case <-deadline:
			t.Fatalf("engine %s never reached %s (currently %s)", e.Name(), want, e.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewContainerValidation(t *testing.T) {
	full := buildTestSide(t, "full", 1, 10, 1, 100)

	tests := []struct {
		name string
		a, b SideConfig
	}{
		{"missing engine", SideConfig{Evaluator: full.Evaluator, Decoder: full.Decoder, Factory: full.Factory}, full},
		{"missing evaluator", SideConfig{Engine: full.Engine, Decoder: full.Decoder, Factory: full.Factory}, full},
		{"missing decoder", full, SideConfig{Engine: full.Engine, Evaluator: full.Evaluator, Factory: full.Factory}},
		{"missing factory", full, SideConfig{Engine: full.Engine, Evaluator: full.Evaluator, Decoder: full.Decoder}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewContainer(DefaultConfig(), tt.a, tt.b)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ConfigurationInvalid))
		})
	}
}

func TestPrimeTargetsRequiresViableGenomes(t *testing.T) {
	// A tiny radius leaves every random point non-viable.
	a := buildTestSide(t, "a", 2, 10, 1, 1e-9)
	b := buildTestSide(t, "b", 3, 10, 1, 100)

	c, err := NewContainer(DefaultConfig(), a, b)
	require.NoError(t, err)

	err = c.PrimeTargets(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.InsufficientViableGenomes))
}

func TestPrimeTargetsInstallsSnapshots(t *testing.T) {
	a := buildTestSide(t, "a", 4, 10, 1, 100)
	b := buildTestSide(t, "b", 5, 10, 1, 100)

	c, err := NewContainer(DefaultConfig(), a, b)
	require.NoError(t, err)
	require.NoError(t, c.PrimeTargets(context.Background()))

	// Everything was viable at the generous radius, so each side's evaluator
	// sees the partner's full population as targets (capped by the queue).
	assert.NotEmpty(t, a.Evaluator.Targets())
	assert.NotEmpty(t, b.Evaluator.Targets())
	assert.LessOrEqual(t, len(a.Evaluator.Targets()), DefaultConfig().QueueCapacity)
}

func TestPromoteIsIdempotentPerGenome(t *testing.T) {
	a := buildTestSide(t, "a", 6, 5, 1, 100)
	b := buildTestSide(t, "b", 7, 5, 1, 100)

	c, err := NewContainer(Config{QueueCapacity: 50, ViabilityRetryBudget: 10}, a, b)
	require.NoError(t, err)
	require.NoError(t, c.PrimeTargets(context.Background()))

	queued := c.b.incoming.Len()

	// Reconciling again without new viable genomes must not requeue anyone.
	c.reconcile(context.Background(), c.a, c.a.Engine.Population())
	assert.Equal(t, queued, c.b.incoming.Len())
}

func TestEvictExhaustedBackfillsPopulation(t *testing.T) {
	a := buildTestSide(t, "a", 8, 6, 1, 100)
	b := buildTestSide(t, "b", 9, 6, 1, 100)

	c, err := NewContainer(Config{QueueCapacity: 50, ViabilityRetryBudget: 3}, a, b)
	require.NoError(t, err)

	pop := c.a.Engine.Population()
	target := pop.TargetSize()

	// Force two members into the exhausted state: never viable and out of
	// retries.
	doomed := pop.Members()[:2]
	var doomedIDs []core.GenomeID
	for _, g := range doomed {
		g.Eval.SatisfiesMinimalCriterion = false
		g.Eval.EvaluationCount = 3
		doomedIDs = append(doomedIDs, g.ID)
	}

	evicted := c.evictExhausted(c.a, pop)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, target, pop.Len(), "eviction must backfill to target size")
	for _, id := range doomedIDs {
		assert.Nil(t, pop.Get(id), "exhausted genome %d still present", id)
	}
}

func TestContainerCoevolutionRun(t *testing.T) {
	a := buildTestSide(t, "seekers", 20, 12, 6, 100)
	b := buildTestSide(t, "targets", 21, 12, 6, 100)

	c, err := NewContainer(Config{QueueCapacity: 15, ViabilityRetryBudget: 10}, a, b)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.PrimeTargets(ctx))
	require.NoError(t, c.Start(ctx))

	engA, engB := c.Sides()
	waitForEngineState(t, engA, core.RunStatePaused)
	waitForEngineState(t, engB, core.RunStatePaused)

	assert.Equal(t, 6, engA.Generation())
	assert.Equal(t, 6, engB.Generation())

	// Both populations held their size invariant through promotion and
	// eviction traffic.
	assert.Equal(t, 12, engA.Population().Len())
	assert.Equal(t, 12, engB.Population().Len())

	// The exchange queues stayed within capacity.
	assert.LessOrEqual(t, c.a.incoming.Len(), 15)
	assert.LessOrEqual(t, c.b.incoming.Len(), 15)

	// Paired evaluation happened: targets were installed on both evaluators.
	assert.NotEmpty(t, a.Evaluator.Targets())
	assert.NotEmpty(t, b.Evaluator.Targets())

	require.NoError(t, c.Reset(ctx))
	assert.Equal(t, core.RunStateTerminated, engA.State())
	assert.Equal(t, core.RunStateTerminated, engB.State())
}

func TestContainerPauseAndWait(t *testing.T) {
	a := buildTestSide(t, "a", 30, 10, 0, 100) // unbounded generations
	b := buildTestSide(t, "b", 31, 10, 0, 100)

	c, err := NewContainer(DefaultConfig(), a, b)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.PrimeTargets(ctx))
	require.NoError(t, c.Start(ctx))

	pauseCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, c.PauseAndWait(pauseCtx))

	engA, engB := c.Sides()
	assert.Equal(t, core.RunStatePaused, engA.State())
	assert.Equal(t, core.RunStatePaused, engB.State())

	require.NoError(t, c.Reset(ctx))
}
