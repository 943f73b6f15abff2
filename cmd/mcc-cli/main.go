// Command mcc-cli runs the built-in 2D point domain through the evolution
// runtime: either a single-population novelty search or a full
// bootstrap-then-coevolve MCC experiment, driven by a YAML config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jbrant/mcc-go/pkg/config"
	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/domains/point"
	"github.com/jbrant/mcc-go/pkg/engine"
	"github.com/jbrant/mcc-go/pkg/eval"
	"github.com/jbrant/mcc-go/pkg/logging"
	"github.com/jbrant/mcc-go/pkg/mcc"
	"github.com/jbrant/mcc-go/pkg/novelty"
	"github.com/jbrant/mcc-go/pkg/speciation"
	"github.com/jbrant/mcc-go/pkg/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to experiment YAML (defaults apply when empty)")
		mode       = flag.String("mode", "novelty", "experiment mode: novelty | mcc")
		cycles     = flag.Int("cycles", 50, "cycles to run before pausing")
	)
	flag.Parse()

	if err := run(*configPath, *mode, *cycles); err != nil {
		fmt.Fprintf(os.Stderr, "mcc-cli: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, mode string, cycles int) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	outputs := []logging.Output{logging.NewConsoleOutput(false)}
	if cfg.Run.LogFile != "" {
		fileOut, err := logging.NewFileOutput(cfg.Run.LogFile)
		if err != nil {
			return err
		}
		outputs = append(outputs, fileOut)
	}
	logger := logging.NewLogger(logging.Config{
		Severity: logging.ParseSeverity(cfg.Run.LogLevel),
		Outputs:  outputs,
	})
	logging.SetLogger(logger)
	defer logger.Close()

	ctx := context.Background()

	var recorder *store.Recorder
	if cfg.Store.SQLitePath != "" {
		var err error
		recorder, err = store.NewRecorder(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
	}

	switch mode {
	case "novelty":
		return runNovelty(ctx, cfg, cycles, recorder)
	case "mcc":
		return runMCC(ctx, cfg, cycles, recorder)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// runNovelty drives a single population of points through novelty search.
func runNovelty(ctx context.Context, cfg *config.Config, cycles int, recorder *store.Recorder) error {
	factory := core.NewFactory(core.DefaultFactoryConfig(), cfg.Run.Seed)
	archive := novelty.NewArchive(novelty.ArchiveConfig{
		InitialThreshold:         cfg.Archive.InitialThreshold,
		MaxAdditionsPerCycle:     cfg.Archive.MaxAdditionsPerCycle,
		MaxCyclesWithoutAddition: cfg.Archive.MaxCyclesWithoutAddition,
		ThresholdIncreaseFactor:  cfg.Archive.ThresholdIncreaseFactor,
		ThresholdDecreaseFactor:  cfg.Archive.ThresholdDecreaseFactor,
		MinThreshold:             cfg.Archive.MinThreshold,
	})

	evaluator, err := eval.New(eval.Config{
		Mode:                   eval.ModeNovelty,
		Parallelism:            cfg.Evaluation.Parallelism,
		ExpectedBehaviorLength: 2,
		KNearest:               cfg.Evaluation.KNearest,
	}, point.Decoder{}, point.IdentityScorer{}, eval.NewCounter(), archive)
	if err != nil {
		return err
	}

	metric := &speciation.WeightedEditDistance{
		MismatchPenalty:  cfg.Speciation.MismatchPenalty,
		ValueCoefficient: cfg.Speciation.ValueCoefficient,
	}
	speciator := speciation.NewKMeansStrategy(metric, speciation.KMeansConfig{
		MaxIterations: cfg.Speciation.MaxIterations,
		MinSpecies:    cfg.Speciation.MinSpecies,
		Parallelism:   cfg.Speciation.Parallelism,
	}, cfg.Run.Seed)

	pop := core.NewPopulation(cfg.Engine.PopulationSize)
	pop.AddAll(factory.CreateRandom(cfg.Engine.PopulationSize, 0))

	strategy, err := engine.NewGenerationalStrategy(engine.GenerationalConfig{
		SpeciesCount:        cfg.Engine.SpeciesCount,
		ElitismProportion:   cfg.Engine.ElitismProportion,
		SelectionProportion: cfg.Engine.SelectionProportion,
		AsexualProportion:   cfg.Engine.AsexualProportion,
		TournamentSize:      cfg.Engine.TournamentSize,
	}, evaluator, speciator, factory, engine.NewComplexityRegulator(cfg.Engine.ComplexityCeiling), cfg.Run.Seed)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Config{
		Name:           cfg.Run.Name,
		MaxGenerations: cycles,
	}, pop, strategy, evaluator.Counter())
	if err != nil {
		return err
	}
	if recorder != nil {
		if err := recorder.Attach(ctx, eng); err != nil {
			return err
		}
	}
	eng.OnUpdate(func(snap engine.Snapshot) {
		logging.GetLogger().Info(ctx, "gen=%d evals=%d archive=%d champion=%.4f",
			snap.Generation, snap.Evaluations, snap.ArchiveSize, snap.ChampionFitness)
	})

	if err := eng.Start(ctx); err != nil {
		return err
	}
	waitForPause(eng)

	fmt.Printf("novelty run complete: archive=%d, threshold=%.4f, evaluations=%d\n",
		archive.Size(), archive.Threshold(), evaluator.Counter().Value())

	resetCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := eng.Reset(resetCtx); err != nil {
		return err
	}
	if recorder != nil {
		return recorder.Close()
	}
	return nil
}

// runMCC bootstraps two viable point populations and coevolves them:
// "seekers" must land near a queued target point, "targets" must stay
// reachable by at least one seeker.
func runMCC(ctx context.Context, cfg *config.Config, cycles int, recorder *store.Recorder) error {
	seekers, err := buildSide(ctx, cfg, "seekers", cycles)
	if err != nil {
		return err
	}
	targets, err := buildSide(ctx, cfg, "targets", cycles)
	if err != nil {
		return err
	}

	container, err := mcc.NewContainer(mcc.Config{
		QueueCapacity:        cfg.MCC.QueueCapacity,
		ViabilityRetryBudget: cfg.MCC.ViabilityRetryBudget,
	}, seekers, targets)
	if err != nil {
		return err
	}
	if err := container.PrimeTargets(ctx); err != nil {
		return err
	}

	if recorder != nil {
		a, b := container.Sides()
		if err := recorder.Attach(ctx, a); err != nil {
			return err
		}
		if err := recorder.Attach(ctx, b); err != nil {
			return err
		}
	}

	if err := container.Start(ctx); err != nil {
		return err
	}
	a, b := container.Sides()
	waitForPause(a)
	waitForPause(b)

	fmt.Printf("mcc run complete: %s gen=%d evals=%d | %s gen=%d evals=%d\n",
		a.Name(), a.Generation(), a.Evaluations(),
		b.Name(), b.Generation(), b.Evaluations())

	resetCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := container.Reset(resetCtx); err != nil {
		return err
	}
	if recorder != nil {
		return recorder.Close()
	}
	return nil
}

// buildSide bootstraps one MCC side to viability and wraps it in an engine.
func buildSide(ctx context.Context, cfg *config.Config, name string, cycles int) (mcc.SideConfig, error) {
	factory := core.NewFactory(core.DefaultFactoryConfig(), cfg.Run.Seed+int64(len(name)))
	scorer := point.ProximityScorer{
		Goal:   point.Point{X: 0, Y: 0},
		Radius: 2.0,
	}
	counter := eval.NewCounter()

	evaluator, err := eval.New(eval.Config{
		Mode:                   eval.ModeMinimalCriterion,
		Parallelism:            cfg.Evaluation.Parallelism,
		ExpectedBehaviorLength: 2,
		RequiredSuccesses:      cfg.Evaluation.RequiredSuccesses,
	}, point.Decoder{}, scorer, counter, nil)
	if err != nil {
		return mcc.SideConfig{}, err
	}

	bootstrapper, err := mcc.NewBootstrapper(mcc.BootstrapConfig{
		PopulationSize: cfg.MCC.Bootstrap.PopulationSize,
		ViableCount:    cfg.MCC.Bootstrap.ViableCount,
		MaxEvaluations: cfg.MCC.Bootstrap.MaxEvaluations,
		MaxRestarts:    cfg.MCC.Bootstrap.MaxRestarts,
	}, factory, evaluator, cfg.Run.Seed)
	if err != nil {
		return mcc.SideConfig{}, err
	}
	viable, err := bootstrapper.Run(ctx)
	if err != nil {
		return mcc.SideConfig{}, err
	}

	pop := core.NewPopulation(cfg.Engine.PopulationSize)
	pop.AddAll(viable)
	for pop.Len() < pop.TargetSize() {
		pop.AddAll(factory.CreateRandom(1, 0))
	}

	metric := &speciation.WeightedEditDistance{
		MismatchPenalty:  cfg.Speciation.MismatchPenalty,
		ValueCoefficient: cfg.Speciation.ValueCoefficient,
	}
	speciator := speciation.NewKMeansStrategy(metric, speciation.KMeansConfig{
		MaxIterations: cfg.Speciation.MaxIterations,
		MinSpecies:    cfg.Speciation.MinSpecies,
		Parallelism:   cfg.Speciation.Parallelism,
	}, cfg.Run.Seed)

	strategy, err := engine.NewSteadyStateStrategy(engine.SteadyStateConfig{
		BatchSize:                     cfg.Engine.BatchSize,
		PopulationEvaluationFrequency: cfg.Engine.PopulationEvalFreq,
		SpeciesCount:                  cfg.Engine.SpeciesCount,
		AsexualProportion:             cfg.Engine.AsexualProportion,
		TournamentSize:                cfg.Engine.TournamentSize,
	}, evaluator, speciator, factory, engine.NewComplexityRegulator(cfg.Engine.ComplexityCeiling), cfg.Run.Seed)
	if err != nil {
		return mcc.SideConfig{}, err
	}

	eng, err := engine.New(engine.Config{
		Name:           name,
		MaxGenerations: cycles,
	}, pop, strategy, counter)
	if err != nil {
		return mcc.SideConfig{}, err
	}

	return mcc.SideConfig{
		Name:      name,
		Engine:    eng,
		Evaluator: evaluator,
		Decoder:   point.Decoder{},
		Factory:   factory,
	}, nil
}

// waitForPause polls until the engine reaches its generation budget (or the
// worker dies, which Health surfaces).
func waitForPause(e *engine.Engine) {
	for {
		if e.State() == core.RunStatePaused {
			return
		}
		if h := e.Health(); h.FatalErr != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
