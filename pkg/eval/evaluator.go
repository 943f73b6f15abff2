// Package eval maps genomes to phenotypes and scores them, in parallel,
// against zero or more evaluation targets.
package eval

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/errors"
	"github.com/jbrant/mcc-go/pkg/logging"
	"github.com/jbrant/mcc-go/pkg/novelty"
)

// Mode selects the scoring policy applied to evaluation results.
type Mode int

const (
	// ModeFitness treats the trial score as a scalar to maximize.
	ModeFitness Mode = iota
	// ModeNovelty replaces fitness with behavioral sparseness against the
	// population and archive, feeding candidates to the novelty archive.
	ModeNovelty
	// ModeMinimalCriterion gates viability on a predicate over paired
	// trials against the partner target set.
	ModeMinimalCriterion
)

func (m Mode) String() string {
	switch m {
	case ModeFitness:
		return "fitness"
	case ModeNovelty:
		return "novelty"
	case ModeMinimalCriterion:
		return "minimal_criterion"
	default:
		return "unknown"
	}
}

// Config controls evaluator behavior.
type Config struct {
	Mode Mode
	// Parallelism bounds concurrent genome evaluations.
	Parallelism int
	// ExpectedBehaviorLength, when positive, is enforced on every behavior
	// vector a scorer returns. A mismatch is a fatal domain wiring bug.
	ExpectedBehaviorLength int
	// KNearest is the neighborhood size for novelty sparseness.
	KNearest int
	// RequiredSuccesses is the minimal-criterion bar: a genome is viable
	// when at least this many paired trials succeed.
	RequiredSuccesses int
}

// TargetUpdater is an optional scorer capability: scorers that maintain
// internal state across partner-target swaps implement it; all others get a
// no-op. The evaluator never requires it.
type TargetUpdater interface {
	UpdateTargets(targets []core.Phenome)
}

// Result summarizes one EvaluateAll pass.
type Result struct {
	Evaluated              int
	StopConditionSatisfied bool
	ViableCount            int
}

// Evaluator decodes genomes to phenomes and scores them. Genome evaluations
// run independently on a bounded worker pool; no evaluation reads or writes
// another genome's state. The partner-target snapshot is swapped atomically
// between cycles and read exactly once per EvaluateAll pass, so a mid-cycle
// swap can never affect results already being computed.
type Evaluator struct {
	config  Config
	decoder core.Decoder
	scorer  core.Scorer
	counter *Counter
	archive *novelty.Archive // nil outside novelty mode

	targets atomic.Value // holds []core.Phenome
}

// New creates an evaluator. The archive may be nil unless Mode is
// ModeNovelty.
func New(config Config, decoder core.Decoder, scorer core.Scorer, counter *Counter, archive *novelty.Archive) (*Evaluator, error) {
	if decoder == nil || scorer == nil {
		return nil, errors.New(errors.ConfigurationInvalid, "evaluator requires a decoder and a scorer")
	}
	if counter == nil {
		return nil, errors.New(errors.ConfigurationInvalid, "evaluator requires an evaluation counter")
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}
	if config.Mode == ModeNovelty {
		if archive == nil {
			return nil, errors.New(errors.ConfigurationInvalid, "novelty mode requires an archive")
		}
		if config.KNearest <= 0 {
			config.KNearest = 15
		}
	}
	if config.Mode == ModeMinimalCriterion && config.RequiredSuccesses <= 0 {
		config.RequiredSuccesses = 1
	}
	e := &Evaluator{
		config:  config,
		decoder: decoder,
		scorer:  scorer,
		counter: counter,
		archive: archive,
	}
	e.targets.Store([]core.Phenome{})
	return e, nil
}

// Counter exposes the global evaluation counter.
func (e *Evaluator) Counter() *Counter { return e.counter }

// Archive exposes the novelty archive, or nil outside novelty mode.
func (e *Evaluator) Archive() *novelty.Archive { return e.archive }

// Mode reports the active scoring policy.
func (e *Evaluator) Mode() Mode { return e.config.Mode }

// SetTargets atomically replaces the partner phenome set used for paired
// trials. In-flight EvaluateAll passes keep the snapshot they started with.
func (e *Evaluator) SetTargets(targets []core.Phenome) {
	snapshot := make([]core.Phenome, len(targets))
	copy(snapshot, targets)
	e.targets.Store(snapshot)
	if updater, ok := e.scorer.(TargetUpdater); ok {
		updater.UpdateTargets(snapshot)
	}
}

// Targets returns the current partner snapshot.
func (e *Evaluator) Targets() []core.Phenome {
	return e.targets.Load().([]core.Phenome)
}

// EvaluateAll evaluates every genome in the slice, writing results into each
// genome's EvaluationInfo and incrementing the global counter once per
// genome.
func (e *Evaluator) EvaluateAll(ctx context.Context, genomes []*core.Genome) (Result, error) {
	logger := logging.GetLogger()
	targets := e.Targets() // one snapshot for the whole pass

	var (
		mu        sync.Mutex
		result    Result
		firstErr  error
		evaluated int
	)

	p := pool.New().WithMaxGoroutines(e.config.Parallelism)
	for _, g := range genomes {
		g := g
		p.Go(func() {
			stop, err := e.evaluateOne(ctx, g, targets)
			e.counter.Increment()

			mu.Lock()
			defer mu.Unlock()
			evaluated++
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if stop {
				result.StopConditionSatisfied = true
			}
			if g.Eval.SatisfiesMinimalCriterion {
				result.ViableCount++
			}
		})
	}
	p.Wait()

	result.Evaluated = evaluated
	if firstErr != nil {
		return result, firstErr
	}

	// Novelty admission runs after scoring so sparseness sees the whole
	// batch's behaviors.
	if e.config.Mode == ModeNovelty {
		if err := e.applyNovelty(ctx, genomes); err != nil {
			return result, err
		}
	}

	logger.Debug(ctx, "evaluated %d genomes: mode=%s, viable=%d, total_evaluations=%d",
		evaluated, e.config.Mode, result.ViableCount, e.counter.Value())
	return result, nil
}

// evaluateOne runs a single genome through decode and scoring. It touches
// only its own genome's state.
func (e *Evaluator) evaluateOne(ctx context.Context, g *core.Genome, targets []core.Phenome) (bool, error) {
	phenome, err := e.decoder.Decode(g)
	if err != nil {
		return false, errors.WithFields(
			errors.Wrap(err, errors.InvalidInput, "decode failed"),
			errors.Fields{"genome": g.ID})
	}

	trials := make([]core.TrialResult, 0, len(targets))
	if len(targets) == 0 {
		trial, err := e.scorer.Score(ctx, phenome, nil)
		if err != nil {
			return false, err
		}
		trials = append(trials, trial)
	} else {
		for _, target := range targets {
			trial, err := e.scorer.Score(ctx, phenome, target)
			if err != nil {
				return false, err
			}
			trials = append(trials, trial)
		}
	}

	return e.aggregate(g, trials)
}

// aggregate folds trial outcomes into the genome's EvaluationInfo under the
// active policy.
func (e *Evaluator) aggregate(g *core.Genome, trials []core.TrialResult) (bool, error) {
	var (
		fitnessSum float64
		successes  int
		best       core.TrialResult
		stop       bool
	)
	for i, t := range trials {
		if err := e.checkBehaviorLength(t.Behavior); err != nil {
			return false, errors.WithFields(err, errors.Fields{"genome": g.ID})
		}
		fitnessSum += t.Fitness
		if t.Success {
			successes++
		}
		if t.StopConditionSatisfied {
			stop = true
		}
		if i == 0 || t.Fitness > best.Fitness {
			best = t
		}
	}

	g.Eval.IsEvaluated = true
	g.Eval.EvaluationCount++
	g.Eval.Behavior = best.Behavior.Clone()

	switch e.config.Mode {
	case ModeMinimalCriterion:
		g.Eval.SatisfiesMinimalCriterion = successes >= e.config.RequiredSuccesses
		g.Eval.Fitness = float64(successes) / float64(len(trials))
	default:
		g.Eval.SatisfiesMinimalCriterion = successes > 0
		g.Eval.Fitness = fitnessSum / float64(len(trials))
	}
	return stop, nil
}

// applyNovelty rescores fitness as behavioral sparseness and offers every
// genome to the archive. Runs on the caller's goroutine after the parallel
// section; the archive tolerates concurrent insertion but batch admission
// order is kept deterministic here.
func (e *Evaluator) applyNovelty(ctx context.Context, genomes []*core.Genome) error {
	neighbors := e.archive.Behaviors()
	for _, g := range genomes {
		if g.Eval.Behavior != nil {
			neighbors = append(neighbors, g.Eval.Behavior)
		}
	}

	for _, g := range genomes {
		if g.Eval.Behavior == nil {
			continue
		}
		sparseness, err := novelty.Sparseness(g.Eval.Behavior, withoutSelf(neighbors, g.Eval.Behavior), e.config.KNearest)
		if err != nil {
			return err
		}
		g.Eval.Fitness = sparseness

		added, err := e.archive.TestAndAdd(g)
		if err != nil {
			return err
		}
		if added {
			logging.GetLogger().Debug(ctx, "archive admitted genome %d at threshold %.4f",
				g.ID, e.archive.Threshold())
		}
	}
	return nil
}

func (e *Evaluator) checkBehaviorLength(b core.BehaviorVector) error {
	if b == nil || e.config.ExpectedBehaviorLength <= 0 {
		return nil
	}
	if len(b) != e.config.ExpectedBehaviorLength {
		return errors.WithFields(
			errors.New(errors.DimensionMismatch, "behavior vector length mismatch"),
			errors.Fields{
				"expected": e.config.ExpectedBehaviorLength,
				"actual":   len(b),
			})
	}
	return nil
}

// withoutSelf filters one occurrence of the candidate's own behavior out of
// the neighbor set so a genome is never its own nearest neighbor.
func withoutSelf(neighbors []core.BehaviorVector, self core.BehaviorVector) []core.BehaviorVector {
	out := make([]core.BehaviorVector, 0, len(neighbors))
	skipped := false
	for _, n := range neighbors {
		if !skipped && sameSlice(n, self) {
			skipped = true
			continue
		}
		out = append(out, n)
	}
	return out
}

func sameSlice(a, b core.BehaviorVector) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
