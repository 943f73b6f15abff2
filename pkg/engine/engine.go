// Package engine drives an evolving population on a dedicated background
// worker through a Ready -> Running <-> Paused -> Terminated state machine.
// The cycle algorithm itself is a CycleStrategy; generational, steady-state
// and coevolutionary cadences are strategy implementations composed into the
// same engine rather than engine subtypes.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/errors"
	"github.com/jbrant/mcc-go/pkg/eval"
	"github.com/jbrant/mcc-go/pkg/logging"
)

// CycleStrategy performs one unit of evolution: a full generational step or
// a steady-state offspring batch. It runs on the engine's worker goroutine
// and owns the population for the duration of the call.
type CycleStrategy interface {
	RunOneCycle(ctx context.Context, pop *core.Population, generation int) (CycleOutcome, error)
}

// CycleHook runs on the worker goroutine after each completed cycle, before
// the next one starts. The MCC container uses it to reconcile populations at
// cycle boundaries.
type CycleHook func(ctx context.Context, pop *core.Population, outcome CycleOutcome)

// Config controls engine cadence and budgets.
type Config struct {
	Name string
	// MaxGenerations pauses the engine once reached. Zero means unbounded.
	MaxGenerations int
	// MaxEvaluations pauses the engine once the global evaluation counter
	// reaches it. Zero means unbounded.
	MaxEvaluations uint64
	// UpdateEveryGenerations is the snapshot cadence in cycles. Default 1.
	UpdateEveryGenerations int
	// UpdateEvery is an optional wall-clock snapshot cadence; when set it
	// takes precedence over the generation cadence.
	UpdateEvery time.Duration
	// SnapshotBuffer sizes subscriber channels. Slow subscribers drop
	// snapshots rather than stall the worker.
	SnapshotBuffer int
}

// Health is the explicit liveness surface for the engine worker. A cycle
// failure does not flip RunState (the state machine reports Running until
// paused or terminated); callers detect a dead worker by observing FatalErr
// or a stale LastHeartbeat.
type Health struct {
	Alive         bool
	LastHeartbeat time.Time
	FatalErr      error
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdPause
	cmdTerminate
)

type command struct {
	kind  commandKind
	reply chan error
}

// Engine owns one population and one RunState. All population mutation
// happens between cycles on the worker goroutine; callers interact through
// the lifecycle surface and read-only snapshot accessors.
type Engine struct {
	id       string
	config   Config
	pop      *core.Population
	strategy CycleStrategy
	counter  *eval.Counter
	logger   *logging.Logger

	commands   chan command
	workerOnce sync.Once
	workerDone chan struct{}

	mu          sync.Mutex
	state       core.RunState
	generation  int
	launched    bool
	champion    *core.Genome
	latest      Snapshot
	hooks       []CycleHook
	callbacks   []func(Snapshot)
	subscribers []chan Snapshot
	health      Health
	lastUpdate  time.Time
}

// New creates an engine in the Ready state. The population must already be
// seeded; an empty population is a configuration error caught before the
// worker ever starts.
func New(config Config, pop *core.Population, strategy CycleStrategy, counter *eval.Counter) (*Engine, error) {
	if pop == nil || pop.Len() == 0 {
		return nil, errors.New(errors.ConfigurationInvalid, "engine requires a seeded population")
	}
	if strategy == nil {
		return nil, errors.New(errors.ConfigurationInvalid, "engine requires a cycle strategy")
	}
	if counter == nil {
		return nil, errors.New(errors.ConfigurationInvalid, "engine requires an evaluation counter")
	}
	if config.UpdateEveryGenerations <= 0 {
		config.UpdateEveryGenerations = 1
	}
	if config.SnapshotBuffer <= 0 {
		config.SnapshotBuffer = 8
	}
	if config.Name == "" {
		config.Name = "engine"
	}
	return &Engine{
		id:         uuid.NewString(),
		config:     config,
		pop:        pop,
		strategy:   strategy,
		counter:    counter,
		logger:     logging.GetLogger(),
		commands:   make(chan command, 16),
		workerDone: make(chan struct{}),
		state:      core.RunStateReady,
		health:     Health{Alive: false},
	}, nil
}

// ID returns the engine's run identifier.
func (e *Engine) ID() string { return e.id }

// Name returns the configured engine name.
func (e *Engine) Name() string { return e.config.Name }

// State returns the current run state.
func (e *Engine) State() core.RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Generation returns the number of completed cycles.
func (e *Engine) Generation() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Evaluations returns the global evaluation count.
func (e *Engine) Evaluations() uint64 { return e.counter.Value() }

// Champion returns a copy of the best genome as of the most recently
// completed cycle, or nil before the first one. The copy is captured on the
// worker goroutine at the cycle boundary, so Champion never reads the live
// population from a caller thread.
func (e *Engine) Champion() *core.Genome {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.champion == nil {
		return nil
	}
	return e.champion.Clone()
}

// Latest returns the most recently published snapshot.
func (e *Engine) Latest() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Population exposes the engine's population. Callers must not mutate it
// while the engine runs; cycle hooks are the sanctioned mutation point.
func (e *Engine) Population() *core.Population { return e.pop }

// Health returns the worker liveness surface.
func (e *Engine) Health() Health {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health
}

// AddCycleHook registers a hook run after every cycle. Must be called before
// Start.
func (e *Engine) AddCycleHook(h CycleHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, h)
}

// OnUpdate registers a snapshot callback. Callback panics are caught and
// logged; they never kill the worker.
func (e *Engine) OnUpdate(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = append(e.callbacks, fn)
}

// Subscribe returns a channel of snapshots. The channel closes on Reset.
func (e *Engine) Subscribe() <-chan Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan Snapshot, e.config.SnapshotBuffer)
	e.subscribers = append(e.subscribers, ch)
	return ch
}

// Start moves the engine from Ready or Paused into Running, launching the
// background worker on first use. It blocks until the worker acknowledges
// the Running transition, so a caller that returns from Start observes the
// new state through every accessor. Starting a terminated engine is an
// explicit error, never a silent no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case core.RunStateTerminated:
		e.mu.Unlock()
		return errors.New(errors.InvalidRunState, "cannot start a terminated engine")
	case core.RunStateRunning:
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	e.workerOnce.Do(func() {
		e.mu.Lock()
		e.launched = true
		e.mu.Unlock()
		runCtx := logging.WithRunID(context.Background(), e.id)
		go e.worker(runCtx)
	})

	return e.send(ctx, cmdStart, true)
}

// RequestPause asks the worker to pause at the next cycle boundary. The
// request is polled, not preemptive: an in-flight cycle always completes.
func (e *Engine) RequestPause() {
	if e.State() != core.RunStateRunning {
		return
	}
	// Fire and forget; the worker acknowledges at the boundary.
	select {
	case e.commands <- command{kind: cmdPause}:
	default:
	}
}

// RequestPauseAndWait pauses and blocks until the worker acknowledges at the
// next cycle boundary, or the context expires. The pause command is enqueued
// unconditionally rather than gated on a state read, which would race with
// an in-flight Running transition; the worker treats pausing a non-running
// engine as a no-op and still acknowledges.
func (e *Engine) RequestPauseAndWait(ctx context.Context) error {
	e.mu.Lock()
	terminated := e.state == core.RunStateTerminated
	launched := e.launched
	e.mu.Unlock()
	if terminated || !launched {
		return nil
	}
	return e.send(ctx, cmdPause, true)
}

// Reset terminates the engine and releases its resources: the worker exits,
// subscriber channels close. Legal only from Ready or Paused, or after the
// worker has already died with a fatal cycle error.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	st := e.state
	dead := e.health.FatalErr != nil
	e.mu.Unlock()

	switch {
	case st == core.RunStateTerminated:
		return errors.New(errors.InvalidRunState, "engine already terminated")
	case st == core.RunStateRunning && !dead:
		return errors.New(errors.InvalidRunState, "pause the engine before reset")
	}

	// If the worker never launched, consume the Once so a later Start
	// cannot launch it, and unblock the shutdown wait below.
	e.workerOnce.Do(func() { close(e.workerDone) })

	if err := e.send(ctx, cmdTerminate, true); err != nil && !dead {
		return err
	}

	select {
	case <-e.workerDone:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.Timeout, "waiting for worker shutdown")
	}

	e.mu.Lock()
	e.state = core.RunStateTerminated
	e.health.Alive = false
	for _, ch := range e.subscribers {
		close(ch)
	}
	e.subscribers = nil
	e.mu.Unlock()
	return nil
}

func (e *Engine) send(ctx context.Context, kind commandKind, wait bool) error {
	cmd := command{kind: kind}
	if wait {
		cmd.reply = make(chan error, 1)
	}
	select {
	case e.commands <- cmd:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.Timeout, "engine command queue full")
	case <-e.workerDone:
		// Worker gone; commands are moot.
		if wait {
			return nil
		}
		return nil
	}
	if !wait {
		return nil
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.Timeout, "waiting for engine acknowledgement")
	case <-e.workerDone:
		return nil
	}
}

// worker is the dedicated background goroutine driving the cycle loop.
// Commands are polled between cycles only; a cycle failure is recorded in
// Health and stops the loop without flipping RunState (the documented
// externally observable behavior callers must detect via Health).
func (e *Engine) worker(ctx context.Context) {
	defer close(e.workerDone)

	e.mu.Lock()
	e.health.Alive = true
	e.health.LastHeartbeat = time.Now()
	e.mu.Unlock()

	for {
		st := e.State()
		if st == core.RunStateTerminated {
			return
		}
		if st != core.RunStateRunning {
			// Blocked at the pause-wait point until a command arrives.
			cmd, ok := <-e.commands
			if !ok {
				return
			}
			if terminated := e.apply(cmd); terminated {
				return
			}
			continue
		}

		// Poll for pause/terminate before committing to a cycle.
		select {
		case cmd := <-e.commands:
			if terminated := e.apply(cmd); terminated {
				return
			}
			continue
		default:
		}

		gen := e.Generation()
		cycleCtx := logging.WithGeneration(ctx, gen+1)
		outcome, err := e.strategy.RunOneCycle(cycleCtx, e.pop, gen)

		e.mu.Lock()
		e.health.LastHeartbeat = time.Now()
		if err != nil {
			// State deliberately stays Running; Health carries the truth.
			e.health.Alive = false
			e.health.FatalErr = err
			e.mu.Unlock()
			e.logger.Error(ctx, "cycle failed, worker stopping: %v", err)
			return
		}
		e.generation++
		e.mu.Unlock()

		e.runHooks(cycleCtx, outcome)
		e.afterCycle(cycleCtx, outcome)
	}
}

// apply processes one command on the worker goroutine. Returns true when the
// engine terminated.
func (e *Engine) apply(cmd command) bool {
	var err error
	terminated := false

	e.mu.Lock()
	switch cmd.kind {
	case cmdStart:
		if e.state == core.RunStateTerminated {
			err = errors.New(errors.InvalidRunState, "cannot start a terminated engine")
		} else {
			e.state = core.RunStateRunning
		}
	case cmdPause:
		if e.state == core.RunStateRunning {
			e.state = core.RunStatePaused
		}
	case cmdTerminate:
		e.state = core.RunStateTerminated
		e.health.Alive = false
		terminated = true
	}
	state := e.state
	e.mu.Unlock()

	if cmd.reply != nil {
		cmd.reply <- err
	}
	e.logger.Debug(context.Background(), "engine %s state: %s", e.config.Name, state)
	return terminated
}

// afterCycle enforces budgets, detects stop conditions and publishes
// snapshots on the configured cadence.
func (e *Engine) afterCycle(ctx context.Context, outcome CycleOutcome) {
	e.mu.Lock()
	// Champion is cloned here, on the worker with the lock held, so caller
	// threads never resolve it through the live population.
	if ch := e.pop.Champion(); ch != nil {
		e.champion = ch.Clone()
	}
	gen := e.generation
	paused := false
	if outcome.StopConditionSatisfied {
		paused = true
	}
	if e.config.MaxGenerations > 0 && gen >= e.config.MaxGenerations {
		paused = true
	}
	if e.config.MaxEvaluations > 0 && e.counter.Value() >= e.config.MaxEvaluations {
		paused = true
	}
	if paused {
		e.state = core.RunStatePaused
	}

	due := paused
	if e.config.UpdateEvery > 0 {
		if time.Since(e.lastUpdate) >= e.config.UpdateEvery {
			due = true
		}
	} else if gen%e.config.UpdateEveryGenerations == 0 {
		due = true
	}

	var snap Snapshot
	if due {
		snap = e.buildSnapshotLocked(outcome)
		e.latest = snap
		e.lastUpdate = time.Now()
	}
	callbacks := e.callbacks
	subscribers := e.subscribers
	e.mu.Unlock()

	if paused {
		e.logger.Info(ctx, "engine %s paused: generation=%d, evaluations=%d, stop=%v",
			e.config.Name, gen, e.counter.Value(), outcome.StopConditionSatisfied)
	}
	if !due {
		return
	}

	for _, ch := range subscribers {
		select {
		case ch <- snap:
		default: // slow subscriber, drop
		}
	}
	for _, fn := range callbacks {
		e.fireCallback(ctx, fn, snap)
	}
}

func (e *Engine) fireCallback(ctx context.Context, fn func(Snapshot), snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.WithFields(
				errors.Newf(errors.CallbackFailed, "update callback panicked: %v", r),
				errors.Fields{"engine": e.config.Name})
			e.logger.Error(ctx, "%v", err)
		}
	}()
	fn(snap)
}

// buildSnapshotLocked assembles a snapshot; e.mu must be held.
func (e *Engine) buildSnapshotLocked(outcome CycleOutcome) Snapshot {
	snap := Snapshot{
		RunID:          e.id,
		Name:           e.config.Name,
		State:          e.state,
		Generation:     e.generation,
		Evaluations:    e.counter.Value(),
		PopulationSize: e.pop.Len(),
		MeanComplexity: e.pop.MeanComplexity(),
		MaxComplexity:  e.pop.MaxComplexity(),
		SpeciesSizes:   outcome.SpeciesSizes,
		ArchiveSize:    outcome.ArchiveSize,
		ViableCount:    outcome.ViableCount,
		Time:           time.Now(),
	}
	if e.champion != nil {
		snap.ChampionID = e.champion.ID
		snap.ChampionFitness = e.champion.Eval.Fitness
	}
	return snap
}

func (e *Engine) runHooks(ctx context.Context, outcome CycleOutcome) {
	e.mu.Lock()
	hooks := e.hooks
	e.mu.Unlock()
	for _, h := range hooks {
		h(ctx, e.pop, outcome)
	}
}

// String implements fmt.Stringer for log friendliness.
func (e *Engine) String() string {
	return fmt.Sprintf("%s(%s)", e.config.Name, e.State())
}
