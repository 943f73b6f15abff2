// Package novelty maintains an adaptively-thresholded archive of
// behaviorally distinct genomes, used to reward exploration instead of (or
// alongside) objective fitness.
package novelty

import (
	"sync"

	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/errors"
)

// ArchiveConfig controls admission and the adaptive threshold policy.
type ArchiveConfig struct {
	// InitialThreshold is the behavioral distance a candidate must keep
	// from every archive member to be admitted.
	InitialThreshold float64
	// MaxAdditionsPerCycle: exceeding this in one cycle raises the bar.
	MaxAdditionsPerCycle int
	// MaxCyclesWithoutAddition: reaching this lowers the bar.
	MaxCyclesWithoutAddition int
	// ThresholdIncreaseFactor multiplies the threshold when too permissive.
	ThresholdIncreaseFactor float64
	// ThresholdDecreaseFactor multiplies the threshold when too strict.
	ThresholdDecreaseFactor float64
	// MinThreshold floors the threshold so it cannot decay to zero.
	MinThreshold float64
}

// DefaultArchiveConfig returns the conventional adaptive policy.
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		InitialThreshold:         1.0,
		MaxAdditionsPerCycle:     5,
		MaxCyclesWithoutAddition: 10,
		ThresholdIncreaseFactor:  1.2,
		ThresholdDecreaseFactor:  0.95,
		MinThreshold:             0.01,
	}
}

// entry is a detached record of an admitted genome. The archive stores
// genome ids plus behavior copies rather than aliasing population storage.
type entry struct {
	id       core.GenomeID
	behavior core.BehaviorVector
}

// Archive is a thread-safe, insertion-order-irrelevant collection of
// behaviorally unique genomes. Insertions may arrive concurrently from
// evaluator workers.
//
// The distance-scan-then-insert sequence is atomic per candidate (one lock
// covers both), but two candidates racing through back-to-back inserts may
// each be admitted relative to the archive as it stood at their own scan,
// while being closer than the threshold to each other only if the first
// insert lands between the second's scan and insert. Under a single lock
// that interleaving cannot occur; the accepted approximation from the
// non-atomic design is documented in the tests.
type Archive struct {
	config ArchiveConfig

	mu                      sync.RWMutex
	entries                 []entry
	threshold               float64
	additionsThisCycle      int
	cyclesSinceLastAddition int
	minThresholdObserved    float64
}

// NewArchive creates an empty archive.
func NewArchive(config ArchiveConfig) *Archive {
	if config.InitialThreshold <= 0 {
		config.InitialThreshold = DefaultArchiveConfig().InitialThreshold
	}
	if config.ThresholdIncreaseFactor <= 1 {
		config.ThresholdIncreaseFactor = DefaultArchiveConfig().ThresholdIncreaseFactor
	}
	if config.ThresholdDecreaseFactor <= 0 || config.ThresholdDecreaseFactor >= 1 {
		config.ThresholdDecreaseFactor = DefaultArchiveConfig().ThresholdDecreaseFactor
	}
	return &Archive{
		config:               config,
		threshold:            config.InitialThreshold,
		minThresholdObserved: config.InitialThreshold,
	}
}

// TestAndAdd admits the genome when its minimum behavioral distance to every
// current member is at least the admission threshold (an empty archive
// admits unconditionally). Returns whether the genome was admitted.
func (a *Archive) TestAndAdd(g *core.Genome) (bool, error) {
	if g.Eval.Behavior == nil {
		return false, errors.New(errors.InvalidInput, "genome has no behavior vector")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, e := range a.entries {
		d, err := e.behavior.Distance(g.Eval.Behavior)
		if err != nil {
			return false, errors.Wrap(err, errors.DimensionMismatch, "archive distance scan")
		}
		if d < a.threshold {
			return false, nil
		}
	}

	a.entries = append(a.entries, entry{
		id:       g.ID,
		behavior: g.Eval.Behavior.Clone(),
	})
	a.additionsThisCycle++
	a.cyclesSinceLastAddition = 0
	return true, nil
}

// EndCycle applies the adaptive threshold update once per generation/batch.
// Both triggers are checked every call, in order: too many additions raise
// the threshold; a long drought lowers it and resets the drought counter.
// The additions counter is zeroed on every call.
func (a *Archive) EndCycle() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.additionsThisCycle == 0 {
		a.cyclesSinceLastAddition++
	}

	if a.additionsThisCycle > a.config.MaxAdditionsPerCycle {
		a.threshold *= a.config.ThresholdIncreaseFactor
	}
	if a.cyclesSinceLastAddition >= a.config.MaxCyclesWithoutAddition {
		a.threshold *= a.config.ThresholdDecreaseFactor
		a.cyclesSinceLastAddition = 0
	}
	if a.threshold < a.config.MinThreshold {
		a.threshold = a.config.MinThreshold
	}
	if a.threshold < a.minThresholdObserved {
		a.minThresholdObserved = a.threshold
	}

	a.additionsThisCycle = 0
}

// Size returns the member count.
func (a *Archive) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Threshold returns the current admission threshold.
func (a *Archive) Threshold() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.threshold
}

// MinThresholdObserved returns the smallest threshold seen over the run,
// which bounds the pairwise distance between any two archive members.
func (a *Archive) MinThresholdObserved() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.minThresholdObserved
}

// MemberIDs returns the admitted genome ids.
func (a *Archive) MemberIDs() []core.GenomeID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]core.GenomeID, len(a.entries))
	for i, e := range a.entries {
		ids[i] = e.id
	}
	return ids
}

// Behaviors returns copies of the archived behavior vectors.
func (a *Archive) Behaviors() []core.BehaviorVector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]core.BehaviorVector, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.behavior.Clone()
	}
	return out
}
