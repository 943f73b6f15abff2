package mcc

import (
	"sync"

	"github.com/jbrant/mcc-go/pkg/core"
)

// targetEntry pairs a queued phenome with the genome it was decoded from.
type targetEntry struct {
	id      core.GenomeID
	phenome core.Phenome
}

// TargetQueue is the bounded FIFO of evaluation targets one population
// offers its partner. Pushing beyond capacity evicts the oldest queued
// targets. Safe for concurrent use; both engine workers touch it at cycle
// boundaries.
type TargetQueue struct {
	mu       sync.Mutex
	entries  []targetEntry
	capacity int
}

// NewTargetQueue creates a queue with the given capacity.
func NewTargetQueue(capacity int) *TargetQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &TargetQueue{capacity: capacity}
}

// Push enqueues a target, evicting oldest entries over capacity.
func (q *TargetQueue) Push(id core.GenomeID, phenome core.Phenome) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, targetEntry{id: id, phenome: phenome})
	if over := len(q.entries) - q.capacity; over > 0 {
		q.entries = q.entries[over:]
	}
}

// Contains reports whether the genome already has a queued target.
func (q *TargetQueue) Contains(id core.GenomeID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.id == id {
			return true
		}
	}
	return false
}

// Len returns the queued target count.
func (q *TargetQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns the queued phenomes as a fresh slice suitable for an
// atomic evaluator-target swap.
func (q *TargetQueue) Snapshot() []core.Phenome {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]core.Phenome, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.phenome
	}
	return out
}
