// Package speciation clusters a population into species by genetic distance
// so that selection pressure is applied within niches rather than globally.
package speciation

import (
	"math"

	"github.com/jbrant/mcc-go/pkg/core"
)

// WeightedEditDistance measures genetic distance by aligning genes on their
// structural ids: every unmatched gene on either side is charged a fixed
// mismatch penalty, and matched genes contribute the weighted absolute
// difference of their parameter values. The result is symmetric and
// non-negative but deliberately not a true metric (the fixed mismatch
// penalty breaks the triangle inequality).
type WeightedEditDistance struct {
	// MismatchPenalty is charged once per structural gene present in only
	// one of the two genomes.
	MismatchPenalty float64
	// ValueCoefficient scales the parameter-value difference of matched
	// genes.
	ValueCoefficient float64
}

// NewWeightedEditDistance returns the metric with the conventional weights.
func NewWeightedEditDistance() *WeightedEditDistance {
	return &WeightedEditDistance{
		MismatchPenalty:  1.0,
		ValueCoefficient: 0.4,
	}
}

// Distance implements core.DistanceMetric.
func (m *WeightedEditDistance) Distance(a, b *core.Genome) float64 {
	byID := make(map[uint64]float64, len(a.Genes))
	for _, g := range a.Genes {
		byID[g.ID] = g.Value
	}

	var dist float64
	matched := 0
	for _, g := range b.Genes {
		if v, ok := byID[g.ID]; ok {
			dist += m.ValueCoefficient * math.Abs(v-g.Value)
			matched++
			continue
		}
		dist += m.MismatchPenalty
	}
	// Genes present in a but not in b.
	dist += m.MismatchPenalty * float64(len(a.Genes)-matched)

	return dist
}
