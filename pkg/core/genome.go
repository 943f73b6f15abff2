package core

import (
	"math"

	"github.com/jbrant/mcc-go/pkg/errors"
)

// GenomeID uniquely identifies a genome for the lifetime of a run.
type GenomeID uint64

// Gene is one heritable unit: a structural identifier plus a parameter value.
// Two genomes share a structural gene when their Gene IDs match; the IDs are
// handed out by a Factory-owned sequence so matching is meaningful across
// lineages.
type Gene struct {
	ID    uint64  `json:"id"`
	Value float64 `json:"value"`
}

// BehaviorVector is an ordered sequence of doubles characterizing the
// behavior a phenotype exhibited during evaluation.
type BehaviorVector []float64

// Distance returns the Euclidean distance between two behavior vectors.
// Vectors of different lengths indicate a domain wiring bug and yield a
// DimensionMismatch error.
func (b BehaviorVector) Distance(other BehaviorVector) (float64, error) {
	if len(b) != len(other) {
		return 0, errors.WithFields(
			errors.New(errors.DimensionMismatch, "behavior vector length mismatch"),
			errors.Fields{"expected": len(b), "actual": len(other)})
	}
	var sum float64
	for i := range b {
		d := b[i] - other[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Clone returns an independent copy of the vector.
func (b BehaviorVector) Clone() BehaviorVector {
	if b == nil {
		return nil
	}
	out := make(BehaviorVector, len(b))
	copy(out, b)
	return out
}

// EvaluationInfo holds the results of evaluating a genome's phenotype.
type EvaluationInfo struct {
	Fitness                   float64        `json:"fitness"`
	Behavior                  BehaviorVector `json:"behavior,omitempty"`
	SatisfiesMinimalCriterion bool           `json:"satisfies_minimal_criterion"`
	IsEvaluated               bool           `json:"is_evaluated"`

	// EvaluationCount tracks how many times this genome has been through an
	// evaluation, which feeds the MCC viability retry budget.
	EvaluationCount int `json:"evaluation_count"`
}

// Genome is the heritable unit of search. A genome is owned by exactly one
// Population (or queue) at a time; moving it between containers transfers
// ownership rather than aliasing it.
type Genome struct {
	ID              GenomeID       `json:"id"`
	SpeciesID       int            `json:"species_id"`
	BirthGeneration int            `json:"birth_generation"`
	Genes           []Gene         `json:"genes"`
	Eval            EvaluationInfo `json:"eval"`
}

// Complexity reports the structural size of the genome.
func (g *Genome) Complexity() float64 {
	return float64(len(g.Genes))
}

// Clone returns a deep copy with the same identity. Used when a genome's
// content must cross an ownership boundary (e.g. a species representative
// or an exchange queue entry) without aliasing population storage.
func (g *Genome) Clone() *Genome {
	genes := make([]Gene, len(g.Genes))
	copy(genes, g.Genes)
	out := &Genome{
		ID:              g.ID,
		SpeciesID:       g.SpeciesID,
		BirthGeneration: g.BirthGeneration,
		Genes:           genes,
		Eval:            g.Eval,
	}
	out.Eval.Behavior = g.Eval.Behavior.Clone()
	return out
}
