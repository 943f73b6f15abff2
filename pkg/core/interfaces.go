package core

import (
	"context"
)

// Phenome is the domain-specific evaluable artifact produced by decoding a
// genome. The engine never looks inside it; it only hands phenomes to the
// domain's Scorer.
type Phenome interface{}

// Decoder maps a genome to its phenotype. Implementations are supplied by
// the domain and must be pure functions of the genome: decoding the same
// genome twice yields equivalent phenomes, and Decode must be safe to call
// concurrently from evaluator workers.
type Decoder interface {
	Decode(g *Genome) (Phenome, error)
}

// TrialResult is the outcome of scoring a phenome against a single
// evaluation target.
type TrialResult struct {
	Fitness  float64
	Behavior BehaviorVector
	// Success reports whether this trial satisfied the domain's criterion
	// (e.g. the agent solved this particular maze).
	Success bool
	// StopConditionSatisfied signals that the search goal itself has been
	// reached and the engine should pause at the next cycle boundary.
	StopConditionSatisfied bool
}

// Scorer evaluates a phenome against one evaluation target. Implementations
// are supplied by the domain and must be safe for concurrent use. A nil
// target is passed when the evaluation has no partner population (plain
// fitness or novelty search).
type Scorer interface {
	Score(ctx context.Context, phenome Phenome, target Phenome) (TrialResult, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, phenome Phenome, target Phenome) (TrialResult, error)

func (f ScorerFunc) Score(ctx context.Context, phenome Phenome, target Phenome) (TrialResult, error) {
	return f(ctx, phenome, target)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(g *Genome) (Phenome, error)

func (f DecoderFunc) Decode(g *Genome) (Phenome, error) {
	return f(g)
}

// DistanceMetric measures genetic distance between two genomes. Distance
// must be symmetric and non-negative; it need not satisfy the triangle
// inequality (the default metric charges a fixed penalty per mismatched
// structural gene, which makes it a weighted edit distance rather than a
// true metric).
type DistanceMetric interface {
	Distance(a, b *Genome) float64
}

// SpeciationStrategy partitions a population into species by genetic
// distance. After Speciate returns, every population member is assigned to
// exactly one of the returned species and has its SpeciesID set to match.
type SpeciationStrategy interface {
	Speciate(ctx context.Context, pop *Population, speciesCount int) ([]*Species, error)
}

// GenomeFactory creates genomes, either from scratch for population seeding
// or as offspring of selected parents. Implementations own the id sequences
// behind genome and gene identity; Reset discards those sequences so a
// discarded bootstrap attempt leaks no state into the next one.
type GenomeFactory interface {
	CreateRandom(n int, generation int) []*Genome
	CreateOffspring(parents []*Genome, generation int, opts OffspringOptions) (*Genome, error)
	Reset()
}

// OffspringOptions tunes a single offspring-production call. The complexity
// regulation strategy flips these between complexifying and pruning phases.
type OffspringOptions struct {
	// AllowStructuralGrowth permits mutations that add genes.
	AllowStructuralGrowth bool
	// PreferSimplification biases mutation toward removing genes.
	PreferSimplification bool
	// Asexual forces single-parent reproduction even when two parents are
	// supplied.
	Asexual bool
}
