// Package point is a deliberately tiny built-in domain: a genome's first
// two gene values decode to a 2D point. It exists so the engine, archive and
// container can be exercised end to end without a simulator behind the
// decode/score seams.
package point

import (
	"context"
	"math"

	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/errors"
)

// Point is the phenome of this domain.
type Point struct {
	X, Y float64
}

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Decoder maps a genome to the point held in its first two genes.
type Decoder struct{}

// Decode implements core.Decoder.
func (Decoder) Decode(g *core.Genome) (core.Phenome, error) {
	if len(g.Genes) < 2 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "point genome needs at least two genes"),
			errors.Fields{"genome": g.ID, "genes": len(g.Genes)})
	}
	return Point{X: g.Genes[0].Value, Y: g.Genes[1].Value}, nil
}

// IdentityScorer reports the decoded point as the behavior vector with no
// objective fitness. Pure behavior characterization for novelty search.
type IdentityScorer struct{}

// Score implements core.Scorer.
func (IdentityScorer) Score(_ context.Context, phenome core.Phenome, _ core.Phenome) (core.TrialResult, error) {
	p, ok := phenome.(Point)
	if !ok {
		return core.TrialResult{}, errors.New(errors.InvalidInput, "phenome is not a point")
	}
	return core.TrialResult{
		Behavior: core.BehaviorVector{p.X, p.Y},
	}, nil
}

// ProximityScorer scores a point against a target point: a trial succeeds
// when the candidate lands within Radius of the target. With no target the
// fixed Goal is used. Fitness decays with distance so plain fitness search
// still has a gradient.
type ProximityScorer struct {
	Goal   Point
	Radius float64
	// SolveRadius, when positive, turns a close enough hit into a run
	// stop condition.
	SolveRadius float64
}

// Score implements core.Scorer.
func (s ProximityScorer) Score(_ context.Context, phenome core.Phenome, target core.Phenome) (core.TrialResult, error) {
	p, ok := phenome.(Point)
	if !ok {
		return core.TrialResult{}, errors.New(errors.InvalidInput, "phenome is not a point")
	}

	goal := s.Goal
	if target != nil {
		tp, ok := target.(Point)
		if !ok {
			return core.TrialResult{}, errors.New(errors.InvalidInput, "target is not a point")
		}
		goal = tp
	}

	d := p.Distance(goal)
	return core.TrialResult{
		Fitness:                1.0 / (1.0 + d),
		Behavior:               core.BehaviorVector{p.X, p.Y},
		Success:                d <= s.Radius,
		StopConditionSatisfied: s.SolveRadius > 0 && d <= s.SolveRadius,
	}, nil
}
