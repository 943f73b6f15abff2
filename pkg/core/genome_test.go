package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrant/mcc-go/pkg/errors"
)

func TestBehaviorVectorDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b BehaviorVector
		want float64
	}{
		{"identical", BehaviorVector{1, 2}, BehaviorVector{1, 2}, 0},
		{"axis aligned", BehaviorVector{0, 0}, BehaviorVector{3, 4}, 5},
		{"single dimension", BehaviorVector{2}, BehaviorVector{-1}, 3},
		{"empty", BehaviorVector{}, BehaviorVector{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.a.Distance(tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, d, 1e-9)

			// Symmetry.
			rd, err := tt.b.Distance(tt.a)
			require.NoError(t, err)
			assert.InDelta(t, d, rd, 1e-9)
		})
	}
}

func TestBehaviorVectorDistanceMismatch(t *testing.T) {
	_, err := BehaviorVector{1, 2}.Distance(BehaviorVector{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.DimensionMismatch))
}

func TestBehaviorVectorClone(t *testing.T) {
	t.Run("independent copy", func(t *testing.T) {
		orig := BehaviorVector{1, 2, 3}
		clone := orig.Clone()
		clone[0] = 99
		assert.Equal(t, 1.0, orig[0])
	})

	t.Run("nil stays nil", func(t *testing.T) {
		var b BehaviorVector
		assert.Nil(t, b.Clone())
	})
}

func TestGenomeClone(t *testing.T) {
	g := &Genome{
		ID:              7,
		SpeciesID:       2,
		BirthGeneration: 3,
		Genes:           []Gene{{ID: 1, Value: 0.5}, {ID: 2, Value: -1.5}},
		Eval: EvaluationInfo{
			Fitness:                   0.9,
			Behavior:                  BehaviorVector{0.5, -1.5},
			SatisfiesMinimalCriterion: true,
			IsEvaluated:               true,
			EvaluationCount:           4,
		},
	}

	clone := g.Clone()
	require.NotSame(t, g, clone)
	assert.Equal(t, g.ID, clone.ID)
	assert.Equal(t, g.Eval, clone.Eval)

	// Mutating the clone must not touch the original.
	clone.Genes[0].Value = 100
	clone.Eval.Behavior[0] = 100
	assert.Equal(t, 0.5, g.Genes[0].Value)
	assert.Equal(t, 0.5, g.Eval.Behavior[0])
}

func TestGenomeComplexity(t *testing.T) {
	g := &Genome{Genes: []Gene{{ID: 1}, {ID: 2}, {ID: 3}}}
	assert.Equal(t, 3.0, g.Complexity())
	assert.Equal(t, 0.0, (&Genome{}).Complexity())
}

func TestRunStateString(t *testing.T) {
	assert.Equal(t, "ready", RunStateReady.String())
	assert.Equal(t, "running", RunStateRunning.String())
	assert.Equal(t, "paused", RunStatePaused.String())
	assert.Equal(t, "terminated", RunStateTerminated.String())
	assert.Equal(t, "unknown", RunState(99).String())
}

func TestSpeciesMembers(t *testing.T) {
	pop := NewPopulation(3)
	g1 := &Genome{ID: 1}
	g2 := &Genome{ID: 2}
	pop.AddAll([]*Genome{g1, g2})

	sp := &Species{ID: 0, Representative: g1.Clone(), MemberIDs: []GenomeID{1, 2, 99}}
	members := sp.Members(pop)
	assert.Len(t, members, 2) // unknown id 99 is skipped
	assert.Equal(t, 3, sp.Size())
}

func TestDistanceIsFinite(t *testing.T) {
	a := BehaviorVector{math.MaxFloat64 / 2}
	b := BehaviorVector{-math.MaxFloat64 / 2}
	d, err := a.Distance(b)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(d))
}
