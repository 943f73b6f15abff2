package engine

import (
	"math/rand"
	"sort"

	"github.com/jbrant/mcc-go/pkg/core"
)

// tournamentSelect picks the fittest of k uniformly sampled candidates.
func tournamentSelect(rng *rand.Rand, candidates []*core.Genome, k int) *core.Genome {
	if len(candidates) == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	best := candidates[rng.Intn(len(candidates))]
	for i := 1; i < k; i++ {
		c := candidates[rng.Intn(len(candidates))]
		if c.Eval.Fitness > best.Eval.Fitness {
			best = c
		}
	}
	return best
}

// sortByFitnessDesc orders genomes fittest-first, stably so older genomes
// win ties (elitism favors proven members).
func sortByFitnessDesc(genomes []*core.Genome) {
	sort.SliceStable(genomes, func(i, j int) bool {
		return genomes[i].Eval.Fitness > genomes[j].Eval.Fitness
	})
}
