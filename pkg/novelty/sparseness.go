package novelty

import (
	"sort"

	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/errors"
)

// Sparseness computes the novelty score of a behavior as the mean distance
// to its k nearest neighbors among the given reference behaviors (typically
// the current population plus the archive). A behavior far from everything
// it has been compared to is maximally novel.
func Sparseness(behavior core.BehaviorVector, neighbors []core.BehaviorVector, k int) (float64, error) {
	if k <= 0 {
		return 0, errors.New(errors.InvalidInput, "k must be positive")
	}
	if len(neighbors) == 0 {
		return 0, nil
	}

	dists := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		d, err := behavior.Distance(n)
		if err != nil {
			return 0, errors.Wrap(err, errors.DimensionMismatch, "sparseness distance")
		}
		dists = append(dists, d)
	}
	sort.Float64s(dists)

	if k > len(dists) {
		k = len(dists)
	}
	var sum float64
	for _, d := range dists[:k] {
		sum += d
	}
	return sum / float64(k), nil
}
