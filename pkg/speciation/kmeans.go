package speciation

import (
	"context"
	"math/rand"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/errors"
	"github.com/jbrant/mcc-go/pkg/logging"
)

// KMeansConfig controls the iterative clustering.
type KMeansConfig struct {
	// MaxIterations caps the assign/update loop when assignments refuse to
	// stabilize.
	MaxIterations int
	// MinSpecies is the floor below which the largest species is split to
	// reseed a new one.
	MinSpecies int
	// Parallelism bounds the goroutines used for the assignment scan.
	Parallelism int
}

// DefaultKMeansConfig returns the defaults used by the engines.
func DefaultKMeansConfig() KMeansConfig {
	return KMeansConfig{
		MaxIterations: 10,
		MinSpecies:    1,
		Parallelism:   4,
	}
}

// KMeansStrategy implements core.SpeciationStrategy with k-means-style
// iterative clustering: assign every genome to its nearest representative,
// recompute each representative as the medoid of its members, repeat until
// stable. Representatives persist across calls so a continuing run reuses
// the previous cycle's clusters as seeds.
type KMeansStrategy struct {
	metric core.DistanceMetric
	config KMeansConfig

	mu   sync.Mutex
	reps []*core.Genome // carried between speciation cycles
	rng  *rand.Rand
}

// NewKMeansStrategy creates a strategy around the given metric.
func NewKMeansStrategy(metric core.DistanceMetric, config KMeansConfig, seed int64) *KMeansStrategy {
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultKMeansConfig().MaxIterations
	}
	if config.Parallelism <= 0 {
		config.Parallelism = DefaultKMeansConfig().Parallelism
	}
	if config.MinSpecies <= 0 {
		config.MinSpecies = 1
	}
	return &KMeansStrategy{
		metric: metric,
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Speciate implements core.SpeciationStrategy. Every member of pop ends up
// in exactly one returned species with its SpeciesID set accordingly.
func (s *KMeansStrategy) Speciate(ctx context.Context, pop *core.Population, speciesCount int) ([]*core.Species, error) {
	if speciesCount <= 0 {
		return nil, errors.New(errors.InvalidInput, "species count must be positive")
	}
	members := pop.Members()
	if len(members) == 0 {
		return nil, errors.New(errors.InvalidInput, "cannot speciate an empty population")
	}
	if speciesCount > len(members) {
		speciesCount = len(members)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reps := s.seedRepresentatives(members, speciesCount)
	assignments := make([]int, len(members))

	for iter := 0; iter < s.config.MaxIterations; iter++ {
		if err := errors.CheckContext(ctx, "speciation"); err != nil {
			return nil, err
		}

		// Assignment scan: each genome finds its nearest representative.
		// No shared mutable state beyond disjoint slice slots, so the scan
		// fans out freely.
		changed := s.assign(members, reps, assignments)

		// Representative update is a reduction over cluster membership and
		// runs under the strategy lock.
		reps = s.updateRepresentatives(members, reps, assignments)

		if !changed && iter > 0 {
			break
		}
	}

	species := s.buildSpecies(members, reps, assignments)
	species = s.repairSpeciesFloor(species, pop)
	s.reps = representativesOf(species)

	logging.GetLogger().Debug(ctx, "speciation complete: species=%d, population=%d", len(species), len(members))
	return species, nil
}

// seedRepresentatives reuses carried representatives when the requested
// count matches, otherwise samples distinct members at random.
func (s *KMeansStrategy) seedRepresentatives(members []*core.Genome, k int) []*core.Genome {
	if len(s.reps) == k {
		return s.reps
	}
	perm := s.rng.Perm(len(members))
	reps := make([]*core.Genome, k)
	for i := 0; i < k; i++ {
		reps[i] = members[perm[i]].Clone()
	}
	return reps
}

func (s *KMeansStrategy) assign(members, reps []*core.Genome, assignments []int) bool {
	changedCh := make(chan struct{}, len(members))
	p := pool.New().WithMaxGoroutines(s.config.Parallelism)
	for i := range members {
		i := i
		p.Go(func() {
			best := 0
			bestDist := s.metric.Distance(members[i], reps[0])
			for r := 1; r < len(reps); r++ {
				if d := s.metric.Distance(members[i], reps[r]); d < bestDist {
					bestDist = d
					best = r
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changedCh <- struct{}{}
			}
		})
	}
	p.Wait()
	close(changedCh)
	return len(changedCh) > 0
}

// updateRepresentatives recomputes each cluster's representative as the
// member minimizing total distance to its cluster mates (the medoid). Empty
// clusters keep their previous representative so they can recapture members
// on the next pass.
func (s *KMeansStrategy) updateRepresentatives(members, reps []*core.Genome, assignments []int) []*core.Genome {
	clusters := make([][]*core.Genome, len(reps))
	for i, g := range members {
		clusters[assignments[i]] = append(clusters[assignments[i]], g)
	}

	next := make([]*core.Genome, len(reps))
	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(s.config.Parallelism)
	for r := range reps {
		r := r
		p.Go(func() {
			medoid := s.medoid(clusters[r])
			mu.Lock()
			if medoid != nil {
				next[r] = medoid.Clone()
			} else {
				next[r] = reps[r]
			}
			mu.Unlock()
		})
	}
	p.Wait()
	return next
}

func (s *KMeansStrategy) medoid(cluster []*core.Genome) *core.Genome {
	if len(cluster) == 0 {
		return nil
	}
	if len(cluster) == 1 {
		return cluster[0]
	}
	best := cluster[0]
	bestTotal := s.totalDistance(cluster[0], cluster)
	for _, g := range cluster[1:] {
		if total := s.totalDistance(g, cluster); total < bestTotal {
			bestTotal = total
			best = g
		}
	}
	return best
}

func (s *KMeansStrategy) totalDistance(g *core.Genome, cluster []*core.Genome) float64 {
	var total float64
	for _, other := range cluster {
		if other != g {
			total += s.metric.Distance(g, other)
		}
	}
	return total
}

// buildSpecies drops clusters that lost all members and stamps SpeciesID on
// every genome.
func (s *KMeansStrategy) buildSpecies(members, reps []*core.Genome, assignments []int) []*core.Species {
	byCluster := make(map[int][]core.GenomeID)
	for i, g := range members {
		byCluster[assignments[i]] = append(byCluster[assignments[i]], g.ID)
	}

	species := make([]*core.Species, 0, len(byCluster))
	id := 0
	for r := range reps {
		ids, ok := byCluster[r]
		if !ok || len(ids) == 0 {
			continue // extinct cluster
		}
		species = append(species, &core.Species{
			ID:             id,
			Representative: reps[r],
			MemberIDs:      ids,
		})
		id++
	}

	return species
}

// repairSpeciesFloor splits the largest species when extinctions drop the
// count below the configured minimum.
func (s *KMeansStrategy) repairSpeciesFloor(species []*core.Species, pop *core.Population) []*core.Species {
	for len(species) < s.config.MinSpecies {
		largest := species[0]
		for _, sp := range species[1:] {
			if sp.Size() > largest.Size() {
				largest = sp
			}
		}
		if largest.Size() < 2 {
			break // nothing left to split
		}

		half := largest.Size() / 2
		seceding := largest.MemberIDs[half:]
		largest.MemberIDs = largest.MemberIDs[:half]

		seed := pop.Get(seceding[0])
		if seed == nil {
			break
		}
		species = append(species, &core.Species{
			ID:             len(species),
			Representative: seed.Clone(),
			MemberIDs:      seceding,
		})
	}

	// Stamp final assignments.
	for _, sp := range species {
		for _, id := range sp.MemberIDs {
			if g := pop.Get(id); g != nil {
				g.SpeciesID = sp.ID
			}
		}
	}
	return species
}

func representativesOf(species []*core.Species) []*core.Genome {
	reps := make([]*core.Genome, 0, len(species))
	for _, sp := range species {
		reps = append(reps, sp.Representative)
	}
	return reps
}
