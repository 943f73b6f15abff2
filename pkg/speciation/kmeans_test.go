package speciation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrant/mcc-go/pkg/core"
	"github.com/jbrant/mcc-go/pkg/errors"
)

// clusteredPopulation builds a population with two obvious genetic clusters:
// genomes sharing gene ids 1..3 and genomes sharing gene ids 10..12.
func clusteredPopulation(t *testing.T, perCluster int) *core.Population {
	t.Helper()
	pop := core.NewPopulation(perCluster * 2)
	id := core.GenomeID(0)
	for i := 0; i < perCluster; i++ {
		id++
		pop.Add(&core.Genome{
			ID:        id,
			SpeciesID: -1,
			Genes: []core.Gene{
				{ID: 1, Value: float64(i) * 0.01},
				{ID: 2, Value: float64(i) * 0.01},
				{ID: 3, Value: float64(i) * 0.01},
			},
		})
	}
	for i := 0; i < perCluster; i++ {
		id++
		pop.Add(&core.Genome{
			ID:        id,
			SpeciesID: -1,
			Genes: []core.Gene{
				{ID: 10, Value: float64(i) * 0.01},
				{ID: 11, Value: float64(i) * 0.01},
				{ID: 12, Value: float64(i) * 0.01},
			},
		})
	}
	return pop
}

func TestSpeciateAssignsEveryGenomeExactlyOnce(t *testing.T) {
	pop := clusteredPopulation(t, 10)
	strategy := NewKMeansStrategy(NewWeightedEditDistance(), DefaultKMeansConfig(), 1)

	species, err := strategy.Speciate(context.Background(), pop, 2)
	require.NoError(t, err)
	require.NotEmpty(t, species)

	seen := make(map[core.GenomeID]int)
	for _, sp := range species {
		for _, id := range sp.MemberIDs {
			seen[id]++
			g := pop.Get(id)
			require.NotNil(t, g)
			assert.Equal(t, sp.ID, g.SpeciesID)
		}
	}
	assert.Len(t, seen, pop.Len())
	for id, count := range seen {
		assert.Equal(t, 1, count, "genome %d assigned %d times", id, count)
	}
}

func TestSpeciateSeparatesGeneticClusters(t *testing.T) {
	pop := clusteredPopulation(t, 8)
	strategy := NewKMeansStrategy(NewWeightedEditDistance(), DefaultKMeansConfig(), 3)

	species, err := strategy.Speciate(context.Background(), pop, 2)
	require.NoError(t, err)
	require.Len(t, species, 2)

	// Each species must be structurally homogeneous: all members share the
	// same first gene id.
	for _, sp := range species {
		members := sp.Members(pop)
		require.NotEmpty(t, members)
		first := members[0].Genes[0].ID
		for _, g := range members {
			assert.Equal(t, first, g.Genes[0].ID)
		}
	}
}

func TestSpeciateClampsSpeciesCount(t *testing.T) {
	pop := core.NewPopulation(2)
	pop.Add(&core.Genome{ID: 1, SpeciesID: -1, Genes: []core.Gene{{ID: 1, Value: 0}}})
	pop.Add(&core.Genome{ID: 2, SpeciesID: -1, Genes: []core.Gene{{ID: 2, Value: 0}}})

	strategy := NewKMeansStrategy(NewWeightedEditDistance(), DefaultKMeansConfig(), 1)
	species, err := strategy.Speciate(context.Background(), pop, 10)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(species), 2)
}

func TestSpeciateInputErrors(t *testing.T) {
	strategy := NewKMeansStrategy(NewWeightedEditDistance(), DefaultKMeansConfig(), 1)

	t.Run("empty population", func(t *testing.T) {
		_, err := strategy.Speciate(context.Background(), core.NewPopulation(5), 2)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.InvalidInput))
	})

	t.Run("non-positive species count", func(t *testing.T) {
		pop := clusteredPopulation(t, 2)
		_, err := strategy.Speciate(context.Background(), pop, 0)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.InvalidInput))
	})

	t.Run("canceled context", func(t *testing.T) {
		pop := clusteredPopulation(t, 2)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := strategy.Speciate(ctx, pop, 2)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.Canceled))
	})
}

func TestSpeciateRepresentativesAreDetached(t *testing.T) {
	pop := clusteredPopulation(t, 4)
	strategy := NewKMeansStrategy(NewWeightedEditDistance(), DefaultKMeansConfig(), 1)

	species, err := strategy.Speciate(context.Background(), pop, 2)
	require.NoError(t, err)

	for _, sp := range species {
		rep := sp.Representative
		require.NotNil(t, rep)
		if member := pop.Get(rep.ID); member != nil {
			assert.NotSame(t, member, rep, "representative aliases population storage")
		}
	}
}

func TestSpeciateRepresentativesPersistAcrossCycles(t *testing.T) {
	pop := clusteredPopulation(t, 6)
	strategy := NewKMeansStrategy(NewWeightedEditDistance(), DefaultKMeansConfig(), 2)

	first, err := strategy.Speciate(context.Background(), pop, 2)
	require.NoError(t, err)
	second, err := strategy.Speciate(context.Background(), pop, 2)
	require.NoError(t, err)

	// A stable population reclusters into the same partition.
	partition := func(species []*core.Species) map[core.GenomeID]uint64 {
		out := make(map[core.GenomeID]uint64)
		for _, sp := range species {
			members := sp.Members(pop)
			require.NotEmpty(t, members)
			key := members[0].Genes[0].ID
			for _, g := range members {
				out[g.ID] = key
			}
		}
		return out
	}
	assert.Equal(t, partition(first), partition(second))
}

func TestSpeciateRepairsSpeciesFloor(t *testing.T) {
	// All genomes identical: k-means naturally collapses to one cluster.
	pop := core.NewPopulation(6)
	for i := 1; i <= 6; i++ {
		pop.Add(&core.Genome{
			ID:        core.GenomeID(i),
			SpeciesID: -1,
			Genes:     []core.Gene{{ID: 1, Value: 1}},
		})
	}

	cfg := DefaultKMeansConfig()
	cfg.MinSpecies = 2
	strategy := NewKMeansStrategy(NewWeightedEditDistance(), cfg, 1)

	species, err := strategy.Speciate(context.Background(), pop, 2)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(species), 2)

	total := 0
	for _, sp := range species {
		total += sp.Size()
	}
	assert.Equal(t, 6, total)
}
