package core

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/jbrant/mcc-go/pkg/errors"
)

// FactoryConfig controls random genome creation and mutation behavior.
type FactoryConfig struct {
	// InitialGeneCount is the structural size of freshly seeded genomes.
	InitialGeneCount int
	// ValueRange bounds initial gene values in [-ValueRange, +ValueRange].
	ValueRange float64
	// MutatePerturbProb is the per-gene probability of a value perturbation.
	MutatePerturbProb float64
	// PerturbScale is the standard deviation of value perturbations.
	PerturbScale float64
	// AddGeneProb is the probability an offspring gains a new structural gene.
	AddGeneProb float64
	// RemoveGeneProb is the probability an offspring loses a structural gene.
	RemoveGeneProb float64
}

// DefaultFactoryConfig returns sane defaults for the built-in vector domain.
func DefaultFactoryConfig() FactoryConfig {
	return FactoryConfig{
		InitialGeneCount:  4,
		ValueRange:        5.0,
		MutatePerturbProb: 0.8,
		PerturbScale:      0.5,
		AddGeneProb:       0.05,
		RemoveGeneProb:    0.02,
	}
}

// Factory is the default GenomeFactory. It owns the genome-id and gene-id
// sequences for a run; both are reset together so a discarded bootstrap
// attempt cannot leak identifiers into its successor.
type Factory struct {
	config FactoryConfig

	genomeSeq atomic.Uint64
	geneSeq   atomic.Uint64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFactory creates a factory seeded for reproducible runs.
func NewFactory(config FactoryConfig, seed int64) *Factory {
	return &Factory{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (f *Factory) nextGenomeID() GenomeID {
	return GenomeID(f.genomeSeq.Add(1))
}

func (f *Factory) nextGeneID() uint64 {
	return f.geneSeq.Add(1)
}

// Reset discards the id sequences. The rng is deliberately left alone so
// restarted bootstrap attempts explore different random populations.
func (f *Factory) Reset() {
	f.genomeSeq.Store(0)
	f.geneSeq.Store(0)
}

// CreateRandom seeds n fresh genomes with random gene values.
func (f *Factory) CreateRandom(n int, generation int) []*Genome {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*Genome, 0, n)
	for i := 0; i < n; i++ {
		genes := make([]Gene, f.config.InitialGeneCount)
		for j := range genes {
			genes[j] = Gene{
				ID:    f.nextGeneID(),
				Value: (f.rng.Float64()*2 - 1) * f.config.ValueRange,
			}
		}
		out = append(out, &Genome{
			ID:              f.nextGenomeID(),
			SpeciesID:       -1,
			BirthGeneration: generation,
			Genes:           genes,
		})
	}
	return out
}

// CreateOffspring produces one child from one or two parents. With two
// parents, genes are aligned by structural id: matched genes take the value
// of a randomly chosen parent, unmatched genes are inherited from the fitter
// parent. The child is then mutated subject to opts.
func (f *Factory) CreateOffspring(parents []*Genome, generation int, opts OffspringOptions) (*Genome, error) {
	if len(parents) == 0 {
		return nil, errors.New(errors.InvalidInput, "offspring requires at least one parent")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var genes []Gene
	if len(parents) == 1 || opts.Asexual {
		genes = cloneGenes(parents[0].Genes)
	} else {
		genes = f.crossover(parents[0], parents[1])
	}

	child := &Genome{
		ID:              f.nextGenomeID(),
		SpeciesID:       -1,
		BirthGeneration: generation,
		Genes:           genes,
	}
	f.mutate(child, opts)
	return child, nil
}

func (f *Factory) crossover(a, b *Genome) []Gene {
	// The fitter parent donates its disjoint genes.
	fitter, other := a, b
	if b.Eval.Fitness > a.Eval.Fitness {
		fitter, other = b, a
	}

	otherByID := make(map[uint64]Gene, len(other.Genes))
	for _, g := range other.Genes {
		otherByID[g.ID] = g
	}

	genes := make([]Gene, 0, len(fitter.Genes))
	for _, g := range fitter.Genes {
		if match, ok := otherByID[g.ID]; ok && f.rng.Intn(2) == 0 {
			genes = append(genes, match)
			continue
		}
		genes = append(genes, g)
	}
	return genes
}

func (f *Factory) mutate(g *Genome, opts OffspringOptions) {
	for i := range g.Genes {
		if f.rng.Float64() < f.config.MutatePerturbProb {
			g.Genes[i].Value += f.rng.NormFloat64() * f.config.PerturbScale
		}
	}

	removeProb := f.config.RemoveGeneProb
	if opts.PreferSimplification {
		// Pruning phase: structural removal dominates.
		removeProb = f.config.RemoveGeneProb + f.config.AddGeneProb
	}
	if len(g.Genes) > 1 && f.rng.Float64() < removeProb {
		i := f.rng.Intn(len(g.Genes))
		g.Genes = append(g.Genes[:i], g.Genes[i+1:]...)
	}

	if opts.AllowStructuralGrowth && !opts.PreferSimplification && f.rng.Float64() < f.config.AddGeneProb {
		g.Genes = append(g.Genes, Gene{
			ID:    f.nextGeneID(),
			Value: (f.rng.Float64()*2 - 1) * f.config.ValueRange,
		})
	}
}

func cloneGenes(genes []Gene) []Gene {
	out := make([]Gene, len(genes))
	copy(out, genes)
	return out
}
