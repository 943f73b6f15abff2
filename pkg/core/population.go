package core

import (
	"sort"
)

// Population is an ordered collection of genomes with a target size
// invariant: outside of transient offspring-production windows its size is
// held at TargetSize. A Population is owned by a single engine and mutated
// only between cycles on the engine's worker goroutine; it performs no
// internal locking.
type Population struct {
	members    []*Genome
	targetSize int
	index      map[GenomeID]int
}

// NewPopulation creates an empty population with the given target size.
func NewPopulation(targetSize int) *Population {
	return &Population{
		members:    make([]*Genome, 0, targetSize),
		targetSize: targetSize,
		index:      make(map[GenomeID]int, targetSize),
	}
}

// TargetSize returns the size the population is maintained at.
func (p *Population) TargetSize() int { return p.targetSize }

// Len returns the current member count.
func (p *Population) Len() int { return len(p.members) }

// Members returns the backing slice. Callers must not mutate membership
// through it; it exists so evaluators and speciators can scan in place.
func (p *Population) Members() []*Genome { return p.members }

// Get resolves a genome by id, or nil if it is not a member.
func (p *Population) Get(id GenomeID) *Genome {
	i, ok := p.index[id]
	if !ok {
		return nil
	}
	return p.members[i]
}

// Add takes ownership of a genome.
func (p *Population) Add(g *Genome) {
	p.index[g.ID] = len(p.members)
	p.members = append(p.members, g)
}

// AddAll takes ownership of all given genomes.
func (p *Population) AddAll(genomes []*Genome) {
	for _, g := range genomes {
		p.Add(g)
	}
}

// Remove releases ownership of the genome with the given id and returns it,
// or nil if it was not a member.
func (p *Population) Remove(id GenomeID) *Genome {
	i, ok := p.index[id]
	if !ok {
		return nil
	}
	g := p.members[i]
	last := len(p.members) - 1
	p.members[i] = p.members[last]
	p.index[p.members[i].ID] = i
	p.members = p.members[:last]
	delete(p.index, id)
	return g
}

// ReplaceAll discards current membership and takes ownership of the given
// genomes. Used by generational replacement.
func (p *Population) ReplaceAll(genomes []*Genome) {
	p.members = p.members[:0]
	p.index = make(map[GenomeID]int, len(genomes))
	p.AddAll(genomes)
}

// Champion returns the member with the highest fitness, or nil for an empty
// population.
func (p *Population) Champion() *Genome {
	var best *Genome
	for _, g := range p.members {
		if best == nil || g.Eval.Fitness > best.Eval.Fitness {
			best = g
		}
	}
	return best
}

// WorstIDs returns the ids of the n members with the lowest fitness, oldest
// first among ties, which is the replacement order for steady-state batches.
func (p *Population) WorstIDs(n int) []GenomeID {
	ranked := make([]*Genome, len(p.members))
	copy(ranked, p.members)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Eval.Fitness != ranked[j].Eval.Fitness {
			return ranked[i].Eval.Fitness < ranked[j].Eval.Fitness
		}
		return ranked[i].BirthGeneration < ranked[j].BirthGeneration
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	ids := make([]GenomeID, 0, n)
	for _, g := range ranked[:n] {
		ids = append(ids, g.ID)
	}
	return ids
}

// MeanComplexity returns the mean structural size across members.
func (p *Population) MeanComplexity() float64 {
	if len(p.members) == 0 {
		return 0
	}
	var sum float64
	for _, g := range p.members {
		sum += g.Complexity()
	}
	return sum / float64(len(p.members))
}

// MaxComplexity returns the largest structural size across members.
func (p *Population) MaxComplexity() float64 {
	var max float64
	for _, g := range p.members {
		if c := g.Complexity(); c > max {
			max = c
		}
	}
	return max
}
