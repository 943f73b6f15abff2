package core

// Species is a transient grouping of genomes by genetic similarity. It holds
// member ids rather than genome pointers; the Population remains the sole
// owner of genome storage and membership is resolved through it. Species are
// recomputed every speciation cycle and never persisted.
type Species struct {
	ID int

	// Representative is a detached copy of the genome the cluster formed
	// around. A copy, not an alias: the member it was taken from may be
	// evicted between speciation cycles while the representative carries
	// over as the next cycle's seed.
	Representative *Genome

	MemberIDs []GenomeID
}

// Size returns the member count.
func (s *Species) Size() int { return len(s.MemberIDs) }

// Members resolves the species membership against the owning population.
// Ids whose genomes have since been evicted are skipped.
func (s *Species) Members(pop *Population) []*Genome {
	out := make([]*Genome, 0, len(s.MemberIDs))
	for _, id := range s.MemberIDs {
		if g := pop.Get(id); g != nil {
			out = append(out, g)
		}
	}
	return out
}
