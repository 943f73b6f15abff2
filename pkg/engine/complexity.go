package engine

import "sync"

// ComplexityRegulator caps structural genome growth. While mean population
// complexity stays under the ceiling the search complexifies freely; once it
// crosses, offspring production is biased toward simplification until the
// mean falls back under the resume point.
type ComplexityRegulator struct {
	// Ceiling is the mean-complexity threshold that triggers pruning.
	// Zero disables regulation entirely.
	Ceiling float64
	// ResumeFraction of the ceiling at which complexification resumes.
	ResumeFraction float64

	mu      sync.Mutex
	pruning bool
}

// NewComplexityRegulator builds a regulator with the standard hysteresis.
func NewComplexityRegulator(ceiling float64) *ComplexityRegulator {
	return &ComplexityRegulator{
		Ceiling:        ceiling,
		ResumeFraction: 0.95,
	}
}

// Observe feeds the regulator the current mean complexity and flips phases
// as needed. Called once per cycle by the cycle strategy.
func (r *ComplexityRegulator) Observe(meanComplexity float64) {
	if r.Ceiling <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.pruning && meanComplexity > r.Ceiling {
		r.pruning = true
	} else if r.pruning && meanComplexity < r.Ceiling*r.ResumeFraction {
		r.pruning = false
	}
}

// Pruning reports whether the regulator is in its simplification phase.
func (r *ComplexityRegulator) Pruning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pruning
}
