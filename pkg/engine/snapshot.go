package engine

import (
	"time"

	"github.com/jbrant/mcc-go/pkg/core"
)

// Snapshot is a point-in-time view of an engine published to observers on
// the configured cadence. Snapshots observe state no older than the most
// recently completed cycle.
type Snapshot struct {
	RunID string `json:"run_id"`
	Name  string `json:"name"`

	State       core.RunState `json:"state"`
	Generation  int           `json:"generation"`
	Evaluations uint64        `json:"evaluations"`

	PopulationSize  int           `json:"population_size"`
	ChampionID      core.GenomeID `json:"champion_id"`
	ChampionFitness float64       `json:"champion_fitness"`
	MeanComplexity  float64       `json:"mean_complexity"`
	MaxComplexity   float64       `json:"max_complexity"`
	SpeciesSizes    map[int]int   `json:"species_sizes,omitempty"`
	ArchiveSize     int           `json:"archive_size"`
	ViableCount     int           `json:"viable_count"`

	Time time.Time `json:"time"`
}

// CycleOutcome reports what one cycle accomplished back to the engine.
type CycleOutcome struct {
	Evaluated              int
	ViableCount            int
	StopConditionSatisfied bool
	ArchiveSize            int
	SpeciesSizes           map[int]int
}
