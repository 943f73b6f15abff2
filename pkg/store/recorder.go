// Package store persists per-cycle run statistics to SQLite. The recorder
// is a plain snapshot observer: it subscribes to an engine's status channel
// and writes what it sees, so the engine never knows persistence exists.
package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jbrant/mcc-go/pkg/engine"
	"github.com/jbrant/mcc-go/pkg/errors"
	"github.com/jbrant/mcc-go/pkg/logging"
)

// Recorder writes run and cycle records to a SQLite database.
type Recorder struct {
	db        *sql.DB
	sessionID string

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewRecorder opens (creating if needed) the database at path.
func NewRecorder(path string) (*Recorder, error) {
	if path == "" {
		path = "mcc_runs.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationInvalid, "opening run database")
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	r := &Recorder{
		db:        db,
		sessionID: uuid.NewString(),
	}
	if err := r.initDB(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ConfigurationInvalid, "initializing run database")
	}

	// WAL keeps concurrent engine observers from serializing on writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ConfigurationInvalid, "enabling WAL mode")
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		logging.GetLogger().Warn(context.Background(), "failed to set synchronous pragma: %v", err)
	}

	return r, nil
}

func (r *Recorder) initDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		session_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		name TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, run_id)
	);

	CREATE TABLE IF NOT EXISTS cycles (
		run_id TEXT NOT NULL,
		generation INTEGER NOT NULL,
		evaluations INTEGER NOT NULL,
		state TEXT NOT NULL,
		population_size INTEGER NOT NULL,
		champion_id INTEGER NOT NULL,
		champion_fitness REAL NOT NULL,
		mean_complexity REAL NOT NULL,
		max_complexity REAL NOT NULL,
		archive_size INTEGER NOT NULL,
		viable_count INTEGER NOT NULL,
		recorded_at INTEGER NOT NULL,
		PRIMARY KEY (run_id, generation)
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_run ON cycles(run_id);
	`
	_, err := r.db.Exec(query)
	return err
}

// SessionID identifies this recorder's session across runs in one database.
func (r *Recorder) SessionID() string { return r.sessionID }

// RecordRun registers a run before its snapshots arrive.
func (r *Recorder) RecordRun(ctx context.Context, runID, name string) error {
	query := `INSERT OR REPLACE INTO runs (session_id, run_id, name, started_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, r.sessionID, runID, name, time.Now().UnixNano())
	if err != nil {
		return errors.Wrap(err, errors.Unknown, "recording run")
	}
	return nil
}

// RecordSnapshot persists one cycle snapshot.
func (r *Recorder) RecordSnapshot(ctx context.Context, snap engine.Snapshot) error {
	query := `
	INSERT OR REPLACE INTO cycles
		(run_id, generation, evaluations, state, population_size, champion_id,
		 champion_fitness, mean_complexity, max_complexity, archive_size,
		 viable_count, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		snap.RunID, snap.Generation, snap.Evaluations, snap.State.String(),
		snap.PopulationSize, uint64(snap.ChampionID), snap.ChampionFitness,
		snap.MeanComplexity, snap.MaxComplexity, snap.ArchiveSize,
		snap.ViableCount, time.Now().UnixNano())
	if err != nil {
		return errors.Wrap(err, errors.Unknown, "recording snapshot")
	}
	return nil
}

// Attach subscribes the recorder to an engine and consumes its snapshot
// stream until the engine resets. Call before the engine starts.
func (r *Recorder) Attach(ctx context.Context, e *engine.Engine) error {
	if err := r.RecordRun(ctx, e.ID(), e.Name()); err != nil {
		return err
	}
	ch := e.Subscribe()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		logger := logging.GetLogger()
		for snap := range ch {
			if err := r.RecordSnapshot(ctx, snap); err != nil {
				logger.Warn(ctx, "snapshot record failed: %v", err)
			}
		}
	}()
	return nil
}

// CycleCount returns the number of recorded cycles for a run.
func (r *Recorder) CycleCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycles WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.Unknown, "counting cycles")
	}
	return n, nil
}

// Close waits for attached observers to drain and closes the database.
func (r *Recorder) Close() error {
	r.wg.Wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}
