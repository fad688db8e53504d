// Package journal keeps a local sqlite record of every run: one row per run
// and one row per committed step. A Run is the loop's Recorder.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/session"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Journal is an open run database.
type Journal struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens (creating if needed) the journal at path. ":memory:" gives a
// throwaway journal.
func Open(ctx context.Context, path string, logger *log.Logger) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty journal path")
	}
	if logger == nil {
		logger = log.Default()
	}
	if path != ":memory:" {
		if parent := filepath.Dir(path); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, fmt.Errorf("create journal directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pragmas := []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &Journal{db: db, logger: logger.WithPrefix("journal")}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    seed INTEGER,
    fan_goal INTEGER NOT NULL DEFAULT 0,
    started_at_ms INTEGER NOT NULL,
    finished_at_ms INTEGER,
    cause TEXT NOT NULL DEFAULT '',
    fans INTEGER NOT NULL DEFAULT 0,
    races_run INTEGER NOT NULL DEFAULT 0,
    iterations INTEGER NOT NULL DEFAULT 0,
    failures INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at_ms DESC)`,
		`
CREATE TABLE IF NOT EXISTS steps (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    turn INTEGER NOT NULL,
    turn_label TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL,
    rule TEXT NOT NULL DEFAULT '',
    reasoning TEXT NOT NULL DEFAULT '',
    mood TEXT NOT NULL DEFAULT '',
    energy INTEGER NOT NULL,
    fans INTEGER NOT NULL,
    at_ms INTEGER NOT NULL,
    PRIMARY KEY (run_id, seq)
)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RunInfo describes a run as it starts.
type RunInfo struct {
	Source  string // "agent" or "simulator"
	Seed    *int64
	FanGoal int
}

// Run is an open run record. It implements session.Recorder.
type Run struct {
	ID      string
	journal *Journal
}

var _ session.Recorder = (*Run)(nil)

// StartRun inserts a new run row.
func (j *Journal) StartRun(ctx context.Context, info RunInfo) (*Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	var seed sql.NullInt64
	if info.Seed != nil {
		seed = sql.NullInt64{Int64: *info.Seed, Valid: true}
	}
	_, err = j.db.ExecContext(ctx, `
INSERT INTO runs (id, source, seed, fan_goal, started_at_ms)
VALUES (?, ?, ?, ?, ?)`,
		id.String(), info.Source, seed, info.FanGoal, time.Now().UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	j.logger.Debug("Run started", "id", id, "source", info.Source)
	return &Run{ID: id.String(), journal: j}, nil
}

// RecordStep appends one committed step.
func (r *Run) RecordStep(ctx context.Context, step session.Step) error {
	at := step.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.journal.db.ExecContext(ctx, `
INSERT INTO steps (run_id, seq, turn, turn_label, action, rule, reasoning, mood, energy, fans, at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, step.Seq, step.Turn.Index, step.Turn.Label, step.Action.String(), step.Rule,
		step.Reasoning, step.Mood.String(), step.Energy, step.Fans, at.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("record step %d: %w", step.Seq, err)
	}
	return nil
}

// Finish stores how the run ended.
func (r *Run) Finish(ctx context.Context, result session.Result) error {
	failures := 0
	if result.Stats != nil {
		failures = result.Stats.TotalFailures()
	}
	res, err := r.journal.db.ExecContext(ctx, `
UPDATE runs
SET finished_at_ms = ?, cause = ?, fans = ?, races_run = ?, iterations = ?, failures = ?, fan_goal = ?
WHERE id = ?`,
		time.Now().UTC().UnixMilli(), result.Cause.String(), result.State.LastFans,
		result.State.RacesRun, result.State.Iterations, failures, result.State.FanGoal(), r.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", r.ID, ErrRunNotFound)
	}
	return nil
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID         string
	Source     string
	Seed       *int64
	FanGoal    int
	StartedAt  time.Time
	FinishedAt *time.Time
	Cause      string
	Fans       int
	RacesRun   int
	Iterations int
	Failures   int
	Steps      int
}

// Finished reports whether the run has a recorded end.
func (r RunSummary) Finished() bool {
	return r.FinishedAt != nil
}

const runColumns = `r.id, r.source, r.seed, r.fan_goal, r.started_at_ms, r.finished_at_ms, r.cause,
r.fans, r.races_run, r.iterations, r.failures, (SELECT COUNT(*) FROM steps s WHERE s.run_id = r.id)`

// ListRuns returns the most recent runs first. A non-positive limit returns all.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at_ms DESC, r.id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// GetRun looks up one run. A unique ID prefix is accepted.
func (j *Journal) GetRun(ctx context.Context, id string) (RunSummary, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs r WHERE r.id LIKE ? || '%' ORDER BY r.id LIMIT 2`, id)
	if err != nil {
		return RunSummary{}, err
	}
	defer rows.Close()

	var found []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return RunSummary{}, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return RunSummary{}, err
	}
	switch len(found) {
	case 0:
		return RunSummary{}, fmt.Errorf("%q: %w", id, ErrRunNotFound)
	case 1:
		return found[0], nil
	default:
		return RunSummary{}, fmt.Errorf("run ID prefix %q is ambiguous", id)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunSummary, error) {
	var (
		run      RunSummary
		seed     sql.NullInt64
		started  int64
		finished sql.NullInt64
	)
	err := row.Scan(&run.ID, &run.Source, &seed, &run.FanGoal, &started, &finished, &run.Cause,
		&run.Fans, &run.RacesRun, &run.Iterations, &run.Failures, &run.Steps)
	if err != nil {
		return RunSummary{}, err
	}
	if seed.Valid {
		run.Seed = &seed.Int64
	}
	run.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		run.FinishedAt = &t
	}
	return run, nil
}

// StepRecord is one row of the steps table.
type StepRecord struct {
	Seq       int
	Turn      career.Turn
	Action    string
	Rule      string
	Reasoning string
	Mood      string
	Energy    int
	Fans      int
	At        time.Time
}

// Steps returns the steps of a run in commit order.
func (j *Journal) Steps(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT seq, turn, turn_label, action, rule, reasoning, mood, energy, fans, at_ms
FROM steps WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var (
			s  StepRecord
			at int64
		)
		if err := rows.Scan(&s.Seq, &s.Turn.Index, &s.Turn.Label, &s.Action, &s.Rule, &s.Reasoning,
			&s.Mood, &s.Energy, &s.Fans, &at); err != nil {
			return nil, err
		}
		s.At = time.UnixMilli(at).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}
