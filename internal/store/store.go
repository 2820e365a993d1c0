package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shotdetect/internal/config"
	"shotdetect/internal/shot"
)

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// ErrNotFound reports a run id with no matching row.
var ErrNotFound = errors.New("run not found")

// Open initializes or connects to the run database at cfg.Paths.DatabasePath.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(context.Background(), cfg.Paths.DatabasePath)
}

// OpenPath opens the database file at path.
func OpenPath(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateRun inserts a run in the running state.
func (s *Store) CreateRun(ctx context.Context, run NewRun) (*Run, error) {
	if strings.TrimSpace(run.ID) == "" {
		return nil, errors.New("run id is required")
	}
	if strings.TrimSpace(run.InputPath) == "" {
		return nil, errors.New("input path is required")
	}
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (
            id, input_path, output_dir, started_at, status, fps, duration_ms, threshold
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.InputPath,
		nullableString(run.OutputDir),
		formatTime(started),
		StatusRunning,
		run.FPS,
		run.DurationMs,
		run.Threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, run.ID)
}

// FinishRun records the run outcome and replaces its shot list atomically.
func (s *Store) FinishRun(ctx context.Context, id string, out Outcome) error {
	if !out.Status.Finished() {
		return fmt.Errorf("finish run %s: status %q is not terminal", id, out.Status)
	}
	finished := out.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	return s.withTx(ctx, "finish run", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE runs SET
                finished_at = ?, status = ?, error = ?, frames = ?,
                image_failures = ?, sink_failures = ?, audio_windows = ?, audio_errors = ?
            WHERE id = ?`,
			formatTime(finished),
			out.Status,
			nullableString(out.Error),
			out.Frames,
			out.ImageFailures,
			out.SinkFailures,
			out.AudioWindows,
			out.AudioErrors,
			id,
		)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
		}
		return replaceShots(ctx, tx, id, out.Shots)
	})
}

func replaceShots(ctx context.Context, tx *sql.Tx, runID string, shots []shot.Shot) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM shots WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("clear shots: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO shots (
            run_id, shot_id, start_frame, start_ms, duration_frames, duration_ms, begin_image, end_image
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare shot insert: %w", err)
	}
	defer stmt.Close()
	for _, sh := range shots {
		if _, err := stmt.ExecContext(ctx,
			runID,
			sh.ID,
			sh.StartFrame,
			sh.StartMs,
			sh.DurationFrames,
			sh.DurationMs,
			nullableString(sh.BeginImage),
			nullableString(sh.EndImage),
		); err != nil {
			return fmt.Errorf("insert shot %d: %w", sh.ID, err)
		}
	}
	return nil
}

// GetRun fetches a run by id, accepting any unique id prefix.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("get run: %w", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs r WHERE r.id = ? OR r.id LIKE ? ORDER BY r.id = ? DESC LIMIT 2`,
		id, stripLikeWildcards(id)+"%", id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch {
	case len(runs) == 0:
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	case runs[0].ID == id || len(runs) == 1:
		return runs[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// ListRuns returns runs newest first. A limit of zero returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC, r.id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListShots returns the stored shots of a run ordered by shot id.
func (s *Store) ListShots(ctx context.Context, runID string) ([]shot.Shot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT shot_id, start_frame, start_ms, duration_frames, duration_ms, begin_image, end_image
        FROM shots WHERE run_id = ? ORDER BY shot_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list shots: %w", err)
	}
	defer rows.Close()
	shots := []shot.Shot{}
	for rows.Next() {
		var (
			sh    shot.Shot
			begin sql.NullString
			end   sql.NullString
		)
		if err := rows.Scan(&sh.ID, &sh.StartFrame, &sh.StartMs, &sh.DurationFrames, &sh.DurationMs, &begin, &end); err != nil {
			return nil, fmt.Errorf("scan shot: %w", err)
		}
		sh.BeginImage = begin.String
		sh.EndImage = end.String
		shots = append(shots, sh)
	}
	return shots, rows.Err()
}

// DeleteRun removes a run and its shots.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete run %s: %w", id, ErrNotFound)
	}
	return nil
}
