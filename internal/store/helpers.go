package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const runColumns = "r.id, r.input_path, r.output_dir, r.started_at, r.finished_at, r.status, r.error, r.fps, r.duration_ms, r.frames, r.threshold, r.image_failures, r.sink_failures, r.audio_windows, r.audio_errors, (SELECT COUNT(1) FROM shots s WHERE s.run_id = r.id)"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		outputDir   sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
		status      string
		errorText   sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.InputPath,
		&outputDir,
		&startedRaw,
		&finishedRaw,
		&status,
		&errorText,
		&run.FPS,
		&run.DurationMs,
		&run.Frames,
		&run.Threshold,
		&run.ImageFailures,
		&run.SinkFailures,
		&run.AudioWindows,
		&run.AudioErrors,
		&run.ShotCount,
	); err != nil {
		return nil, err
	}
	run.OutputDir = outputDir.String
	run.Status = Status(status)
	run.Error = errorText.String
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout is fixed-width so started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func stripLikeWildcards(value string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(value)
}

// withTx runs fn in a transaction, committing when fn succeeds.
func (s *Store) withTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}
