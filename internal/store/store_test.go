package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"shotdetect/internal/shot"
	"shotdetect/internal/store"
	"shotdetect/internal/testsupport"
)

func TestCreateAndFinishRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run, err := st.CreateRun(ctx, store.NewRun{
		ID:         "2f1c7a52-0000-4000-8000-000000000001",
		InputPath:  "/media/clip.mkv",
		OutputDir:  "/out/clip",
		StartedAt:  started,
		FPS:        25,
		DurationMs: 12000,
		Threshold:  60,
	})
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if run.Status != store.StatusRunning || run.FinishedAt != nil {
		t.Fatalf("unexpected new run: %#v", run)
	}
	if !run.StartedAt.Equal(started) {
		t.Fatalf("started_at = %v, want %v", run.StartedAt, started)
	}

	shots := []shot.Shot{
		{ID: 0, StartFrame: 0, DurationFrames: 150, DurationMs: 6000, BeginImage: "/out/clip/images/shot_0_begin.png"},
		{ID: 1, StartFrame: 150, StartMs: 6000, DurationFrames: 150, DurationMs: 6000},
	}
	err = st.FinishRun(ctx, run.ID, store.Outcome{
		Status:        store.StatusCompleted,
		FinishedAt:    started.Add(time.Minute),
		Frames:        300,
		ImageFailures: 1,
		AudioWindows:  12,
		Shots:         shots,
	})
	if err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	fetched, err := st.GetRun(ctx, run.ID[:8])
	if err != nil {
		t.Fatalf("GetRun by prefix failed: %v", err)
	}
	if fetched.Status != store.StatusCompleted || fetched.Frames != 300 || fetched.ShotCount != 2 {
		t.Fatalf("unexpected finished run: %#v", fetched)
	}
	if fetched.ImageFailures != 1 || fetched.AudioWindows != 12 || fetched.OutputDir != "/out/clip" {
		t.Fatalf("counters not persisted: %#v", fetched)
	}
	if fetched.FinishedAt == nil || !fetched.FinishedAt.Equal(started.Add(time.Minute)) {
		t.Fatalf("finished_at = %v", fetched.FinishedAt)
	}

	got, err := st.ListShots(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListShots failed: %v", err)
	}
	if len(got) != 2 || got[0] != shots[0] || got[1] != shots[1] {
		t.Fatalf("shots mismatch: %#v", got)
	}
}

func TestFinishRunReplacesShotsAndKeepsPartialListOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, store.NewRun{ID: "run-a", InputPath: "/a.mkv", Threshold: 10})
	if err != nil {
		t.Fatal(err)
	}
	err = st.FinishRun(ctx, run.ID, store.Outcome{
		Status: store.StatusFailed,
		Error:  "fatal stream error: decode",
		Frames: 40,
		Shots:  []shot.Shot{{ID: 0, DurationFrames: 20}},
	})
	if err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	fetched, err := st.GetRun(ctx, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != store.StatusFailed || fetched.Error == "" || fetched.ShotCount != 1 {
		t.Fatalf("unexpected failed run: %#v", fetched)
	}

	if err := st.FinishRun(ctx, run.ID, store.Outcome{Status: store.StatusRejected}); err != nil {
		t.Fatalf("second FinishRun failed: %v", err)
	}
	shots, err := st.ListShots(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(shots) != 0 {
		t.Fatalf("expected shots to be replaced, got %#v", shots)
	}
}

func TestFinishRunValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.FinishRun(ctx, "missing", store.Outcome{Status: store.StatusCompleted}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.FinishRun(ctx, "missing", store.Outcome{Status: store.StatusRunning}); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
	if _, err := st.CreateRun(ctx, store.NewRun{InputPath: "/x"}); err == nil {
		t.Fatal("expected error when id is missing")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		_, err := st.CreateRun(ctx, store.NewRun{
			ID:        id,
			InputPath: "/in/" + id,
			StartedAt: base.Add(time.Duration(i) * 500 * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("CreateRun %s: %v", id, err)
		}
	}
	runs, err := st.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "third" || runs[1].ID != "second" {
		t.Fatalf("unexpected order: %v, %v", runs[0].ID, runs[1].ID)
	}

	if err := st.DeleteRun(ctx, "third"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := st.GetRun(ctx, "third"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted run to be missing, got %v", err)
	}
}

func TestGetRunAmbiguousPrefix(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"abc-1", "abc-2"} {
		if _, err := st.CreateRun(ctx, store.NewRun{ID: id, InputPath: "/in"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := st.GetRun(ctx, "abc"); err == nil {
		t.Fatal("expected ambiguous prefix error")
	}
	run, err := st.GetRun(ctx, "abc-2")
	if err != nil || run.ID != "abc-2" {
		t.Fatalf("exact lookup failed: %v %#v", err, run)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite", cfg.Paths.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestSchemaVersionReportsCurrentVersion(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	version, err := st.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 1 {
		t.Fatalf("version = %d, want 1", version)
	}
}
