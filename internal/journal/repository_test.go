package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cutpilot/cutpilot-agent/internal/db"
)

func setupTestDB(t *testing.T) (*db.DB, *SQLiteRepository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return database, NewRepository(database)
}

func TestRepository_Config(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	got, err := repo.GetConfig(ctx, KeySessionID)
	if err != nil {
		t.Fatalf("GetConfig() error = %v", err)
	}
	if got != "" {
		t.Errorf("GetConfig() on missing key = %q, want empty", got)
	}

	for _, v := range []string{"abc", "def"} {
		if err := repo.SetConfig(ctx, KeySessionID, v); err != nil {
			t.Fatalf("SetConfig() error = %v", err)
		}
	}
	got, _ = repo.GetConfig(ctx, KeySessionID)
	if got != "def" {
		t.Errorf("GetConfig() = %q, want def", got)
	}
}

func TestRepository_RunLifecycle(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	run := &Run{ID: "run-1", SessionID: "s1", Message: "trim the silence"}
	if err := repo.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if err := repo.UpdateRunTools(ctx, "run-1", "s2", []string{"trim_silence", "add_transition"}); err != nil {
		t.Fatalf("UpdateRunTools() error = %v", err)
	}
	if err := repo.FinishRun(ctx, "run-1", StatusCompleted, "Done", ""); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	got, err := repo.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetRun() returned nil")
	}
	if got.Status != StatusCompleted || got.ResponseText != "Done" || got.Error != "" {
		t.Errorf("run = %+v", got)
	}
	if got.SessionID != "s2" {
		t.Errorf("SessionID = %q, want s2", got.SessionID)
	}
	if len(got.Tools) != 2 || got.Tools[1] != "add_transition" {
		t.Errorf("Tools = %v", got.Tools)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}

	missing, err := repo.GetRun(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetRun(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestRepository_ListRunsNewestFirst(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		run := &Run{ID: id, SessionID: "s", Message: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
	}

	runs, err := repo.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("ListRuns() ids = %v", runIDs(runs))
	}
}

func runIDs(runs []*Run) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}

func TestRepository_Commands(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	if err := repo.CreateRun(ctx, &Run{ID: "run-1", SessionID: "s", Message: "m"}); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	records := []CommandRecord{
		{Index: 0, Action: "trim_silence", Status: "review"},
		{Index: 1, Action: "add_transition", Status: "partial", Applied: 1, Failed: 1, Error: "cut index out of bounds"},
		{Index: 2, Action: "lips_sync", Status: "skipped"},
	}
	if err := repo.RecordCommands(ctx, "run-1", records); err != nil {
		t.Fatalf("RecordCommands() error = %v", err)
	}

	got, err := repo.ListCommands(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListCommands() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(commands) = %d, want 3", len(got))
	}
	if got[1].RunID != "run-1" || got[1].Applied != 1 || got[1].Error != "cut index out of bounds" {
		t.Errorf("commands[1] = %+v", got[1])
	}
}

func TestRepository_Decisions(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	if err := repo.CreateRun(ctx, &Run{ID: "run-1", SessionID: "s", Message: "m"}); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	for i, d := range []string{"confirm", "skip"} {
		rec := DecisionRecord{RunID: "run-1", Index: i, Start: float64(i), End: float64(i) + 0.5, Decision: d}
		if err := repo.RecordDecision(ctx, rec); err != nil {
			t.Fatalf("RecordDecision() error = %v", err)
		}
	}

	got, err := repo.ListDecisions(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListDecisions() error = %v", err)
	}
	if len(got) != 2 || got[0].Decision != "confirm" || got[1].Decision != "skip" || got[1].End != 1.5 {
		t.Errorf("decisions = %+v", got)
	}
}
