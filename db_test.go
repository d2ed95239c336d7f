package main

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "gradebot-test.db")
	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInitDBAddsSeedColumn(t *testing.T) {
	db := newTestDB(t)

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('runs') WHERE name = 'seed'`).Scan(&count); err != nil {
		t.Fatalf("query pragma_table_info failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected seed column to exist, count=%d", count)
	}
}

func TestRunLedgerRoundTrip(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	run := Run{
		Command:      "claim",
		Course:       "COS 126",
		Period:       "F2025",
		Assignment:   "Loops",
		Grader:       "alice@school.edu",
		Selected:     5,
		Applied:      4,
		DryRun:       true,
		Seed:         42,
		SnapshotPath: "/tmp/claimed.txt",
		StartedAt:    base,
		FinishedAt:   base.Add(3 * time.Second),
	}
	id, err := InsertRun(db, run)
	if err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected a positive run id, got %d", id)
	}

	runs, err := GetRecentRuns(db, 10)
	if err != nil {
		t.Fatalf("GetRecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.ID != id {
		t.Fatalf("expected id %d, got %d", id, got.ID)
	}
	if got.Command != "claim" || got.Assignment != "Loops" || got.Grader != "alice@school.edu" {
		t.Fatalf("run fields not preserved: %+v", got)
	}
	if got.Selected != 5 || got.Applied != 4 || !got.DryRun || got.Seed != 42 {
		t.Fatalf("run counters not preserved: %+v", got)
	}
	if got.SnapshotPath != "/tmp/claimed.txt" {
		t.Fatalf("unexpected snapshot path: %q", got.SnapshotPath)
	}
	if !got.StartedAt.Equal(base) {
		t.Fatalf("expected started_at %s, got %s", base, got.StartedAt)
	}
	if !got.FinishedAt.Equal(base.Add(3 * time.Second)) {
		t.Fatalf("expected finished_at %s, got %s", base.Add(3*time.Second), got.FinishedAt)
	}
}

func TestGetRecentRunsNewestFirstWithLimit(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	for _, cmd := range []string{"claim", "audit", "stats"} {
		if _, err := InsertRun(db, Run{Command: cmd, StartedAt: now, FinishedAt: now}); err != nil {
			t.Fatalf("InsertRun %s failed: %v", cmd, err)
		}
	}

	runs, err := GetRecentRuns(db, 2)
	if err != nil {
		t.Fatalf("GetRecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(runs))
	}
	if runs[0].Command != "stats" || runs[1].Command != "audit" {
		t.Fatalf("expected newest first, got %s then %s", runs[0].Command, runs[1].Command)
	}
}

func TestRunSubmissionsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	runID, err := InsertRun(db, Run{Command: "claim", StartedAt: now, FinishedAt: now})
	if err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	inserted, err := InsertRunSubmissions(db, runID, nil)
	if err != nil {
		t.Fatalf("InsertRunSubmissions with no items failed: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("expected 0 inserted for empty batch, got %d", inserted)
	}

	items := []RunSubmission{
		{SubmissionID: 101, Action: "claim", Grader: "alice@school.edu"},
		{SubmissionID: 102, Action: "claim", Grader: "alice@school.edu"},
		{SubmissionID: 103, Action: "unclaim"},
	}
	inserted, err = InsertRunSubmissions(db, runID, items)
	if err != nil {
		t.Fatalf("InsertRunSubmissions failed: %v", err)
	}
	if inserted != 3 {
		t.Fatalf("expected inserted=3, got %d", inserted)
	}

	got, err := GetRunSubmissions(db, runID)
	if err != nil {
		t.Fatalf("GetRunSubmissions failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, item := range got {
		if item.RunID != runID {
			t.Fatalf("item %d has run id %d, want %d", i, item.RunID, runID)
		}
		if item.SubmissionID != items[i].SubmissionID {
			t.Fatalf("item %d out of order: got submission %d, want %d",
				i, item.SubmissionID, items[i].SubmissionID)
		}
	}
	if got[2].Action != "unclaim" || got[2].Grader != "" {
		t.Fatalf("unexpected final item: %+v", got[2])
	}

	other, err := GetRunSubmissions(db, runID+1)
	if err != nil {
		t.Fatalf("GetRunSubmissions for unknown run failed: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no items for another run, got %d", len(other))
	}
}

func TestRecordRunFillsCourseAndTimes(t *testing.T) {
	cfg := Config{
		DBPath: filepath.Join(t.TempDir(), "gradebot.db"),
		Course: "COS 126",
		Period: "F2025",
	}
	recordRun(cfg, Run{Command: "find", Assignment: "Loops", Selected: 2},
		[]RunSubmission{{SubmissionID: 7, Action: "find"}})

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	defer db.Close()

	runs, err := GetRecentRuns(db, 1)
	if err != nil {
		t.Fatalf("GetRecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected the recorded run, got %d rows", len(runs))
	}
	got := runs[0]
	if got.Course != "COS 126" || got.Period != "F2025" {
		t.Fatalf("expected course and period from config, got %+v", got)
	}
	if got.StartedAt.IsZero() || got.FinishedAt.IsZero() {
		t.Fatalf("expected recordRun to stamp times, got %+v", got)
	}

	items, err := GetRunSubmissions(db, got.ID)
	if err != nil {
		t.Fatalf("GetRunSubmissions failed: %v", err)
	}
	if len(items) != 1 || items[0].SubmissionID != 7 {
		t.Fatalf("expected the recorded submission, got %+v", items)
	}
}
