package main

import (
	"path/filepath"
	"testing"
)

func TestFormatAllocationSummary(t *testing.T) {
	cases := []struct {
		result AllocationResult
		want   string
	}{
		{
			AllocationResult{Assignment: "Loops", Grader: "alice@school.edu", Selected: 5, Applied: 5},
			"Claim Loops for alice@school.edu: 5 selected, 5 applied",
		},
		{
			AllocationResult{Assignment: "Loops", Grader: "alice@school.edu", Selected: 5, Applied: 3, Failed: 2},
			"Claim Loops for alice@school.edu: 5 selected, 3 applied, 2 failed",
		},
		{
			AllocationResult{Assignment: "Loops", Grader: "alice@school.edu", Selected: 5, DryRun: true},
			"Claim Loops for alice@school.edu: 5 submissions selected (dry run, nothing applied)",
		},
		{
			AllocationResult{Assignment: "Loops", Selected: 2, Applied: 2, Unclaim: true},
			"Unclaim Loops: 2 selected, 2 applied",
		},
	}
	for _, tc := range cases {
		if got := FormatAllocationSummary(tc.result); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestApplyReassignmentsDryRun(t *testing.T) {
	moves := []Reassignment{
		{Submission: Submission{ID: 1}, Grader: "alice@school.edu"},
		{Submission: Submission{ID: 2, Finalized: true}, Unfinalize: true},
	}

	// Dry run must not reach the platform, so no server is configured.
	applied, items, err := applyReassignments(Config{}, moves, true)
	if err != nil {
		t.Fatalf("applyReassignments dry run failed: %v", err)
	}
	if applied != 0 {
		t.Fatalf("dry run must apply nothing, got %d", applied)
	}
	if len(items) != 2 {
		t.Fatalf("expected ledger items for every move, got %d", len(items))
	}
	if items[0].Action != "claim" || items[0].Grader != "alice@school.edu" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].Action != "unclaim" || items[1].Grader != "" {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestWriteAllocationSnapshot(t *testing.T) {
	cfg := Config{
		OutputDir: t.TempDir(),
		Course:    "COS 126",
		Period:    "F2025",
	}
	moves := []Reassignment{
		{Submission: Submission{ID: 42}},
		{Submission: Submission{ID: 7}},
	}

	path, err := writeAllocationSnapshot(cfg, "Loops", "claimed.txt", moves)
	if err != nil {
		t.Fatalf("writeAllocationSnapshot failed: %v", err)
	}
	want := filepath.Join(cfg.OutputDir, "COS 126_F2025", "Loops", "claimed.txt")
	if path != want {
		t.Fatalf("expected snapshot at %q, got %q", want, path)
	}

	ids, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != 42 || ids[1] != 7 {
		t.Fatalf("snapshot must preserve selection order, got %v", ids)
	}
}
