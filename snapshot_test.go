package main

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claimed.txt")
	ids := []int64{42, 7, 9000001}

	if err := WriteSnapshot(path, ids); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("expected %d ids, got %d", len(ids), len(got))
	}
	for i, id := range ids {
		if got[i] != id {
			t.Fatalf("id %d: expected %d, got %d", i, id, got[i])
		}
	}
}

func TestReadSnapshotSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.txt")
	content := "1\n\n  \n2\n\n3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("expected [1 2 3], got %v", got)
	}
}

func TestReadSnapshotRejectsNonNumericLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.txt")
	if err := os.WriteFile(path, []byte("1\nbogus\n3\n"), 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	_, err := ReadSnapshot(path)
	var invalid *InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}
	if !strings.Contains(invalid.Reason, "line 2") {
		t.Fatalf("error should name the offending line, got %q", invalid.Reason)
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	header := []string{"submission", "students"}
	records := [][]string{
		{"1", "alice@school.edu"},
		{"2", "bob@school.edu carol@school.edu"},
	}
	if err := WriteCSV(path, header, records); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 records, got %d rows", len(rows))
	}
	if rows[0][0] != "submission" || rows[2][1] != "bob@school.edu carol@school.edu" {
		t.Fatalf("unexpected csv contents: %v", rows)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello, World", "Hello, World"},
		{"N-Body: Part 1", "N-Body_ Part 1"},
		{`a/b\c*d?e`, "a_b_c_d_e"},
		{`<q>"|`, "_q___"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAssignmentDirCreatesNamespacedPath(t *testing.T) {
	cfg := Config{
		OutputDir: t.TempDir(),
		Course:    "COS 126",
		Period:    "F2025",
	}
	dir, err := assignmentDir(cfg, "N-Body: Part 1")
	if err != nil {
		t.Fatalf("assignmentDir failed: %v", err)
	}
	want := filepath.Join(cfg.OutputDir, "COS 126_F2025", "N-Body_ Part 1")
	if dir != want {
		t.Fatalf("expected %q, got %q", want, dir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory to exist, err=%v", err)
	}
}
