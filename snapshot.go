package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// assignmentDir returns (and creates) the output directory for one
// assignment, namespaced by course and period.
func assignmentDir(cfg Config, assignment string) (string, error) {
	dir := filepath.Join(cfg.OutputDir, cfg.CourseSlug(), sanitizeFilename(assignment))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	return dir, nil
}

// WriteSnapshot records an ordered list of submission ids, one per line.
func WriteSnapshot(path string, ids []int64) error {
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "%d\n", id)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot, preserving order.
// Blank lines are skipped; any other non-numeric line is an error.
func ReadSnapshot(path string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var ids []int64
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, invalidRequestf("snapshot %s line %d: %q is not a submission id",
				filepath.Base(path), i+1, line)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// WriteCSV writes a header row plus records to path.
func WriteCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// sanitizeFilename replaces characters that are unsafe in file and worksheet
// names.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
