package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type testTally struct {
	Passed int
	Total  int
}

// testSummary is one submission's automated test outcome.
type testSummary struct {
	Passed      int
	Total       int
	PerCategory map[string]*testTally
}

// summarizeTests groups test results per submission with per-category pass
// tallies. Submissions without results have no entry.
func summarizeTests(results []TestResult) map[int64]*testSummary {
	out := make(map[int64]*testSummary)
	for _, r := range results {
		s := out[r.SubmissionID]
		if s == nil {
			s = &testSummary{PerCategory: make(map[string]*testTally)}
			out[r.SubmissionID] = s
		}
		t := s.PerCategory[r.Category]
		if t == nil {
			t = &testTally{}
			s.PerCategory[r.Category] = t
		}
		s.Total++
		t.Total++
		if r.Passed {
			s.Passed++
			t.Passed++
		}
	}
	return out
}

// assignmentTestCount counts the distinct tests seen across the assignment.
func assignmentTestCount(results []TestResult) int {
	seen := make(map[string]bool)
	for _, r := range results {
		seen[r.Category+"\x00"+r.Name] = true
	}
	return len(seen)
}

func (s *testSummary) categoryLine() string {
	cats := make([]string, 0, len(s.PerCategory))
	for name := range s.PerCategory {
		cats = append(cats, name)
	}
	sort.Strings(cats)
	parts := make([]string, 0, len(cats))
	for _, name := range cats {
		t := s.PerCategory[name]
		parts = append(parts, fmt.Sprintf("%s %d/%d", name, t.Passed, t.Total))
	}
	return strings.Join(parts, ", ")
}

func runFailed(cfg Config, args []string) error {
	fs := flag.NewFlagSet("failed", flag.ExitOnError)
	assignment := fs.String("assignment", "", "assignment name")
	cutoff := fs.Int("cutoff", -1, "passes needed to be excluded (-1 = every test must pass)")
	fs.Parse(args)

	started := time.Now().UTC()
	_, asg, err := resolveAssignment(cfg, *assignment)
	if err != nil {
		return err
	}
	subs, err := FetchSubmissions(cfg, asg.ID)
	if err != nil {
		return err
	}
	results, err := FetchTestResults(cfg, asg.ID)
	if err != nil {
		return err
	}

	want := assignmentTestCount(results)
	if *cutoff >= 0 {
		want = *cutoff
	}

	summaries := summarizeTests(results)
	var failed []Submission
	for _, s := range subs {
		sum := summaries[s.ID]
		if sum == nil {
			failed = append(failed, s)
			fmt.Printf("%8d  %-40s  no tests ran\n", s.ID, strings.Join(s.Students, ", "))
			continue
		}
		if sum.Passed < want {
			failed = append(failed, s)
			fmt.Printf("%8d  %-40s  passed %d/%d  (%s)\n",
				s.ID, strings.Join(s.Students, ", "), sum.Passed, sum.Total, sum.categoryLine())
		}
	}

	dir, err := assignmentDir(cfg, asg.Name)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(failed))
	for _, s := range failed {
		ids = append(ids, s.ID)
	}
	snap := filepath.Join(dir, "failed.txt")
	if err := WriteSnapshot(snap, ids); err != nil {
		return err
	}

	fmt.Printf("%d of %d submissions on %s below %d passed tests\n",
		len(failed), len(subs), asg.Name, want)
	recordRun(cfg, Run{
		Command:      "failed",
		Assignment:   asg.Name,
		Selected:     len(failed),
		SnapshotPath: snap,
		StartedAt:    started,
	}, nil)
	return nil
}
