package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"
)

// AllocationResult tracks what a claim or unclaim run selected and applied.
type AllocationResult struct {
	Assignment string
	Grader     string
	Selected   int
	Applied    int
	Failed     int
	DryRun     bool
	Unclaim    bool
}

// FormatAllocationSummary returns a human-readable summary of a queue
// allocation run.
func FormatAllocationSummary(r AllocationResult) string {
	var b strings.Builder
	if r.Unclaim {
		fmt.Fprintf(&b, "Unclaim %s:", r.Assignment)
	} else {
		fmt.Fprintf(&b, "Claim %s for %s:", r.Assignment, r.Grader)
	}
	if r.DryRun {
		fmt.Fprintf(&b, " %d submissions selected (dry run, nothing applied)", r.Selected)
		return b.String()
	}
	fmt.Fprintf(&b, " %d selected, %d applied", r.Selected, r.Applied)
	if r.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", r.Failed)
	}
	return b.String()
}

func runClaim(cfg Config, args []string) error {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	assignment := fs.String("assignment", "", "assignment name")
	grader := fs.String("grader", "", "grader receiving the submissions")
	dummy := fs.Bool("dummy", false, "claim for the configured dummy grader")
	from := fs.String("from", "", "draw from this grader's claims instead of the unclaimed pool")
	num := fs.Int("num", -1, "number of submissions to claim")
	percent := fs.Float64("percent", 100, "percentage of the pool to claim")
	random := fs.Bool("random", false, "select randomly instead of first-N")
	seed := fs.Int64("seed", 0, "random seed, 0 seeds from the clock")
	dryRun := fs.Bool("dry-run", false, "compute and print without touching the platform")
	fs.Parse(args)

	target := makeEmail(*grader, cfg.EmailDomain)
	if *dummy {
		if cfg.DummyGrader == "" {
			return invalidRequestf("-dummy requires dummy_grader in the config")
		}
		target = cfg.DummyGrader
	}
	if target == "" {
		return invalidRequestf("claim needs -grader or -dummy")
	}

	started := time.Now().UTC()
	course, asg, err := resolveAssignment(cfg, *assignment)
	if err != nil {
		return err
	}
	roster, err := FetchRoster(cfg, course.ID)
	if err != nil {
		return err
	}
	subs, err := FetchSubmissions(cfg, asg.ID)
	if err != nil {
		return err
	}

	req := ClaimRequest{
		Target:  target,
		Pool:    PoolUnclaimed,
		Num:     *num,
		Percent: *percent,
		Random:  *random,
		Seed:    *seed,
	}
	if *from != "" {
		req.Source = makeEmail(*from, cfg.EmailDomain)
		req.Pool = PoolGrader
	}

	moves, err := ComputeClaims(subs, roster, req)
	if err != nil {
		return err
	}
	for _, m := range moves {
		fmt.Printf("%8d  %s\n", m.Submission.ID, strings.Join(m.Submission.Students, ", "))
	}

	applied, items, applyErr := applyReassignments(cfg, moves, *dryRun)

	snap, err := writeAllocationSnapshot(cfg, asg.Name, "claimed.txt", moves)
	if err != nil {
		return err
	}

	result := AllocationResult{
		Assignment: asg.Name,
		Grader:     target,
		Selected:   len(moves),
		Applied:    applied,
		Failed:     len(moves) - applied,
		DryRun:     *dryRun,
	}
	summary := FormatAllocationSummary(result)
	fmt.Println(summary)
	if !*dryRun && applied > 0 {
		notifySlack(cfg, summary)
	}

	recordRun(cfg, Run{
		Command:      "claim",
		Assignment:   asg.Name,
		Grader:       target,
		Selected:     len(moves),
		Applied:      applied,
		DryRun:       *dryRun,
		Seed:         req.Seed,
		SnapshotPath: snap,
		StartedAt:    started,
	}, items)
	return applyErr
}

func runUnclaim(cfg Config, args []string) error {
	fs := flag.NewFlagSet("unclaim", flag.ExitOnError)
	assignment := fs.String("assignment", "", "assignment name")
	grader := fs.String("grader", "", "release this grader's claims")
	all := fs.Bool("all", false, "release claims from every grader")
	num := fs.Int("num", -1, "number of submissions to release")
	percent := fs.Float64("percent", 100, "percentage of the pool to release")
	random := fs.Bool("random", false, "select randomly instead of first-N")
	seed := fs.Int64("seed", 0, "random seed, 0 seeds from the clock")
	includeFinalized := fs.Bool("include-finalized", false, "release finalized submissions too, clearing the finalized flag")
	dryRun := fs.Bool("dry-run", false, "compute and print without touching the platform")
	fs.Parse(args)

	source := makeEmail(*grader, cfg.EmailDomain)
	if !*all && source == "" {
		return invalidRequestf("unclaim needs -grader or -all")
	}

	started := time.Now().UTC()
	course, asg, err := resolveAssignment(cfg, *assignment)
	if err != nil {
		return err
	}
	roster, err := FetchRoster(cfg, course.ID)
	if err != nil {
		return err
	}
	subs, err := FetchSubmissions(cfg, asg.ID)
	if err != nil {
		return err
	}

	req := ClaimRequest{
		Source:           source,
		Pool:             PoolGrader,
		Num:              *num,
		Percent:          *percent,
		Random:           *random,
		Seed:             *seed,
		IncludeFinalized: *includeFinalized,
	}
	if *all {
		req.Source = ""
		req.Pool = PoolAll
	}

	moves, err := ComputeClaims(subs, roster, req)
	if err != nil {
		return err
	}
	for _, m := range moves {
		note := ""
		if m.Unfinalize {
			note = "  (was finalized)"
		}
		fmt.Printf("%8d  %s%s\n", m.Submission.ID, m.Submission.Grader, note)
	}

	applied, items, applyErr := applyReassignments(cfg, moves, *dryRun)

	snap, err := writeAllocationSnapshot(cfg, asg.Name, "unclaimed.txt", moves)
	if err != nil {
		return err
	}

	result := AllocationResult{
		Assignment: asg.Name,
		Grader:     source,
		Selected:   len(moves),
		Applied:    applied,
		Failed:     len(moves) - applied,
		DryRun:     *dryRun,
		Unclaim:    true,
	}
	summary := FormatAllocationSummary(result)
	fmt.Println(summary)
	if !*dryRun && applied > 0 {
		notifySlack(cfg, summary)
	}

	recordRun(cfg, Run{
		Command:      "unclaim",
		Assignment:   asg.Name,
		Grader:       source,
		Selected:     len(moves),
		Applied:      applied,
		DryRun:       *dryRun,
		Seed:         req.Seed,
		SnapshotPath: snap,
		StartedAt:    started,
	}, items)
	return applyErr
}

// applyReassignments pushes reassignment instructions to the grading
// platform. A failure on one submission is logged and the rest proceed.
func applyReassignments(cfg Config, moves []Reassignment, dryRun bool) (int, []RunSubmission, error) {
	var firstErr error
	applied := 0
	items := make([]RunSubmission, 0, len(moves))
	for _, m := range moves {
		action := "claim"
		if m.Grader == "" {
			action = "unclaim"
		}
		items = append(items, RunSubmission{
			SubmissionID: m.Submission.ID,
			Action:       action,
			Grader:       m.Grader,
		})
		if dryRun {
			continue
		}

		if m.Unfinalize {
			if err := SetSubmissionFinalized(cfg, m.Submission.ID, false); err != nil {
				log.Printf("Error unfinalizing submission %d: %v", m.Submission.ID, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
		if err := SetSubmissionGrader(cfg, m.Submission.ID, m.Grader); err != nil {
			log.Printf("Error reassigning submission %d: %v", m.Submission.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		applied++
	}
	return applied, items, firstErr
}

// writeAllocationSnapshot records the selected submission ids under the
// assignment's output directory and returns the snapshot path.
func writeAllocationSnapshot(cfg Config, assignment, name string, moves []Reassignment) (string, error) {
	dir, err := assignmentDir(cfg, assignment)
	if err != nil {
		return "", err
	}
	ids := make([]int64, 0, len(moves))
	for _, m := range moves {
		ids = append(ids, m.Submission.ID)
	}
	path := filepath.Join(dir, name)
	if err := WriteSnapshot(path, ids); err != nil {
		return "", err
	}
	return path, nil
}
