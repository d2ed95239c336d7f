package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

func runFind(cfg Config, args []string) error {
	fs := flag.NewFlagSet("find", flag.ExitOnError)
	assignment := fs.String("assignment", "", "assignment name")
	claimed := fs.Bool("claimed", false, "submissions with a grader")
	unclaimed := fs.Bool("unclaimed", false, "submissions without a grader")
	finalized := fs.Bool("finalized", false, "finalized submissions")
	unfinalized := fs.Bool("unfinalized", false, "submissions not yet finalized")
	drafts := fs.Bool("drafts", false, "claimed but not finalized")
	dummy := fs.Bool("dummy", false, "held by the configured dummy grader")
	fs.Parse(args)

	if *dummy && cfg.DummyGrader == "" {
		return invalidRequestf("-dummy requires dummy_grader in the config")
	}

	started := time.Now().UTC()
	_, asg, err := resolveAssignment(cfg, *assignment)
	if err != nil {
		return err
	}
	subs, err := FetchSubmissions(cfg, asg.ID)
	if err != nil {
		return err
	}

	var found []Submission
	for _, s := range subs {
		if *claimed && !s.Claimed() {
			continue
		}
		if *unclaimed && s.Claimed() {
			continue
		}
		if *finalized && !s.Finalized {
			continue
		}
		if *unfinalized && s.Finalized {
			continue
		}
		if *drafts && !s.Draft() {
			continue
		}
		if *dummy && !s.HeldBy(cfg.DummyGrader) {
			continue
		}
		found = append(found, s)
	}

	for _, s := range found {
		state := "unclaimed"
		switch {
		case s.Finalized:
			state = "finalized"
		case s.Claimed():
			state = "draft"
		}
		fmt.Printf("%8d  %-40s  %-10s %s\n",
			s.ID, strings.Join(s.Students, ", "), state, s.Grader)
	}

	dir, err := assignmentDir(cfg, asg.Name)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(found))
	for _, s := range found {
		ids = append(ids, s.ID)
	}
	snap := filepath.Join(dir, "found.txt")
	if err := WriteSnapshot(snap, ids); err != nil {
		return err
	}

	fmt.Printf("Found %d of %d submissions on %s\n", len(found), len(subs), asg.Name)
	recordRun(cfg, Run{
		Command:      "find",
		Assignment:   asg.Name,
		Selected:     len(found),
		SnapshotPath: snap,
		StartedAt:    started,
	}, nil)
	return nil
}
