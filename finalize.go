package main

import (
	"flag"
	"fmt"
	"log"
	"time"
)

func runFinalize(cfg Config, args []string) error {
	fs := flag.NewFlagSet("finalize", flag.ExitOnError)
	assignment := fs.String("assignment", "", "assignment name")
	file := fs.String("file", "", "snapshot file of submission ids to finalize")
	dryRun := fs.Bool("dry-run", false, "compute and print without touching the platform")
	fs.Parse(args)

	if *file == "" {
		return invalidRequestf("finalize needs -file")
	}
	ids, err := ReadSnapshot(*file)
	if err != nil {
		return err
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
	byID := make(map[int64]Submission, len(subs))
	for _, s := range subs {
		byID[s.ID] = s
	}

	applied, skipped := 0, 0
	var firstErr error
	var items []RunSubmission
	for _, id := range ids {
		sub, ok := byID[id]
		if !ok {
			fmt.Printf("%8d  skipped: not a submission on %s\n", id, asg.Name)
			skipped++
			continue
		}
		if !sub.Claimed() {
			fmt.Printf("%8d  skipped: no grader assigned\n", id)
			skipped++
			continue
		}
		if sub.Finalized {
			fmt.Printf("%8d  skipped: already finalized\n", id)
			skipped++
			continue
		}

		items = append(items, RunSubmission{SubmissionID: id, Action: "finalize", Grader: sub.Grader})
		if *dryRun {
			continue
		}
		if err := SetSubmissionFinalized(cfg, id, true); err != nil {
			log.Printf("Error finalizing submission %d: %v", id, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		applied++
	}

	summary := fmt.Sprintf("Finalize %s: %d finalized, %d skipped of %d listed",
		asg.Name, applied, skipped, len(ids))
	if *dryRun {
		summary = fmt.Sprintf("Finalize %s: %d eligible, %d skipped of %d listed (dry run, nothing applied)",
			asg.Name, len(items), skipped, len(ids))
	}
	fmt.Println(summary)
	if !*dryRun && applied > 0 {
		notifySlack(cfg, summary)
	}

	recordRun(cfg, Run{
		Command:      "finalize",
		Assignment:   asg.Name,
		Selected:     len(items),
		Applied:      applied,
		DryRun:       *dryRun,
		SnapshotPath: *file,
		StartedAt:    started,
	}, items)
	return firstErr
}
