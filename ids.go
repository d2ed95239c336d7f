package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strconv"
	"time"
)

func runIDs(cfg Config, args []string) error {
	fs := flag.NewFlagSet("ids", flag.ExitOnError)
	assignment := fs.String("assignment", "", "assignment name")
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

	// One row per owner, so group submissions appear once per student.
	records := make([][]string, 0, len(subs))
	for _, s := range subs {
		for _, student := range s.Students {
			records = append(records, []string{strconv.FormatInt(s.ID, 10), student})
		}
	}

	dir, err := assignmentDir(cfg, asg.Name)
	if err != nil {
		return err
	}
	csvPath := filepath.Join(dir, "ids.csv")
	if err := WriteCSV(csvPath, []string{"submission", "student"}, records); err != nil {
		return err
	}

	fmt.Printf("Wrote %d rows for %d submissions to %s\n", len(records), len(subs), csvPath)
	recordRun(cfg, Run{
		Command:      "ids",
		Assignment:   asg.Name,
		Selected:     len(subs),
		SnapshotPath: csvPath,
		StartedAt:    started,
	}, nil)
	return nil
}
