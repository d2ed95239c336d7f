package main

import (
	"flag"
	"fmt"
)

func runHistory(cfg Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "number of ledger rows to print")
	verbose := fs.Bool("v", false, "also print each run's touched submissions")
	fs.Parse(args)

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer db.Close()

	runs, err := GetRecentRuns(db, *limit)
	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("Ledger is empty.")
		return nil
	}

	for _, r := range runs {
		note := ""
		if r.DryRun {
			note = "  (dry run)"
		}
		fmt.Printf("%5d  %s  %-18s  %-24s  %-28s  selected %3d  applied %3d%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04"), r.Command,
			r.Assignment, r.Grader, r.Selected, r.Applied, note)
		if !*verbose {
			continue
		}
		items, err := GetRunSubmissions(db, r.ID)
		if err != nil {
			return fmt.Errorf("reading ledger: %w", err)
		}
		for _, item := range items {
			fmt.Printf("       %8d  %-12s  %s\n", item.SubmissionID, item.Action, item.Grader)
		}
	}
	return nil
}
