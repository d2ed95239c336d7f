package main

import (
	"fmt"
	"os"
)

const usageText = `Usage: gradebot <command> [flags]

Commands:
  claim              Assign unclaimed submissions to a grader
  unclaim            Return claimed submissions to the queue
  find               List submissions matching state filters
  failed             List submissions whose test results fall short
  finalize           Finalize the submissions named in a snapshot file
  audit              Select finalized submissions below the audit target
  stats              Show queue progress per assignment
  rubric-to-sheet    Export assignment rubrics to the spreadsheet
  rubric-from-sheet  Apply spreadsheet rubric edits to the grading platform
  reports            Build per-student comment usage reports
  tier-report        Tally comment tiers per submission
  autocomment        Apply rule-driven rubric comments to submissions
  ids                Export submission and student ids
  history            Show recent runs from the ledger

Run 'gradebot <command> -h' to see the flags a command accepts.
`

func usage() {
	fmt.Fprint(os.Stderr, usageText)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]
	switch cmd {
	case "help", "-h", "--help":
		fmt.Print(usageText)
		return
	}

	cfg := LoadConfig()
	ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)

	args := os.Args[2:]
	var err error
	switch cmd {
	case "claim":
		err = runClaim(cfg, args)
	case "unclaim":
		err = runUnclaim(cfg, args)
	case "find":
		err = runFind(cfg, args)
	case "failed":
		err = runFailed(cfg, args)
	case "finalize":
		err = runFinalize(cfg, args)
	case "audit":
		err = runAudit(cfg, args)
	case "stats":
		err = runStats(cfg, args)
	case "rubric-to-sheet":
		err = runRubricToSheet(cfg, args)
	case "rubric-from-sheet":
		err = runRubricFromSheet(cfg, args)
	case "reports":
		err = runReports(cfg, args)
	case "tier-report":
		err = runTierReport(cfg, args)
	case "autocomment":
		err = runAutocomment(cfg, args)
	case "ids":
		err = runIDs(cfg, args)
	case "history":
		err = runHistory(cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "gradebot: unknown command %q\n\n", cmd)
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "gradebot %s: %v\n", cmd, err)
		os.Exit(1)
	}
}
