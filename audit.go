package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// auditCommentIDs returns the ids of every rubric comment whose short name
// is the audit marker. The marker may exist in more than one category.
func auditCommentIDs(rubric []RubricCategory, name string) map[int64]bool {
	ids := make(map[int64]bool)
	for _, cat := range rubric {
		for _, rc := range cat.Comments {
			if rc.Name == name {
				ids[rc.ID] = true
			}
		}
	}
	return ids
}

// BuildAuditRecords computes the audit count for each submission in scope.
// Scope is finalized submissions only, or every claimed submission when
// allGraded is set.
func BuildAuditRecords(subs []Submission, comments []Comment, auditIDs map[int64]bool, target int, allGraded bool) []AuditRecord {
	counts := make(map[int64]int)
	for _, c := range comments {
		if auditIDs[c.RubricCommentID] {
			counts[c.SubmissionID]++
		}
	}

	var records []AuditRecord
	for _, s := range subs {
		if allGraded {
			if !s.Claimed() {
				continue
			}
		} else if !s.Finalized {
			continue
		}
		records = append(records, AuditRecord{Submission: s, Count: counts[s.ID], Target: target})
	}
	return records
}

// SelectForAudit keeps the submissions still short of their audit target, in
// input order, stopping after limit submissions when limit is positive.
func SelectForAudit(records []AuditRecord, limit int) []AuditRecord {
	var out []AuditRecord
	for _, r := range records {
		if r.Remaining() == 0 {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// CountAuditsByAuthor tallies applied audit comments per grader.
func CountAuditsByAuthor(comments []Comment, auditIDs map[int64]bool) map[string]int {
	counts := make(map[string]int)
	for _, c := range comments {
		if auditIDs[c.RubricCommentID] {
			counts[c.Author]++
		}
	}
	return counts
}

func runAudit(cfg Config, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	assignment := fs.String("assignment", "", "assignment name")
	target := fs.Int("target", 0, "audit passes wanted per submission (0 = audit_target from config)")
	allGraded := fs.Bool("all-graded", false, "consider every claimed submission, not only finalized ones")
	limit := fs.Int("cap", 0, "stop after this many submissions, 0 = no cap")
	open := fs.Bool("open", false, "clear grader and finalized so selected submissions re-enter the queue")
	report := fs.Bool("report", false, "tally audits performed per grader instead of selecting")
	dryRun := fs.Bool("dry-run", false, "compute and print without touching the platform")
	fs.Parse(args)

	if *open && *report {
		return invalidRequestf("-open and -report are mutually exclusive")
	}
	want := cfg.AuditTarget
	if *target > 0 {
		want = *target
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
	rubric, err := FetchRubric(cfg, asg.ID)
	if err != nil {
		return err
	}
	comments, err := FetchComments(cfg, asg.ID)
	if err != nil {
		return err
	}

	auditIDs := auditCommentIDs(rubric, cfg.AuditComment)
	if len(auditIDs) == 0 {
		return invalidRequestf("rubric for %s has no comment named %q", asg.Name, cfg.AuditComment)
	}

	if *report {
		counts := CountAuditsByAuthor(comments, auditIDs)
		graders := make([]string, 0, len(counts))
		total := 0
		for g, n := range counts {
			graders = append(graders, g)
			total += n
		}
		sort.Slice(graders, func(i, j int) bool {
			if counts[graders[i]] != counts[graders[j]] {
				return counts[graders[i]] > counts[graders[j]]
			}
			return graders[i] < graders[j]
		})
		for _, g := range graders {
			fmt.Printf("%4d  %s\n", counts[g], g)
		}
		fmt.Printf("%d audits by %d graders on %s\n", total, len(graders), asg.Name)
		recordRun(cfg, Run{
			Command:    "audit",
			Assignment: asg.Name,
			Selected:   len(graders),
			StartedAt:  started,
		}, nil)
		return nil
	}

	records := BuildAuditRecords(subs, comments, auditIDs, want, *allGraded)
	selected := SelectForAudit(records, *limit)

	for _, r := range selected {
		fmt.Printf("%8d  %s  audits %d/%d\n",
			r.Submission.ID, strings.Join(r.Submission.Students, ", "), r.Count, r.Target)
	}

	dir, err := assignmentDir(cfg, asg.Name)
	if err != nil {
		return err
	}
	recs := make([][]string, 0, len(selected))
	for _, r := range selected {
		recs = append(recs, []string{
			strconv.FormatInt(r.Submission.ID, 10),
			strings.Join(r.Submission.Students, " "),
			r.Submission.Grader,
			strconv.Itoa(r.Count),
			strconv.Itoa(r.Target),
			strconv.Itoa(r.Remaining()),
		})
	}
	csvPath := filepath.Join(dir, "audit.csv")
	header := []string{"submission", "students", "grader", "audits", "target", "remaining"}
	if err := WriteCSV(csvPath, header, recs); err != nil {
		return err
	}

	applied := 0
	var firstErr error
	var items []RunSubmission
	if *open {
		for _, r := range selected {
			items = append(items, RunSubmission{
				SubmissionID: r.Submission.ID,
				Action:       "open",
				Grader:       r.Submission.Grader,
			})
			if *dryRun {
				continue
			}
			if err := SetSubmissionFinalized(cfg, r.Submission.ID, false); err != nil {
				log.Printf("Error unfinalizing submission %d: %v", r.Submission.ID, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if err := SetSubmissionGrader(cfg, r.Submission.ID, ""); err != nil {
				log.Printf("Error reopening submission %d: %v", r.Submission.ID, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			applied++
		}
	}

	summary := fmt.Sprintf("Audit %s: %d of %d in-scope submissions below target %d",
		asg.Name, len(selected), len(records), want)
	if *open {
		if *dryRun {
			summary += " (dry run, nothing reopened)"
		} else {
			summary += fmt.Sprintf(", %d reopened for audit", applied)
			notifySlack(cfg, summary)
		}
	}
	fmt.Println(summary)

	recordRun(cfg, Run{
		Command:      "audit",
		Assignment:   asg.Name,
		Selected:     len(selected),
		Applied:      applied,
		DryRun:       *dryRun,
		SnapshotPath: csvPath,
		StartedAt:    started,
	}, items)
	return firstErr
}
