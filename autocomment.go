package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"
)

// CommentInstruction is one comment an autocomment run wants to apply.
type CommentInstruction struct {
	SubmissionID  int64
	FileID        int64
	FileName      string
	RubricComment RubricComment
	StartLine     int
	EndLine       int
	Reason        string
}

// EvaluateRules checks one submission's files against the configured rules
// and returns the comments to apply. A rubric comment already present on a
// file is never applied to that file again, whether it came from an earlier
// run or a grader.
func EvaluateRules(rules []AutocommentRule, rubric []RubricCategory, sub Submission, files []SubmissionFile, applied []Comment, lineLimit int) ([]CommentInstruction, error) {
	used := make(map[string]bool)
	for _, c := range applied {
		if !c.Custom() {
			used[fmt.Sprintf("%d/%d", c.FileID, c.RubricCommentID)] = true
		}
	}

	var out []CommentInstruction
	add := func(in CommentInstruction) {
		key := fmt.Sprintf("%d/%d", in.FileID, in.RubricComment.ID)
		if used[key] {
			return
		}
		used[key] = true
		in.SubmissionID = sub.ID
		out = append(out, in)
	}

	for _, rule := range rules {
		rc, err := findRubricComment(rubric, rule.Comment)
		if err != nil {
			return nil, err
		}

		switch rule.Rule {
		case "missing-file":
			for _, want := range rule.Files {
				if hasFile(files, want) {
					continue
				}
				if len(files) == 0 {
					continue
				}
				anchor := files[0]
				add(CommentInstruction{
					FileID:        anchor.ID,
					FileName:      anchor.Name,
					RubricComment: rc,
					Reason:        fmt.Sprintf("missing %s", want),
				})
			}
		case "no-comments":
			for _, f := range ruleFiles(files, rule.Files) {
				if hasCodeComments(f.Code) {
					continue
				}
				add(CommentInstruction{
					FileID:        f.ID,
					FileName:      f.Name,
					RubricComment: rc,
					Reason:        "no code comments",
				})
			}
		case "long-lines":
			for _, f := range ruleFiles(files, rule.Files) {
				line := firstLongLine(f.Code, lineLimit)
				if line == 0 {
					continue
				}
				add(CommentInstruction{
					FileID:        f.ID,
					FileName:      f.Name,
					RubricComment: rc,
					StartLine:     line,
					EndLine:       line,
					Reason:        fmt.Sprintf("line %d exceeds %d characters", line, lineLimit),
				})
			}
		default:
			return nil, invalidRequestf("unknown autocomment rule %q", rule.Rule)
		}
	}
	return out, nil
}

func findRubricComment(rubric []RubricCategory, name string) (RubricComment, error) {
	for _, cat := range rubric {
		if rc, ok := cat.CommentByName(name); ok {
			return rc, nil
		}
	}
	return RubricComment{}, invalidRequestf("rubric has no comment named %q", name)
}

func hasFile(files []SubmissionFile, name string) bool {
	for _, f := range files {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// ruleFiles returns the files a rule inspects: the named ones, or every file
// when the rule names none.
func ruleFiles(files []SubmissionFile, names []string) []SubmissionFile {
	if len(names) == 0 {
		return files
	}
	var out []SubmissionFile
	for _, f := range files {
		for _, name := range names {
			if strings.EqualFold(f.Name, name) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func hasCodeComments(code string) bool {
	return strings.Contains(code, "//") ||
		strings.Contains(code, "/*") ||
		strings.Contains(code, "#")
}

// firstLongLine returns the 1-based number of the first line longer than
// limit, or 0 when every line fits.
func firstLongLine(code string, limit int) int {
	for i, line := range strings.Split(code, "\n") {
		if len(line) > limit {
			return i + 1
		}
	}
	return 0
}

func runAutocomment(cfg Config, args []string) error {
	fs := flag.NewFlagSet("autocomment", flag.ExitOnError)
	assignment := fs.String("assignment", "", "assignment name")
	only := fs.String("rule", "", "run only this rule")
	dryRun := fs.Bool("dry-run", false, "compute and print without touching the platform")
	fs.Parse(args)

	rules := cfg.AutocommentRules
	if *only != "" {
		var filtered []AutocommentRule
		for _, r := range rules {
			if r.Rule == *only {
				filtered = append(filtered, r)
			}
		}
		if len(filtered) == 0 {
			return invalidRequestf("no configured autocomment rule named %q", *only)
		}
		rules = filtered
	}
	if len(rules) == 0 {
		return invalidRequestf("no autocomment_rules configured")
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
	appliedBySub := make(map[int64][]Comment)
	for _, c := range comments {
		appliedBySub[c.SubmissionID] = append(appliedBySub[c.SubmissionID], c)
	}

	selected, applied := 0, 0
	var firstErr error
	var items []RunSubmission
	for _, s := range subs {
		files, err := FetchFiles(cfg, s.ID)
		if err != nil {
			log.Printf("Error fetching files for submission %d: %v", s.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		instructions, err := EvaluateRules(rules, rubric, s, files, appliedBySub[s.ID], cfg.LineLimit)
		if err != nil {
			return err
		}
		for _, in := range instructions {
			selected++
			fmt.Printf("%8d  %-24s  %s (%s)\n", s.ID, in.FileName, in.RubricComment.Name, in.Reason)
			items = append(items, RunSubmission{SubmissionID: s.ID, Action: "autocomment"})
			if *dryRun {
				continue
			}
			_, err := CreateComment(cfg, Comment{
				FileID:          in.FileID,
				RubricCommentID: in.RubricComment.ID,
				StartLine:       in.StartLine,
				EndLine:         in.EndLine,
			})
			if err != nil {
				log.Printf("Error applying %s to submission %d: %v", in.RubricComment.Name, s.ID, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			applied++
		}
	}

	summary := fmt.Sprintf("Autocomment %s: %d comments applied of %d matched", asg.Name, applied, selected)
	if *dryRun {
		summary = fmt.Sprintf("Autocomment %s: %d comments matched (dry run, nothing applied)", asg.Name, selected)
	}
	fmt.Println(summary)

	recordRun(cfg, Run{
		Command:    "autocomment",
		Assignment: asg.Name,
		Selected:   selected,
		Applied:    applied,
		DryRun:     *dryRun,
		StartedAt:  started,
	}, items)
	return firstErr
}
