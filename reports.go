package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// GroupBy selects the report key: the submission's owners or the comment's
// author.
type GroupBy int

const (
	GroupByStudent GroupBy = iota
	GroupByGrader
)

// UsageRow is one report group's comment usage.
type UsageRow struct {
	PerCategory   map[string]int
	TotalComments int
	TotalPoints   float64
}

// Aggregate tallies applied comments per student or per grader. Owners maps
// submission ids to their students; a comment on a group submission counts
// once per owner. Freehand comments, and comments whose template no longer
// exists, land in the "custom" category. Output is independent of comment
// order.
func Aggregate(comments []Comment, owners map[int64][]string, rubric []RubricCategory, groupBy GroupBy) map[string]*UsageRow {
	catOf := commentCategories(rubric)

	out := make(map[string]*UsageRow)
	add := func(key string, c Comment) {
		row := out[key]
		if row == nil {
			row = &UsageRow{PerCategory: make(map[string]int)}
			out[key] = row
		}
		cat := "custom"
		if name, ok := catOf[c.RubricCommentID]; ok {
			cat = name
		}
		row.PerCategory[cat]++
		row.TotalComments++
		row.TotalPoints += c.PointDelta
	}

	for _, c := range comments {
		switch groupBy {
		case GroupByGrader:
			if c.Author != "" {
				add(c.Author, c)
			}
		default:
			for _, student := range owners[c.SubmissionID] {
				add(student, c)
			}
		}
	}
	return out
}

// TierTally maps tier labels to comment counts.
type TierTally map[string]int

// AggregateTiers counts each group's comments by tier label: "T<n>" for
// tiered rubric comments, "none" for untiered ones, "custom" for freehand
// comments.
func AggregateTiers(comments []Comment, owners map[int64][]string, rubric []RubricCategory, groupBy GroupBy) map[string]TierTally {
	tierOf := commentTiers(rubric)

	out := make(map[string]TierTally)
	add := func(key string, c Comment) {
		t := out[key]
		if t == nil {
			t = make(TierTally)
			out[key] = t
		}
		t[tierLabel(c, tierOf)]++
	}

	for _, c := range comments {
		switch groupBy {
		case GroupByGrader:
			if c.Author != "" {
				add(c.Author, c)
			}
		default:
			for _, student := range owners[c.SubmissionID] {
				add(student, c)
			}
		}
	}
	return out
}

func commentCategories(rubric []RubricCategory) map[int64]string {
	out := make(map[int64]string)
	for _, cat := range rubric {
		for _, rc := range cat.Comments {
			out[rc.ID] = cat.Name
		}
	}
	return out
}

func commentTiers(rubric []RubricCategory) map[int64]int {
	out := make(map[int64]int)
	for _, cat := range rubric {
		for _, rc := range cat.Comments {
			out[rc.ID] = rc.Tier
		}
	}
	return out
}

// commentLabels maps rubric comment ids to "Category/name" display labels.
func commentLabels(rubric []RubricCategory) map[int64]string {
	out := make(map[int64]string)
	for _, cat := range rubric {
		for _, rc := range cat.Comments {
			out[rc.ID] = cat.Name + "/" + rc.Name
		}
	}
	return out
}

func tierLabel(c Comment, tierOf map[int64]int) string {
	if c.Custom() {
		return "custom"
	}
	tier, ok := tierOf[c.RubricCommentID]
	if !ok || tier == 0 {
		return "none"
	}
	return fmt.Sprintf("T%d", tier)
}

func containsStudent(students []string, student string) bool {
	for _, s := range students {
		if strings.EqualFold(s, student) {
			return true
		}
	}
	return false
}

// AssignmentData bundles one assignment's fetched state for reporting.
type AssignmentData struct {
	Assignment Assignment
	Rubric     []RubricCategory
	Comments   []Comment
	Owners     map[int64][]string
}

// submissionOwners indexes submissions by id to their owning students.
func submissionOwners(subs []Submission) map[int64][]string {
	out := make(map[int64][]string, len(subs))
	for _, s := range subs {
		out[s.ID] = s.Students
	}
	return out
}

// BuildStudentReports renders one usage report per student across the given
// assignments, with SUMMARY, BY ASSIGNMENT and BY COMMENT sections.
func BuildStudentReports(data []AssignmentData, generated time.Time) map[string]string {
	students := make(map[string]bool)
	for _, d := range data {
		for _, owners := range d.Owners {
			for _, s := range owners {
				students[s] = true
			}
		}
	}

	// Per-assignment aggregates are shared across every student's report.
	perAsg := make([]map[string]*UsageRow, len(data))
	for i, d := range data {
		perAsg[i] = Aggregate(d.Comments, d.Owners, d.Rubric, GroupByStudent)
	}

	reports := make(map[string]string, len(students))
	for student := range students {
		var b strings.Builder
		fmt.Fprintf(&b, "REPORT FOR %s\nGenerated %s\n\n", student, generated.Format("2006-01-02"))

		totalComments, totalCustom := 0, 0
		totalPoints := 0.0
		var asgLines []string
		commentCounts := make(map[string]int)
		commentPoints := make(map[string]float64)

		for i, d := range data {
			row := perAsg[i][student]
			if row != nil {
				asgLines = append(asgLines, fmt.Sprintf("  %-28s  %3d comments  %+.1f points",
					d.Assignment.Name, row.TotalComments, row.TotalPoints))
				totalComments += row.TotalComments
				totalPoints += row.TotalPoints
				totalCustom += row.PerCategory["custom"]
			}

			labels := commentLabels(d.Rubric)
			for _, c := range d.Comments {
				if !containsStudent(d.Owners[c.SubmissionID], student) {
					continue
				}
				label, ok := labels[c.RubricCommentID]
				if !ok {
					label = "custom"
				}
				commentCounts[label]++
				commentPoints[label] += c.PointDelta
			}
		}

		fmt.Fprintf(&b, "SUMMARY\n  assignments with comments: %d\n  comments: %d (%d rubric, %d custom)\n  points: %+.1f\n\n",
			len(asgLines), totalComments, totalComments-totalCustom, totalCustom, totalPoints)

		b.WriteString("BY ASSIGNMENT\n")
		for _, line := range asgLines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')

		b.WriteString("BY COMMENT\n")
		labels := make([]string, 0, len(commentCounts))
		for label := range commentCounts {
			labels = append(labels, label)
		}
		sort.Slice(labels, func(i, j int) bool {
			if commentCounts[labels[i]] != commentCounts[labels[j]] {
				return commentCounts[labels[i]] > commentCounts[labels[j]]
			}
			return labels[i] < labels[j]
		})
		for _, label := range labels {
			fmt.Fprintf(&b, "  %3d  %-40s  %+.1f points\n", commentCounts[label], label, commentPoints[label])
		}

		reports[student] = b.String()
	}
	return reports
}

func runReports(cfg Config, args []string) error {
	fs := flag.NewFlagSet("reports", flag.ExitOnError)
	through := fs.String("through", "", "include assignments up to and including this one (default: all)")
	byGrader := fs.Bool("by-grader", false, "print per-grader usage instead of writing student reports")
	apply := fs.Bool("apply", false, "upload each report as REPORT.txt on the student's latest submission")
	fs.Parse(args)

	started := time.Now().UTC()
	course, err := FetchCourse(cfg)
	if err != nil {
		return err
	}
	assignments := append([]Assignment(nil), course.Assignments...)
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].SortKey < assignments[j].SortKey
	})
	if *through != "" {
		cut := -1
		for i, a := range assignments {
			if strings.EqualFold(a.Name, *through) {
				cut = i
				break
			}
		}
		if cut == -1 {
			return &UnknownAssignmentError{Assignment: *through, Course: course.Name}
		}
		assignments = assignments[:cut+1]
	}
	if len(assignments) == 0 {
		return invalidRequestf("course %s has no assignments", course.Name)
	}

	var data []AssignmentData
	lastSubs := make(map[string]int64)
	for i, a := range assignments {
		subs, err := FetchSubmissions(cfg, a.ID)
		if err != nil {
			return err
		}
		rubric, err := FetchRubric(cfg, a.ID)
		if err != nil {
			return err
		}
		comments, err := FetchComments(cfg, a.ID)
		if err != nil {
			return err
		}
		data = append(data, AssignmentData{
			Assignment: a,
			Rubric:     rubric,
			Comments:   comments,
			Owners:     submissionOwners(subs),
		})
		if i == len(assignments)-1 {
			for _, s := range subs {
				for _, student := range s.Students {
					lastSubs[strings.ToLower(student)] = s.ID
				}
			}
		}
	}

	if *byGrader {
		merged := make(map[string]*UsageRow)
		for _, d := range data {
			for grader, row := range Aggregate(d.Comments, d.Owners, d.Rubric, GroupByGrader) {
				m := merged[grader]
				if m == nil {
					m = &UsageRow{PerCategory: make(map[string]int)}
					merged[grader] = m
				}
				m.TotalComments += row.TotalComments
				m.TotalPoints += row.TotalPoints
				for cat, n := range row.PerCategory {
					m.PerCategory[cat] += n
				}
			}
		}
		for _, grader := range sortedKeys(merged) {
			row := merged[grader]
			fmt.Printf("%-32s  %4d comments  %+.1f points\n", grader, row.TotalComments, row.TotalPoints)
			for _, cat := range sortedKeys(row.PerCategory) {
				fmt.Printf("    %-28s  %4d\n", cat, row.PerCategory[cat])
			}
		}
		recordRun(cfg, Run{
			Command:    "reports",
			Assignment: *through,
			Selected:   len(merged),
			StartedAt:  started,
		}, nil)
		return nil
	}

	reports := BuildStudentReports(data, time.Now())

	dir := filepath.Join(cfg.OutputDir, cfg.CourseSlug(), "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	for student, text := range reports {
		path := filepath.Join(dir, sanitizeFilename(student)+".txt")
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return fmt.Errorf("writing report for %s: %w", student, err)
		}
	}
	fmt.Printf("Wrote %d student reports to %s\n", len(reports), dir)

	uploaded := 0
	var firstErr error
	if *apply {
		target := assignments[len(assignments)-1]
		for student, text := range reports {
			subID, ok := lastSubs[strings.ToLower(student)]
			if !ok {
				fmt.Printf("%-32s  skipped: no submission on %s\n", student, target.Name)
				continue
			}
			if err := CreateSubmissionFile(cfg, subID, "REPORT.txt", "txt", text); err != nil {
				log.Printf("Error uploading report for %s: %v", student, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			uploaded++
		}
		fmt.Printf("Uploaded %d reports onto %s submissions\n", uploaded, target.Name)
	}

	recordRun(cfg, Run{
		Command:    "reports",
		Assignment: *through,
		Selected:   len(reports),
		Applied:    uploaded,
		StartedAt:  started,
	}, nil)
	return firstErr
}

func runTierReport(cfg Config, args []string) error {
	fs := flag.NewFlagSet("tier-report", flag.ExitOnError)
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
	rubric, err := FetchRubric(cfg, asg.ID)
	if err != nil {
		return err
	}
	comments, err := FetchComments(cfg, asg.ID)
	if err != nil {
		return err
	}

	tierOf := commentTiers(rubric)
	maxTier := 0
	for _, t := range tierOf {
		if t > maxTier {
			maxTier = t
		}
	}

	perSub := make(map[int64]TierTally, len(subs))
	for _, c := range comments {
		t := perSub[c.SubmissionID]
		if t == nil {
			t = make(TierTally)
			perSub[c.SubmissionID] = t
		}
		t[tierLabel(c, tierOf)]++
	}

	header := []string{"submission", "students", "comments"}
	for t := 1; t <= maxTier; t++ {
		header = append(header, fmt.Sprintf("t%d", t))
	}
	header = append(header, "none", "rubric", "custom")

	records := make([][]string, 0, len(subs))
	for _, s := range subs {
		tally := perSub[s.ID]
		total := 0
		for _, n := range tally {
			total += n
		}
		rec := []string{
			strconv.FormatInt(s.ID, 10),
			strings.Join(s.Students, " "),
			strconv.Itoa(total),
		}
		for t := 1; t <= maxTier; t++ {
			rec = append(rec, strconv.Itoa(tally[fmt.Sprintf("T%d", t)]))
		}
		rec = append(rec,
			strconv.Itoa(tally["none"]),
			strconv.Itoa(total-tally["custom"]),
			strconv.Itoa(tally["custom"]))
		records = append(records, rec)
	}

	dir, err := assignmentDir(cfg, asg.Name)
	if err != nil {
		return err
	}
	csvPath := filepath.Join(dir, "tier_report.csv")
	if err := WriteCSV(csvPath, header, records); err != nil {
		return err
	}

	fmt.Printf("Wrote tier report for %d submissions to %s\n", len(records), csvPath)
	recordRun(cfg, Run{
		Command:      "tier-report",
		Assignment:   asg.Name,
		Selected:     len(records),
		SnapshotPath: csvPath,
		StartedAt:    started,
	}, nil)
	return nil
}
