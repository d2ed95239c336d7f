package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var rubricSheetHeader = []string{
	"Category", "Max", "Name", "Tier", "Points",
	"Text", "Caption", "Explanation", "Instructions", "Template",
}

var rubricCountHeader = []string{"Instances", "Upvotes", "Downvotes"}

// templateYes holds the cell values accepted as true in the Template column.
var templateYes = map[string]bool{"x": true, "yes": true, "y": true}

// RubricCounts tallies applied instances and student votes per rubric
// comment id.
type RubricCounts struct {
	Instances map[int64]int
	Upvotes   map[int64]int
	Downvotes map[int64]int
}

func CountRubricUsage(comments []Comment) *RubricCounts {
	counts := &RubricCounts{
		Instances: make(map[int64]int),
		Upvotes:   make(map[int64]int),
		Downvotes: make(map[int64]int),
	}
	for _, c := range comments {
		if c.Custom() {
			continue
		}
		counts.Instances[c.RubricCommentID]++
		switch {
		case c.Feedback > 0:
			counts.Upvotes[c.RubricCommentID]++
		case c.Feedback < 0:
			counts.Downvotes[c.RubricCommentID]++
		}
	}
	return counts
}

// formatPoints renders a point value without trailing zeros.
func formatPoints(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// RenderRubricSheet lays a rubric out as sheet rows. Row 1 names the
// assignment, row 2 is the header, and data rows carry the category name
// only on the category's first row. Sheet points are positive deductions,
// so the sign flips from the platform's deltas.
func RenderRubricSheet(asg Assignment, rubric []RubricCategory, counts *RubricCounts) [][]string {
	header := rubricSheetHeader
	if counts != nil {
		header = append(append([]string{}, rubricSheetHeader...), rubricCountHeader...)
	}
	rows := [][]string{
		{"Assignment", asg.Name, strconv.FormatInt(asg.ID, 10)},
		header,
	}

	for _, cat := range rubric {
		catCell := cat.Name
		maxCell := ""
		if cat.PointLimit != nil {
			maxCell = formatPoints(*cat.PointLimit)
		}
		if len(cat.Comments) == 0 {
			rows = append(rows, []string{catCell, maxCell})
			continue
		}
		for _, rc := range cat.Comments {
			tier := ""
			if rc.Tier > 0 {
				tier = strconv.Itoa(rc.Tier)
			}
			template := ""
			if rc.Template {
				template = "x"
			}
			row := []string{
				catCell, maxCell, rc.Name, tier, formatPoints(-rc.PointDelta),
				rc.Text, rc.Caption, rc.Explanation, rc.Instructions, template,
			}
			if counts != nil {
				row = append(row,
					strconv.Itoa(counts.Instances[rc.ID]),
					strconv.Itoa(counts.Upvotes[rc.ID]),
					strconv.Itoa(counts.Downvotes[rc.ID]))
			}
			rows = append(rows, row)
			catCell, maxCell = "", ""
		}
	}
	return rows
}

// sheetCell returns the trimmed cell at idx, empty when the row is short.
func sheetCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ParseRubricSheet reads rows in the RenderRubricSheet layout back into
// categories, along with the assignment name and id declared in row 1.
// A blank Category cell continues the previous category.
func ParseRubricSheet(rows [][]string, sheetName string) ([]RubricCategory, string, int64, error) {
	if len(rows) < 2 {
		return nil, "", 0, &MalformedSheetError{Sheet: sheetName, Reason: "missing assignment and header rows"}
	}

	first := rows[0]
	if len(first) < 3 || !strings.EqualFold(sheetCell(first, 0), "Assignment") {
		return nil, "", 0, &MalformedSheetError{Sheet: sheetName, Reason: "row 1 must be: Assignment, <name>, <id>"}
	}
	asgName := sheetCell(first, 1)
	asgID, err := strconv.ParseInt(sheetCell(first, 2), 10, 64)
	if err != nil {
		return nil, "", 0, &MalformedSheetError{
			Sheet:  sheetName,
			Reason: fmt.Sprintf("row 1 assignment id %q is not a number", sheetCell(first, 2)),
		}
	}

	col := make(map[string]int, len(rows[1]))
	for i, h := range rows[1] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, want := range rubricSheetHeader {
		if _, ok := col[strings.ToLower(want)]; !ok {
			return nil, "", 0, &MalformedSheetError{
				Sheet:  sheetName,
				Reason: fmt.Sprintf("missing %s column", want),
			}
		}
	}

	var cats []RubricCategory
	curIdx := -1
	for i, row := range rows[2:] {
		line := i + 3
		get := func(name string) string {
			return sheetCell(row, col[strings.ToLower(name)])
		}

		catName := get("Category")
		name := get("Name")
		if catName == "" && name == "" {
			continue
		}

		if catName != "" {
			cat := RubricCategory{Name: catName, Order: len(cats)}
			if max := get("Max"); max != "" {
				limit, err := strconv.ParseFloat(max, 64)
				if err != nil {
					return nil, "", 0, &MalformedSheetError{
						Sheet:  sheetName,
						Reason: fmt.Sprintf("row %d: Max %q is not a number", line, max),
					}
				}
				cat.PointLimit = &limit
			}
			cats = append(cats, cat)
			curIdx = len(cats) - 1
		}
		if curIdx == -1 {
			return nil, "", 0, &MalformedSheetError{
				Sheet:  sheetName,
				Reason: fmt.Sprintf("row %d has a comment before any category", line),
			}
		}
		if name == "" {
			continue
		}

		cur := &cats[curIdx]
		if _, exists := cur.CommentByName(name); exists {
			return nil, "", 0, &MalformedSheetError{
				Sheet:  sheetName,
				Reason: fmt.Sprintf("row %d: duplicate comment %q in category %q", line, name, cur.Name),
			}
		}

		rc := RubricComment{
			Name:         name,
			Text:         get("Text"),
			Caption:      get("Caption"),
			Explanation:  get("Explanation"),
			Instructions: get("Instructions"),
			Template:     templateYes[strings.ToLower(get("Template"))],
			SortKey:      len(cur.Comments),
		}
		if tier := get("Tier"); tier != "" {
			n, err := strconv.Atoi(tier)
			if err != nil {
				return nil, "", 0, &MalformedSheetError{
					Sheet:  sheetName,
					Reason: fmt.Sprintf("row %d: Tier %q is not an integer", line, tier),
				}
			}
			rc.Tier = n
		}
		if pts := get("Points"); pts != "" {
			f, err := strconv.ParseFloat(pts, 64)
			if err != nil {
				return nil, "", 0, &MalformedSheetError{
					Sheet:  sheetName,
					Reason: fmt.Sprintf("row %d: Points %q is not a number", line, pts),
				}
			}
			rc.PointDelta = -f
		}
		cur.Comments = append(cur.Comments, rc)
	}
	return cats, asgName, asgID, nil
}

func runRubricToSheet(cfg Config, args []string) error {
	fs := flag.NewFlagSet("rubric-to-sheet", flag.ExitOnError)
	assignment := fs.String("assignment", "", "assignment name")
	all := fs.Bool("all", false, "export every assignment in the course")
	counts := fs.Bool("counts", false, "append applied-instance and vote columns")
	fs.Parse(args)

	started := time.Now().UTC()
	course, err := FetchCourse(cfg)
	if err != nil {
		return err
	}

	var assignments []Assignment
	if *all {
		assignments = append(assignments, course.Assignments...)
		sort.Slice(assignments, func(i, j int) bool {
			return assignments[i].SortKey < assignments[j].SortKey
		})
	} else {
		if *assignment == "" {
			return invalidRequestf("rubric-to-sheet needs -assignment or -all")
		}
		asg, ok := course.AssignmentByName(*assignment)
		if !ok {
			return &UnknownAssignmentError{Assignment: *assignment, Course: course.Name}
		}
		assignments = []Assignment{asg}
	}

	ctx := context.Background()
	svc, err := NewSheetsService(ctx, cfg)
	if err != nil {
		return err
	}

	for _, asg := range assignments {
		rubric, err := FetchRubric(cfg, asg.ID)
		if err != nil {
			return err
		}
		var usage *RubricCounts
		if *counts {
			comments, err := FetchComments(cfg, asg.ID)
			if err != nil {
				return err
			}
			usage = CountRubricUsage(comments)
		}

		title := sanitizeFilename(asg.Name)
		if err := svc.EnsureWorksheet(ctx, title); err != nil {
			return err
		}
		if err := svc.WriteWorksheet(ctx, title, RenderRubricSheet(asg, rubric, usage)); err != nil {
			return err
		}

		nComments := 0
		for _, cat := range rubric {
			nComments += len(cat.Comments)
		}
		fmt.Printf("Exported %s: %d categories, %d comments\n", asg.Name, len(rubric), nComments)
	}

	label := ""
	if !*all {
		label = assignments[0].Name
	}
	recordRun(cfg, Run{
		Command:    "rubric-to-sheet",
		Assignment: label,
		Selected:   len(assignments),
		Applied:    len(assignments),
		StartedAt:  started,
	}, nil)
	return nil
}

func runRubricFromSheet(cfg Config, args []string) error {
	fs := flag.NewFlagSet("rubric-from-sheet", flag.ExitOnError)
	assignment := fs.String("assignment", "", "assignment name")
	mode := fs.String("mode", "", "update or replace (required)")
	deleteMissing := fs.Bool("delete-missing", false, "delete platform comments missing from the sheet (update mode)")
	force := fs.Bool("force", false, "modify the rubric even when submissions exist")
	dryRun := fs.Bool("dry-run", false, "print the plan without touching the platform")
	fs.Parse(args)

	if *mode != "update" && *mode != "replace" {
		return invalidRequestf("-mode must be update or replace")
	}

	started := time.Now().UTC()
	course, asg, err := resolveAssignment(cfg, *assignment)
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, err := NewSheetsService(ctx, cfg)
	if err != nil {
		return err
	}
	title := sanitizeFilename(asg.Name)
	rows, err := svc.ReadWorksheet(ctx, title)
	if err != nil {
		return err
	}
	sheet, sheetAsg, sheetID, err := ParseRubricSheet(rows, title)
	if err != nil {
		return err
	}
	if sheetID != asg.ID {
		return &UnknownAssignmentError{
			Assignment: fmt.Sprintf("%s (sheet id %d)", sheetAsg, sheetID),
			Course:     course.Name,
		}
	}

	subs, err := FetchSubmissions(cfg, asg.ID)
	if err != nil {
		return err
	}
	if len(subs) > 0 && !*force {
		return invalidRequestf("%s already has %d submissions; pass -force to modify its rubric anyway",
			asg.Name, len(subs))
	}

	platform, err := FetchRubric(cfg, asg.ID)
	if err != nil {
		return err
	}

	var selected, applied int
	switch *mode {
	case "replace":
		fmt.Printf("Replace rubric for %s: %d platform categories out, %d sheet categories in\n",
			asg.Name, len(platform), len(sheet))
		selected = len(platform) + len(sheet)
		applied, err = replaceRubric(cfg, asg.ID, platform, sheet, *dryRun)
	case "update":
		diff := DiffRubric(platform, sheet, DiffOptions{DeleteMissing: *deleteMissing})
		add, upd, del := diff.Counts()
		selected = add + upd + del
		fmt.Printf("Diff for %s: %d to add, %d to update, %d to delete, %d unchanged\n",
			asg.Name, add, upd, del, diff.Unchanged)
		applied, err = applyRubricDiff(cfg, asg.ID, platform, diff, *dryRun)
		for _, catName := range sortedKeys(diff.Stale) {
			for _, rc := range diff.Stale[catName] {
				fmt.Printf("  ? %s/%s on the platform but not the sheet (kept)\n", catName, rc.Name)
			}
		}
	}
	if err != nil {
		return err
	}
	if *dryRun {
		fmt.Println("Dry run, nothing applied.")
	}

	recordRun(cfg, Run{
		Command:    "rubric-from-sheet",
		Assignment: asg.Name,
		Selected:   selected,
		Applied:    applied,
		DryRun:     *dryRun,
		StartedAt:  started,
	}, nil)
	return nil
}

// applyRubricDiff pushes an update-mode plan to the platform, printing one
// line per operation. Stops on the first platform error.
func applyRubricDiff(cfg Config, asgID int64, platform []RubricCategory, diff RubricDiff, dryRun bool) (int, error) {
	applied := 0
	catID := make(map[string]int64, len(platform))
	for _, cat := range platform {
		catID[cat.Name] = cat.ID
	}

	for _, cat := range diff.AddCategories {
		fmt.Printf("  + category %s\n", cat.Name)
		if !dryRun {
			id, err := CreateRubricCategory(cfg, asgID, cat)
			if err != nil {
				return applied, err
			}
			catID[cat.Name] = id
			applied++
		}
		for _, rc := range cat.Comments {
			fmt.Printf("    + %s\n", rc.Name)
			if dryRun {
				continue
			}
			if _, err := CreateRubricComment(cfg, catID[cat.Name], rc); err != nil {
				return applied, err
			}
			applied++
		}
	}

	for _, catName := range sortedKeys(diff.Add) {
		for _, rc := range diff.Add[catName] {
			fmt.Printf("  + %s/%s\n", catName, rc.Name)
			if dryRun {
				continue
			}
			if _, err := CreateRubricComment(cfg, catID[catName], rc); err != nil {
				return applied, err
			}
			applied++
		}
	}

	for _, catName := range sortedKeys(diff.Update) {
		for _, ch := range diff.Update[catName] {
			fmt.Printf("  ~ %s/%s\n", catName, ch.New.Name)
			if dryRun {
				continue
			}
			rc := ch.New
			rc.ID = ch.Old.ID
			if err := UpdateRubricComment(cfg, rc); err != nil {
				return applied, err
			}
			applied++
		}
	}

	for _, catName := range sortedKeys(diff.Delete) {
		for _, rc := range diff.Delete[catName] {
			fmt.Printf("  - %s/%s\n", catName, rc.Name)
			if dryRun {
				continue
			}
			if err := DeleteRubricComment(cfg, rc.ID); err != nil {
				return applied, err
			}
			applied++
		}
	}

	for _, cat := range diff.DeleteCategories {
		fmt.Printf("  - category %s (%d comments)\n", cat.Name, len(cat.Comments))
		if dryRun {
			continue
		}
		if err := DeleteRubricCategory(cfg, cat.ID); err != nil {
			return applied, err
		}
		applied++
	}

	return applied, nil
}

// replaceRubric wipes every platform category and recreates the sheet's
// rubric from scratch. DELETE marker categories are simply not recreated.
func replaceRubric(cfg Config, asgID int64, platform, sheet []RubricCategory, dryRun bool) (int, error) {
	applied := 0
	for _, cat := range platform {
		fmt.Printf("  - category %s (%d comments)\n", cat.Name, len(cat.Comments))
		if dryRun {
			continue
		}
		if err := DeleteRubricCategory(cfg, cat.ID); err != nil {
			return applied, err
		}
		applied++
	}

	for _, cat := range sheet {
		if isDeleteMarker(cat) {
			continue
		}
		fmt.Printf("  + category %s (%d comments)\n", cat.Name, len(cat.Comments))
		if dryRun {
			continue
		}
		id, err := CreateRubricCategory(cfg, asgID, cat)
		if err != nil {
			return applied, err
		}
		applied++
		for _, rc := range cat.Comments {
			if _, err := CreateRubricComment(cfg, id, rc); err != nil {
				return applied, err
			}
			applied++
		}
	}
	return applied, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
