package main

// DiffOptions controls how a sheet rubric is reconciled against the platform.
type DiffOptions struct {
	DeleteMissing bool
}

// CommentChange pairs a platform comment with the desired fields from the
// sheet. Old carries the platform id the update is addressed to.
type CommentChange struct {
	Old RubricComment
	New RubricComment
}

// RubricDiff is the reconciliation plan for one assignment. Map keys are
// category names. Nothing here has been applied; the caller walks the plan
// and pushes each entry to the grading platform.
type RubricDiff struct {
	AddCategories    []RubricCategory           // absent from the platform, comments included
	DeleteCategories []RubricCategory           // platform categories the sheet marks DELETE
	Add              map[string][]RubricComment // new comments in existing categories
	Update           map[string][]CommentChange // short name exists, fields differ
	Delete           map[string][]RubricComment // missing from the sheet, DeleteMissing set
	Stale            map[string][]RubricComment // missing from the sheet, reported only
	Unchanged        int
}

// sheetDeleteMarker is the one-row category body that asks for the category
// to be removed from the platform.
const sheetDeleteMarker = "DELETE"

// DiffRubric compares the platform rubric with the sheet rubric, matching
// categories by name and comments by short name. A platform category the
// sheet does not mention at all is left untouched; deletion requires the
// explicit marker row. Inputs are read only.
func DiffRubric(platform, sheet []RubricCategory, opts DiffOptions) RubricDiff {
	diff := RubricDiff{
		Add:    make(map[string][]RubricComment),
		Update: make(map[string][]CommentChange),
		Delete: make(map[string][]RubricComment),
		Stale:  make(map[string][]RubricComment),
	}

	platByName := make(map[string]RubricCategory, len(platform))
	for _, c := range platform {
		platByName[c.Name] = c
	}

	for _, sc := range sheet {
		pc, exists := platByName[sc.Name]
		if isDeleteMarker(sc) {
			if exists {
				diff.DeleteCategories = append(diff.DeleteCategories, pc)
			}
			continue
		}
		if !exists {
			diff.AddCategories = append(diff.AddCategories, sc)
			continue
		}

		sheetNames := make(map[string]bool, len(sc.Comments))
		for _, scc := range sc.Comments {
			sheetNames[scc.Name] = true
			old, found := pc.CommentByName(scc.Name)
			if !found {
				diff.Add[sc.Name] = append(diff.Add[sc.Name], scc)
				continue
			}
			if commentFieldsEqual(old, scc) {
				diff.Unchanged++
				continue
			}
			diff.Update[sc.Name] = append(diff.Update[sc.Name], CommentChange{Old: old, New: scc})
		}

		for _, pcc := range pc.Comments {
			if sheetNames[pcc.Name] {
				continue
			}
			if opts.DeleteMissing {
				diff.Delete[sc.Name] = append(diff.Delete[sc.Name], pcc)
			} else {
				diff.Stale[sc.Name] = append(diff.Stale[sc.Name], pcc)
			}
		}
	}

	return diff
}

// Empty reports whether applying the diff would change the platform.
func (d RubricDiff) Empty() bool {
	return len(d.AddCategories) == 0 && len(d.DeleteCategories) == 0 &&
		len(d.Add) == 0 && len(d.Update) == 0 && len(d.Delete) == 0
}

// Counts returns the number of comment creations, updates and deletions the
// diff calls for. Creations include comments inside new categories.
func (d RubricDiff) Counts() (add, update, del int) {
	for _, c := range d.AddCategories {
		add += len(c.Comments)
	}
	for _, comments := range d.Add {
		add += len(comments)
	}
	for _, changes := range d.Update {
		update += len(changes)
	}
	for _, comments := range d.Delete {
		del += len(comments)
	}
	for _, c := range d.DeleteCategories {
		del += len(c.Comments)
	}
	return add, update, del
}

func isDeleteMarker(c RubricCategory) bool {
	return len(c.Comments) == 1 && c.Comments[0].Name == sheetDeleteMarker &&
		c.Comments[0].Text == "" && c.Comments[0].PointDelta == 0
}

// commentFieldsEqual compares every field the sheet carries. Ids are ignored;
// they never travel through the sheet.
func commentFieldsEqual(a, b RubricComment) bool {
	return a.Text == b.Text &&
		a.PointDelta == b.PointDelta &&
		a.Tier == b.Tier &&
		a.Caption == b.Caption &&
		a.Explanation == b.Explanation &&
		a.Instructions == b.Instructions &&
		a.Template == b.Template &&
		a.SortKey == b.SortKey
}
