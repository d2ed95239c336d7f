package main

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Course struct {
	ID          int64
	Name        string
	Period      string
	Assignments []Assignment
}

type Assignment struct {
	ID      int64
	Name    string
	Points  float64
	SortKey int // export/report ordering, mirrors the platform's ordering
}

type Roster struct {
	Graders  []string // grader emails
	Students []string // student emails
}

type Submission struct {
	ID         int64
	Students   []string // owner emails; group submissions have several
	Grader     string   // empty when unclaimed
	Finalized  bool
	DateEdited time.Time
}

type RubricCategory struct {
	ID         int64
	Name       string
	PointLimit *float64 // nil = unlimited
	Order      int
	Comments   []RubricComment
}

type RubricComment struct {
	ID           int64
	CategoryID   int64
	Name         string // short name, unique within its category
	Text         string
	PointDelta   float64
	Caption      string
	Explanation  string
	Instructions string
	Template     bool
	SortKey      int
	Tier         int // 0 = untiered
}

// Comment is an applied instance of a rubric comment (or a freehand comment)
// on a submission file.
type Comment struct {
	ID              int64
	SubmissionID    int64
	FileID          int64
	FileName        string
	Author          string
	Text            string
	PointDelta      float64
	RubricCommentID int64 // 0 for freehand comments
	StartLine       int
	EndLine         int
	Feedback        int // student vote: +1, 0, -1
}

type SubmissionFile struct {
	ID        int64
	Name      string
	Extension string
	Code      string
}

type TestResult struct {
	SubmissionID int64
	Category     string
	Name         string
	Passed       bool
}

// AuditRecord pairs a submission with how many audit passes it has received
// and how many the course wants.
type AuditRecord struct {
	Submission Submission
	Count      int
	Target     int
}

func (r AuditRecord) Remaining() int {
	if r.Count >= r.Target {
		return 0
	}
	return r.Target - r.Count
}

func (s Submission) Claimed() bool {
	return s.Grader != ""
}

// Draft means claimed but not yet finalized.
func (s Submission) Draft() bool {
	return s.Grader != "" && !s.Finalized
}

func (s Submission) HeldBy(grader string) bool {
	return s.Grader != "" && strings.EqualFold(s.Grader, grader)
}

func (c Comment) Custom() bool {
	return c.RubricCommentID == 0
}

func (c Course) AssignmentByName(name string) (Assignment, bool) {
	for _, a := range c.Assignments {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return Assignment{}, false
}

func (r Roster) HasGrader(email string) bool {
	for _, g := range r.Graders {
		if strings.EqualFold(g, email) {
			return true
		}
	}
	return false
}

func (r Roster) HasStudent(email string) bool {
	for _, s := range r.Students {
		if strings.EqualFold(s, email) {
			return true
		}
	}
	return false
}

func (c RubricCategory) CommentByName(name string) (RubricComment, bool) {
	for _, rc := range c.Comments {
		if rc.Name == name {
			return rc, true
		}
	}
	return RubricComment{}, false
}

// makeEmail completes a bare grader name with the configured email domain.
// Full addresses pass through untouched.
func makeEmail(name, domain string) string {
	if name == "" || domain == "" || strings.Contains(name, "@") {
		return name
	}
	return name + "@" + domain
}

// Platform comment text carries the tier as a leading "\[T<n>\]" marker. The
// brackets stay escaped so the platform's markdown does not render a link.
var tierMarkerRe = regexp.MustCompile(`^\\\[T(\d+)\\\]\s*`)

func ExtractTier(text string) (int, string) {
	m := tierMarkerRe.FindStringSubmatch(text)
	if m == nil {
		return 0, text
	}
	tier, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, text
	}
	return tier, text[len(m[0]):]
}

func EmbedTier(tier int, text string) string {
	if tier <= 0 {
		return text
	}
	return `\[T` + strconv.Itoa(tier) + `\] ` + text
}
