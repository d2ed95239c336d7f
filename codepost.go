package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// Wire types for the grading platform API. The loose shapes stay in this
// file; everything crossing into the rest of the program is converted to the
// typed models first.

type cpCourse struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Period      string         `json:"period"`
	Assignments []cpAssignment `json:"assignments"`
}

type cpAssignment struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Points  float64 `json:"points"`
	SortKey int     `json:"sortKey"`
}

type cpRoster struct {
	Graders  []string `json:"graders"`
	Students []string `json:"students"`
}

type cpSubmission struct {
	ID          int64    `json:"id"`
	Students    []string `json:"students"`
	Grader      *string  `json:"grader"`
	IsFinalized bool     `json:"isFinalized"`
	DateEdited  string   `json:"dateEdited"`
}

type cpRubricCategory struct {
	ID             int64             `json:"id,omitempty"`
	Assignment     int64             `json:"assignment,omitempty"`
	Name           string            `json:"name"`
	PointLimit     *float64          `json:"pointLimit"`
	Order          int               `json:"order"`
	RubricComments []cpRubricComment `json:"rubricComments,omitempty"`
}

type cpRubricComment struct {
	ID              int64   `json:"id,omitempty"`
	Category        int64   `json:"category,omitempty"`
	Name            string  `json:"name"`
	Text            string  `json:"text"`
	PointDelta      float64 `json:"pointDelta"`
	Caption         string  `json:"caption"`
	Explanation     string  `json:"explanation"`
	InstructionText string  `json:"instructionText"`
	TemplateTextOn  bool    `json:"templateTextOn"`
	SortKey         int     `json:"sortKey"`
}

type cpComment struct {
	ID            int64   `json:"id,omitempty"`
	Submission    int64   `json:"submission,omitempty"`
	File          int64   `json:"file"`
	Author        string  `json:"author,omitempty"`
	Text          string  `json:"text"`
	PointDelta    float64 `json:"pointDelta"`
	RubricComment *int64  `json:"rubricComment,omitempty"`
	StartLine     int     `json:"startLine"`
	EndLine       int     `json:"endLine"`
	Feedback      int     `json:"feedback,omitempty"`
}

type cpFile struct {
	ID         int64  `json:"id,omitempty"`
	Submission int64  `json:"submission,omitempty"`
	Name       string `json:"name"`
	Extension  string `json:"extension"`
	Code       string `json:"code"`
}

type cpTest struct {
	Submission int64  `json:"submission"`
	Category   string `json:"category"`
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
}

const codepostPageSize = 100

// codepostRequest performs one authenticated call against the grading
// platform and decodes the response into out when out is non-nil.
func codepostRequest(cfg Config, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, cfg.CodePostAPIURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+cfg.CodePostAPIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("grading platform returned %d: %s", resp.StatusCode, string(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

// FetchCourse resolves the configured course by name and period.
func FetchCourse(cfg Config) (Course, error) {
	path := fmt.Sprintf("/courses/?name=%s&period=%s",
		url.QueryEscape(cfg.Course), url.QueryEscape(cfg.Period))
	var wire []cpCourse
	if err := codepostRequest(cfg, "GET", path, nil, &wire); err != nil {
		return Course{}, externalErr("codepost", "fetch course", err)
	}
	if len(wire) == 0 {
		return Course{}, &UnknownCourseError{Name: cfg.Course, Period: cfg.Period}
	}

	w := wire[0]
	course := Course{ID: w.ID, Name: w.Name, Period: w.Period}
	for _, a := range w.Assignments {
		course.Assignments = append(course.Assignments, Assignment{
			ID: a.ID, Name: a.Name, Points: a.Points, SortKey: a.SortKey,
		})
	}
	log.Printf("codepost fetch course id=%d assignments=%d", course.ID, len(course.Assignments))
	return course, nil
}

func FetchRoster(cfg Config, courseID int64) (Roster, error) {
	var wire cpRoster
	path := fmt.Sprintf("/courses/%d/roster/", courseID)
	if err := codepostRequest(cfg, "GET", path, nil, &wire); err != nil {
		return Roster{}, externalErr("codepost", "fetch roster", err)
	}
	return Roster{Graders: wire.Graders, Students: wire.Students}, nil
}

// FetchSubmissions returns every submission for the assignment in the
// platform's queue order.
func FetchSubmissions(cfg Config, assignmentID int64) ([]Submission, error) {
	var subs []Submission
	page := 1
	for {
		path := fmt.Sprintf("/assignments/%d/submissions/?page=%d&per_page=%d",
			assignmentID, page, codepostPageSize)
		var batch []cpSubmission
		if err := codepostRequest(cfg, "GET", path, nil, &batch); err != nil {
			return nil, externalErr("codepost", "fetch submissions", err)
		}
		for _, w := range batch {
			subs = append(subs, convertSubmission(w))
		}
		if len(batch) < codepostPageSize {
			break
		}
		page++
	}
	log.Printf("codepost fetch submissions assignment=%d total=%d", assignmentID, len(subs))
	return subs, nil
}

func convertSubmission(w cpSubmission) Submission {
	edited, _ := time.Parse(time.RFC3339, w.DateEdited)
	grader := ""
	if w.Grader != nil {
		grader = *w.Grader
	}
	return Submission{
		ID:         w.ID,
		Students:   w.Students,
		Grader:     grader,
		Finalized:  w.IsFinalized,
		DateEdited: edited,
	}
}

// FetchComments returns every applied comment on the assignment across all
// submissions.
func FetchComments(cfg Config, assignmentID int64) ([]Comment, error) {
	var comments []Comment
	page := 1
	for {
		path := fmt.Sprintf("/assignments/%d/comments/?page=%d&per_page=%d",
			assignmentID, page, codepostPageSize)
		var batch []cpComment
		if err := codepostRequest(cfg, "GET", path, nil, &batch); err != nil {
			return nil, externalErr("codepost", "fetch comments", err)
		}
		for _, w := range batch {
			comments = append(comments, convertComment(w))
		}
		if len(batch) < codepostPageSize {
			break
		}
		page++
	}
	log.Printf("codepost fetch comments assignment=%d total=%d", assignmentID, len(comments))
	return comments, nil
}

func convertComment(w cpComment) Comment {
	var rubricID int64
	if w.RubricComment != nil {
		rubricID = *w.RubricComment
	}
	return Comment{
		ID:              w.ID,
		SubmissionID:    w.Submission,
		FileID:          w.File,
		Author:          w.Author,
		Text:            w.Text,
		PointDelta:      w.PointDelta,
		RubricCommentID: rubricID,
		StartLine:       w.StartLine,
		EndLine:         w.EndLine,
		Feedback:        w.Feedback,
	}
}

func FetchFiles(cfg Config, submissionID int64) ([]SubmissionFile, error) {
	var wire []cpFile
	path := fmt.Sprintf("/submissions/%d/files/", submissionID)
	if err := codepostRequest(cfg, "GET", path, nil, &wire); err != nil {
		return nil, externalErr("codepost", "fetch files", err)
	}
	files := make([]SubmissionFile, 0, len(wire))
	for _, w := range wire {
		files = append(files, SubmissionFile{
			ID: w.ID, Name: w.Name, Extension: w.Extension, Code: w.Code,
		})
	}
	return files, nil
}

// FetchTestResults returns the automated test outcomes for every submission
// of the assignment. Submissions whose tests never ran have no rows here.
func FetchTestResults(cfg Config, assignmentID int64) ([]TestResult, error) {
	var results []TestResult
	page := 1
	for {
		path := fmt.Sprintf("/assignments/%d/tests/?page=%d&per_page=%d",
			assignmentID, page, codepostPageSize)
		var batch []cpTest
		if err := codepostRequest(cfg, "GET", path, nil, &batch); err != nil {
			return nil, externalErr("codepost", "fetch test results", err)
		}
		for _, w := range batch {
			results = append(results, TestResult{
				SubmissionID: w.Submission,
				Category:     w.Category,
				Name:         w.Name,
				Passed:       w.Passed,
			})
		}
		if len(batch) < codepostPageSize {
			break
		}
		page++
	}
	return results, nil
}

// FetchRubric returns the assignment's rubric with tiers extracted out of
// the comment text markers.
func FetchRubric(cfg Config, assignmentID int64) ([]RubricCategory, error) {
	var wire []cpRubricCategory
	path := fmt.Sprintf("/assignments/%d/rubric/", assignmentID)
	if err := codepostRequest(cfg, "GET", path, nil, &wire); err != nil {
		return nil, externalErr("codepost", "fetch rubric", err)
	}

	cats := make([]RubricCategory, 0, len(wire))
	for _, wc := range wire {
		cat := RubricCategory{
			ID:         wc.ID,
			Name:       wc.Name,
			PointLimit: wc.PointLimit,
			Order:      wc.Order,
		}
		for _, wrc := range wc.RubricComments {
			tier, text := ExtractTier(wrc.Text)
			cat.Comments = append(cat.Comments, RubricComment{
				ID:           wrc.ID,
				CategoryID:   wc.ID,
				Name:         wrc.Name,
				Text:         text,
				PointDelta:   wrc.PointDelta,
				Caption:      wrc.Caption,
				Explanation:  wrc.Explanation,
				Instructions: wrc.InstructionText,
				Template:     wrc.TemplateTextOn,
				SortKey:      wrc.SortKey,
				Tier:         tier,
			})
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// SetSubmissionGrader assigns the submission to grader, or returns it to the
// queue when grader is empty.
func SetSubmissionGrader(cfg Config, submissionID int64, grader string) error {
	payload := map[string]any{"grader": nil}
	if grader != "" {
		payload["grader"] = grader
	}
	path := fmt.Sprintf("/submissions/%d/", submissionID)
	if err := codepostRequest(cfg, "PATCH", path, payload, nil); err != nil {
		return externalErr("codepost", "set grader", err)
	}
	return nil
}

func SetSubmissionFinalized(cfg Config, submissionID int64, finalized bool) error {
	payload := map[string]any{"isFinalized": finalized}
	path := fmt.Sprintf("/submissions/%d/", submissionID)
	if err := codepostRequest(cfg, "PATCH", path, payload, nil); err != nil {
		return externalErr("codepost", "set finalized", err)
	}
	return nil
}

func CreateRubricCategory(cfg Config, assignmentID int64, cat RubricCategory) (int64, error) {
	payload := cpRubricCategory{
		Assignment: assignmentID,
		Name:       cat.Name,
		PointLimit: cat.PointLimit,
		Order:      cat.Order,
	}
	var created cpRubricCategory
	if err := codepostRequest(cfg, "POST", "/rubricCategories/", payload, &created); err != nil {
		return 0, externalErr("codepost", "create rubric category", err)
	}
	return created.ID, nil
}

// DeleteRubricCategory removes the category; the platform cascades the
// deletion to its comments.
func DeleteRubricCategory(cfg Config, categoryID int64) error {
	path := fmt.Sprintf("/rubricCategories/%d/", categoryID)
	if err := codepostRequest(cfg, "DELETE", path, nil, nil); err != nil {
		return externalErr("codepost", "delete rubric category", err)
	}
	return nil
}

func CreateRubricComment(cfg Config, categoryID int64, rc RubricComment) (int64, error) {
	payload := rubricCommentPayload(rc)
	payload.Category = categoryID
	var created cpRubricComment
	if err := codepostRequest(cfg, "POST", "/rubricComments/", payload, &created); err != nil {
		return 0, externalErr("codepost", "create rubric comment", err)
	}
	return created.ID, nil
}

func UpdateRubricComment(cfg Config, rc RubricComment) error {
	path := fmt.Sprintf("/rubricComments/%d/", rc.ID)
	if err := codepostRequest(cfg, "PATCH", path, rubricCommentPayload(rc), nil); err != nil {
		return externalErr("codepost", "update rubric comment", err)
	}
	return nil
}

func DeleteRubricComment(cfg Config, commentID int64) error {
	path := fmt.Sprintf("/rubricComments/%d/", commentID)
	if err := codepostRequest(cfg, "DELETE", path, nil, nil); err != nil {
		return externalErr("codepost", "delete rubric comment", err)
	}
	return nil
}

// rubricCommentPayload re-embeds the tier marker into the wire text.
func rubricCommentPayload(rc RubricComment) cpRubricComment {
	return cpRubricComment{
		Name:            rc.Name,
		Text:            EmbedTier(rc.Tier, rc.Text),
		PointDelta:      rc.PointDelta,
		Caption:         rc.Caption,
		Explanation:     rc.Explanation,
		InstructionText: rc.Instructions,
		TemplateTextOn:  rc.Template,
		SortKey:         rc.SortKey,
	}
}

// CreateComment applies a comment to a submission file.
func CreateComment(cfg Config, c Comment) (int64, error) {
	payload := cpComment{
		File:       c.FileID,
		Text:       c.Text,
		PointDelta: c.PointDelta,
		StartLine:  c.StartLine,
		EndLine:    c.EndLine,
	}
	if c.RubricCommentID != 0 {
		payload.RubricComment = &c.RubricCommentID
	}
	var created cpComment
	if err := codepostRequest(cfg, "POST", "/comments/", payload, &created); err != nil {
		return 0, externalErr("codepost", "create comment", err)
	}
	return created.ID, nil
}

// CreateSubmissionFile uploads a file onto a submission, replacing any
// existing file with the same name.
func CreateSubmissionFile(cfg Config, submissionID int64, name, extension, code string) error {
	payload := cpFile{
		Submission: submissionID,
		Name:       name,
		Extension:  extension,
		Code:       code,
	}
	if err := codepostRequest(cfg, "POST", "/files/", payload, nil); err != nil {
		return externalErr("codepost", "create file", err)
	}
	return nil
}

// resolveAssignment fetches the configured course and resolves the named
// assignment within it.
func resolveAssignment(cfg Config, name string) (Course, Assignment, error) {
	if name == "" {
		return Course{}, Assignment{}, invalidRequestf("assignment is required")
	}
	course, err := FetchCourse(cfg)
	if err != nil {
		return Course{}, Assignment{}, err
	}
	a, ok := course.AssignmentByName(name)
	if !ok {
		return Course{}, Assignment{}, &UnknownAssignmentError{Assignment: name, Course: course.Name}
	}
	return course, a, nil
}
