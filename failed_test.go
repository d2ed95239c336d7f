package main

import "testing"

func testResultsFixture() []TestResult {
	return []TestResult{
		{SubmissionID: 1, Category: "compile", Name: "builds", Passed: true},
		{SubmissionID: 1, Category: "output", Name: "case-1", Passed: true},
		{SubmissionID: 1, Category: "output", Name: "case-2", Passed: false},
		{SubmissionID: 2, Category: "compile", Name: "builds", Passed: true},
		{SubmissionID: 2, Category: "output", Name: "case-1", Passed: true},
		{SubmissionID: 2, Category: "output", Name: "case-2", Passed: true},
	}
}

func TestSummarizeTests(t *testing.T) {
	summaries := summarizeTests(testResultsFixture())
	if len(summaries) != 2 {
		t.Fatalf("expected 2 submissions with results, got %d", len(summaries))
	}

	s1 := summaries[1]
	if s1.Passed != 2 || s1.Total != 3 {
		t.Fatalf("submission 1: expected 2/3, got %d/%d", s1.Passed, s1.Total)
	}
	if s1.PerCategory["output"].Passed != 1 || s1.PerCategory["output"].Total != 2 {
		t.Fatalf("submission 1 output category: expected 1/2, got %+v", s1.PerCategory["output"])
	}

	if summaries[3] != nil {
		t.Fatal("a submission without results must have no summary")
	}
}

func TestAssignmentTestCount(t *testing.T) {
	if got := assignmentTestCount(testResultsFixture()); got != 3 {
		t.Fatalf("expected 3 distinct tests, got %d", got)
	}
	if got := assignmentTestCount(nil); got != 0 {
		t.Fatalf("expected 0 tests for no results, got %d", got)
	}

	// The same test name in two categories is two distinct tests.
	dup := []TestResult{
		{SubmissionID: 1, Category: "a", Name: "t"},
		{SubmissionID: 1, Category: "b", Name: "t"},
	}
	if got := assignmentTestCount(dup); got != 2 {
		t.Fatalf("expected category to distinguish tests, got %d", got)
	}
}

func TestCategoryLineSorted(t *testing.T) {
	summaries := summarizeTests(testResultsFixture())
	if got := summaries[1].categoryLine(); got != "compile 1/1, output 1/2" {
		t.Fatalf("unexpected category line: %q", got)
	}
}
