package main

import "fmt"

// InvalidRequestError reports caller input that fails validation before any
// call to an external service is made.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

func invalidRequestf(format string, args ...any) error {
	return &InvalidRequestError{Reason: fmt.Sprintf(format, args...)}
}

// UnknownGraderError reports a grader email with no matching roster entry.
type UnknownGraderError struct {
	Grader string
}

func (e *UnknownGraderError) Error() string {
	return fmt.Sprintf("grader '%s' is not on the course roster", e.Grader)
}

type UnknownCourseError struct {
	Name   string
	Period string
}

func (e *UnknownCourseError) Error() string {
	return fmt.Sprintf("course '%s' period '%s' not found", e.Name, e.Period)
}

type UnknownAssignmentError struct {
	Assignment string
	Course     string
}

func (e *UnknownAssignmentError) Error() string {
	return fmt.Sprintf("assignment '%s' not found in course '%s'", e.Assignment, e.Course)
}

// MalformedSheetError reports a worksheet that does not match the expected
// rubric layout. Reason names the missing or offending piece.
type MalformedSheetError struct {
	Sheet  string
	Reason string
}

func (e *MalformedSheetError) Error() string {
	return fmt.Sprintf("worksheet '%s': %s", e.Sheet, e.Reason)
}

// ExternalServiceError wraps an opaque failure from the grading platform or
// the sheet service. The cause stays reachable through errors.Unwrap.
type ExternalServiceError struct {
	Service string // "codepost" or "sheets"
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func externalErr(service, op string, err error) error {
	return &ExternalServiceError{Service: service, Op: op, Err: err}
}
