// Package exam holds the assignment gate and the submission lifecycle: who may
// take an exam, how attempts are recorded, and how reviews change a score.
package exam

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for callers that map it onto a transport.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindAuthorization
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindDependency:
		return "dependency"
	}
	return "internal"
}

// Error codes.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidScore        = "INVALID_SCORE"
	CodeSubmissionNotFound  = "SUBMISSION_NOT_FOUND"
	CodeAssignmentNotFound  = "ASSIGNMENT_NOT_FOUND"
	CodeDuplicateSubmission = "DUPLICATE_SUBMISSION"
	CodeDuplicateAssignment = "DUPLICATE_ASSIGNMENT"
	CodeAttemptLimit        = "ATTEMPT_LIMIT_EXCEEDED"
	CodeAssignmentClosed    = "ASSIGNMENT_CLOSED"
	CodeNotAssigned         = "NOT_ASSIGNED"
	CodeStorage             = "STORAGE_UNAVAILABLE"
)

// Error is returned by every operation in this package.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func dependency(op string, err error) *Error {
	return &Error{Kind: KindDependency, Code: CodeStorage, Message: op, Err: err}
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, or "" if err is not an *Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
