package exam

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examportal/internal/model"
	"github.com/pavelanni/examportal/internal/store"
)

// DefaultMaxAttempts is the number of starts allowed per assignment.
const DefaultMaxAttempts = 1

// AssignmentStore is the persistence the Gate needs.
type AssignmentStore interface {
	CreateAssignment(ctx context.Context, a model.Assignment) error
	GetAssignmentFor(ctx context.Context, studentID int64, examName string) (model.Assignment, error)
	ListAssignmentsForStudent(ctx context.Context, studentID int64) ([]model.Assignment, error)
	StartAssignment(ctx context.Context, id string, maxAttempts int, now time.Time) (model.Assignment, error)
	FailStaleAssignments(ctx context.Context, cutoff time.Time) (int64, error)
}

// Gate decides whether a student may see, start and submit an exam.
type Gate struct {
	store       AssignmentStore
	maxAttempts int
	now         func() time.Time
}

// NewGate returns a Gate allowing maxAttempts starts per assignment.
// Values below 1 fall back to DefaultMaxAttempts.
func NewGate(s AssignmentStore, maxAttempts int) *Gate {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Gate{store: s, maxAttempts: maxAttempts, now: func() time.Time { return time.Now().UTC() }}
}

// MaxAttempts returns the configured attempt limit.
func (g *Gate) MaxAttempts() int { return g.maxAttempts }

// Assign gives studentID access to examName.
func (g *Gate) Assign(ctx context.Context, studentID int64, examName string) (model.Assignment, error) {
	examName = strings.TrimSpace(examName)
	if studentID <= 0 || examName == "" {
		return model.Assignment{}, newError(KindValidation, CodeInvalidInput, "student id and exam name are required")
	}
	a := model.Assignment{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		ExamName:   examName,
		Status:     model.AssignmentAssigned,
		AssignedAt: g.now(),
	}
	err := g.store.CreateAssignment(ctx, a)
	if errors.Is(err, store.ErrDuplicate) {
		return model.Assignment{}, newError(KindConflict, CodeDuplicateAssignment, "exam already assigned to this student")
	}
	if err != nil {
		return model.Assignment{}, dependency("create assignment", err)
	}
	slog.Info("assigned exam", "assignment_id", a.ID, "student_id", studentID, "exam", examName)
	return a, nil
}

// Start records one attempt on an assignment.
func (g *Gate) Start(ctx context.Context, assignmentID string) (model.Assignment, error) {
	a, err := g.store.StartAssignment(ctx, assignmentID, g.maxAttempts, g.now())
	switch {
	case err == nil:
		slog.Info("started exam", "assignment_id", a.ID, "student_id", a.StudentID, "attempt", a.AttemptCount)
		return a, nil
	case errors.Is(err, store.ErrNotFound):
		return a, newError(KindNotFound, CodeAssignmentNotFound, "assignment not found")
	case errors.Is(err, store.ErrAttemptLimit):
		return a, newError(KindConflict, CodeAttemptLimit, "no attempts left for this exam")
	case errors.Is(err, store.ErrClosed):
		return a, newError(KindConflict, CodeAssignmentClosed, "assignment is no longer open")
	}
	return a, dependency("start assignment", err)
}

// CheckAccess returns the assignment of examName to studentID, or a
// NOT_ASSIGNED authorization error.
func (g *Gate) CheckAccess(ctx context.Context, studentID int64, examName string) (model.Assignment, error) {
	a, err := g.store.GetAssignmentFor(ctx, studentID, examName)
	if errors.Is(err, store.ErrNotFound) {
		return a, newError(KindAuthorization, CodeNotAssigned, "exam is not assigned to this student")
	}
	if err != nil {
		return a, dependency("check access", err)
	}
	return a, nil
}

// ListForStudent returns every assignment of a student.
func (g *Gate) ListForStudent(ctx context.Context, studentID int64) ([]model.Assignment, error) {
	list, err := g.store.ListAssignmentsForStudent(ctx, studentID)
	if err != nil {
		return nil, dependency("list assignments", err)
	}
	if list == nil {
		list = []model.Assignment{}
	}
	return list, nil
}

// ExpireAbandoned fails started assignments that began more than olderThan ago
// and were never submitted.
func (g *Gate) ExpireAbandoned(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := g.store.FailStaleAssignments(ctx, g.now().Add(-olderThan))
	if err != nil {
		return 0, dependency("expire assignments", err)
	}
	if n > 0 {
		slog.Info("expired abandoned assignments", "count", n, "older_than", olderThan)
	}
	return n, nil
}
