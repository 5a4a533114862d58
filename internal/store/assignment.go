package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/examportal/internal/model"
)

const assignmentColumns = `id, student_id, exam_name, status, attempt_count, assigned_at, started_at`

func scanAssignment(r rowScanner) (model.Assignment, error) {
	var a model.Assignment
	err := r.Scan(&a.ID, &a.StudentID, &a.ExamName, &a.Status, &a.AttemptCount, &a.AssignedAt, &a.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

// CreateAssignment inserts an assignment. A second assignment of the same exam
// to the same student returns ErrDuplicate.
func (s *Store) CreateAssignment(ctx context.Context, a model.Assignment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (id, student_id, exam_name, status, attempt_count, assigned_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.StudentID, a.ExamName, a.Status, a.AttemptCount, a.AssignedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetAssignment returns an assignment by ID.
func (s *Store) GetAssignment(ctx context.Context, id string) (model.Assignment, error) {
	return scanAssignment(s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id,
	))
}

// GetAssignmentFor returns the assignment of examName to studentID.
func (s *Store) GetAssignmentFor(ctx context.Context, studentID int64, examName string) (model.Assignment, error) {
	return scanAssignment(s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE student_id = ? AND exam_name = ?`,
		studentID, examName,
	))
}

// ListAssignmentsForStudent returns a student's assignments, newest first.
func (s *Store) ListAssignmentsForStudent(ctx context.Context, studentID int64) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE student_id = ? ORDER BY assigned_at DESC, id`,
		studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// StartAssignment consumes one attempt. The limit check and the increment are a
// single statement, so concurrent starts cannot both pass. When nothing is
// updated the current row decides which error is returned: ErrNotFound,
// ErrClosed for completed or failed assignments, ErrAttemptLimit otherwise.
func (s *Store) StartAssignment(ctx context.Context, id string, maxAttempts int, now time.Time) (model.Assignment, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments
		 SET status = ?, attempt_count = attempt_count + 1, started_at = ?
		 WHERE id = ? AND attempt_count < ? AND status IN (?, ?)`,
		model.AssignmentStarted, now, id, maxAttempts, model.AssignmentAssigned, model.AssignmentStarted,
	)
	if err != nil {
		return model.Assignment{}, fmt.Errorf("start assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Assignment{}, err
	}

	a, err := s.GetAssignment(ctx, id)
	if err != nil {
		return a, err
	}
	if n == 1 {
		return a, nil
	}
	switch a.Status {
	case model.AssignmentCompleted, model.AssignmentFailed:
		return a, ErrClosed
	}
	return a, ErrAttemptLimit
}

// FailStaleAssignments marks started assignments whose start predates cutoff as
// failed and returns how many were changed.
func (s *Store) FailStaleAssignments(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET status = ? WHERE status = ? AND started_at < ?`,
		model.AssignmentFailed, model.AssignmentStarted, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale assignments: %w", err)
	}
	return res.RowsAffected()
}
