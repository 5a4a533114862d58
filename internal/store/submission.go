package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/examportal/internal/model"
)

const submissionColumns = `id, student_id, exam_title, exam_type, objective_score, subjective_score,
	total_score, total_questions, status, submitted_at, reviewed_at, reviewed_by`

// SubmissionFilter narrows ListSubmissions. Zero fields match everything.
type SubmissionFilter struct {
	StudentID int64
	ExamTitle string
}

// CreateSubmission stores a graded submission with its answers and marks the
// student's assignment completed, all in one transaction. A second submission
// for the same student and exam returns ErrDuplicate; a missing or failed
// assignment returns ErrClosed. Nothing is written in either case.
func (s *Store) CreateSubmission(ctx context.Context, sub model.Submission) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO submissions (id, student_id, exam_title, exam_type, objective_score, subjective_score,
		 total_score, total_questions, status, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.StudentID, sub.ExamTitle, sub.ExamType, sub.Score.ObjectiveScore, sub.Score.SubjectiveScore,
		sub.Score.TotalScore, sub.TotalQuestions, sub.Status, sub.SubmittedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	for _, a := range sub.Answers {
		value, err := json.Marshal(a.Value)
		if err != nil {
			return fmt.Errorf("encode answer %d: %w", a.QuestionIndex, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO submission_answers (submission_id, question_index, answer, question_text, is_correct, similarity_match)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sub.ID, a.QuestionIndex, string(value), a.QuestionText, a.IsCorrect, a.SimilarityMatch,
		)
		if err != nil {
			return fmt.Errorf("insert answer %d: %w", a.QuestionIndex, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE assignments SET status = ?
		 WHERE student_id = ? AND exam_name = ? AND status IN (?, ?)`,
		model.AssignmentCompleted, sub.StudentID, sub.ExamTitle, model.AssignmentAssigned, model.AssignmentStarted,
	)
	if err != nil {
		return fmt.Errorf("complete assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrClosed
	}

	return tx.Commit()
}

// GetSubmission returns a submission with its answers.
func (s *Store) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sub.Answers, err = s.answersFor(ctx, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubmissions returns matching submissions with their answers, newest first.
func (s *Store) ListSubmissions(ctx context.Context, f SubmissionFilter) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE 1=1`
	var args []any
	if f.StudentID != 0 {
		query += ` AND student_id = ?`
		args = append(args, f.StudentID)
	}
	if f.ExamTitle != "" {
		query += ` AND exam_title = ?`
		args = append(args, f.ExamTitle)
	}
	query += ` ORDER BY submitted_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		subs = append(subs, sub)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Answers are loaded after the cursor is closed; an in-memory database
	// has a single connection.
	for i := range subs {
		if subs[i].Answers, err = s.answersFor(ctx, subs[i].ID); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func scanSubmission(r rowScanner) (model.Submission, error) {
	var sub model.Submission
	err := r.Scan(&sub.ID, &sub.StudentID, &sub.ExamTitle, &sub.ExamType,
		&sub.Score.ObjectiveScore, &sub.Score.SubjectiveScore, &sub.Score.TotalScore,
		&sub.TotalQuestions, &sub.Status, &sub.SubmittedAt, &sub.ReviewedAt, &sub.ReviewedBy)
	return sub, err
}

func (s *Store) answersFor(ctx context.Context, submissionID string) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_index, answer, question_text, is_correct, similarity_match, advisory_marks, advisory_feedback
		 FROM submission_answers WHERE submission_id = ? ORDER BY question_index`, submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	answers := []model.Answer{}
	for rows.Next() {
		var a model.Answer
		var value string
		if err := rows.Scan(&a.QuestionIndex, &value, &a.QuestionText, &a.IsCorrect,
			&a.SimilarityMatch, &a.AdvisoryMarks, &a.AdvisoryFeedback); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(value), &a.Value); err != nil {
			return nil, fmt.Errorf("decode answer %d: %w", a.QuestionIndex, err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ApplyReview overwrites is_correct for every reviewed answer whose index
// exists, sets the subjective score when given, and marks the submission
// Completed. All changes commit together or not at all.
func (s *Store) ApplyReview(ctx context.Context, id string, reviewerID int64, subjective *float64, reviewed []model.ReviewedAnswer, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM submissions WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	for _, r := range reviewed {
		// Unknown indexes update nothing.
		if _, err := tx.ExecContext(ctx,
			`UPDATE submission_answers SET is_correct = ? WHERE submission_id = ? AND question_index = ?`,
			r.IsCorrect, id, r.QuestionIndex,
		); err != nil {
			return fmt.Errorf("review answer %d: %w", r.QuestionIndex, err)
		}
	}

	if subjective != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE submissions SET subjective_score = ?, total_score = objective_score + ? WHERE id = ?`,
			*subjective, *subjective, id,
		)
		if err != nil {
			return fmt.Errorf("update score: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE submissions SET status = ?, reviewed_at = ?, reviewed_by = ? WHERE id = ?`,
		model.StatusCompleted, now, reviewerID, id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return tx.Commit()
}

// SetAdvisory stores a suggested mark and feedback for one answer.
func (s *Store) SetAdvisory(ctx context.Context, submissionID string, questionIndex int, marks float64, feedback string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE submission_answers SET advisory_marks = ?, advisory_feedback = ?
		 WHERE submission_id = ? AND question_index = ?`,
		marks, feedback, submissionID, questionIndex,
	)
	return err
}

// ExamSummaries aggregates submissions per exam title.
func (s *Store) ExamSummaries(ctx context.Context) ([]model.ExamSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exam_title, COUNT(*),
		        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		        AVG(total_score), MAX(total_score), MIN(total_score)
		 FROM submissions GROUP BY exam_title ORDER BY exam_title`,
		model.StatusPendingReview,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ExamSummary
	for rows.Next() {
		var es model.ExamSummary
		if err := rows.Scan(&es.ExamTitle, &es.TotalAttempts, &es.PendingReview,
			&es.AverageScore, &es.HighestScore, &es.LowestScore); err != nil {
			return nil, err
		}
		out = append(out, es)
	}
	return out, rows.Err()
}
