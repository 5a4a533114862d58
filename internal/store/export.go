package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/examportal/internal/model"
)

// ExportExam builds export-ready student results for every submission of an exam.
// Submissions of deleted users are exported with empty names.
func (s *Store) ExportExam(ctx context.Context, examTitle string) ([]model.StudentResult, error) {
	subs, err := s.ListSubmissions(ctx, SubmissionFilter{ExamTitle: examTitle})
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	names, err := s.studentNames(ctx, examTitle)
	if err != nil {
		return nil, fmt.Errorf("load student names: %w", err)
	}

	results := make([]model.StudentResult, 0, len(subs))
	for _, sub := range subs {
		u := names[sub.StudentID]
		results = append(results, model.StudentResult{
			Username:     u.Username,
			DisplayName:  u.DisplayName,
			SubmissionID: sub.ID,
			ExamType:     sub.ExamType,
			Status:       sub.Status,
			Score:        sub.Score,
			SubmittedAt:  sub.SubmittedAt,
			ReviewedAt:   sub.ReviewedAt,
			Answers:      sub.Answers,
		})
	}
	return results, nil
}

func (s *Store) studentNames(ctx context.Context, examTitle string) (map[int64]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.username, u.display_name FROM users u
		 WHERE u.id IN (SELECT student_id FROM submissions WHERE exam_title = ?)`, examTitle,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make(map[int64]model.User)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName); err != nil {
			return nil, err
		}
		names[u.ID] = u
	}
	return names, rows.Err()
}
