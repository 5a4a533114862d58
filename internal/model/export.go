package model

import "time"

// ExamExport is the top-level JSON structure for exam result export.
type ExamExport struct {
	ExamTitle  string          `json:"exam_title"`
	ExportedAt time.Time       `json:"exported_at"`
	Summary    *ExamSummary    `json:"summary,omitempty"`
	Results    []StudentResult `json:"results"`
}

// StudentResult holds one student's submission for export.
type StudentResult struct {
	Username     string           `json:"username"`
	DisplayName  string           `json:"display_name"`
	SubmissionID string           `json:"submission_id"`
	ExamType     ExamType         `json:"exam_type"`
	Status       SubmissionStatus `json:"status"`
	Score        Score            `json:"score"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	ReviewedAt   *time.Time       `json:"reviewed_at,omitempty"`
	Answers      []Answer         `json:"answers"`
}
