package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// IsValid reports whether r is a known role.
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleStudent, UserRoleTeacher, UserRoleAdmin:
		return true
	}
	return false
}

// CanReview reports whether the role may review submissions and manage exams.
func (r UserRole) CanReview() bool {
	return r == UserRoleTeacher || r == UserRoleAdmin
}

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// ExamType is the informational type an exam was submitted as.
type ExamType string

const (
	ExamObjective  ExamType = "Objective"
	ExamSubjective ExamType = "Subjective"
	ExamMixed      ExamType = "Mixed"
)

// IsValid reports whether t is a known exam type.
func (t ExamType) IsValid() bool {
	return t == ExamObjective || t == ExamSubjective || t == ExamMixed
}

// SubmissionStatus represents the grading status of a submission.
type SubmissionStatus string

const (
	StatusCompleted     SubmissionStatus = "Completed"
	StatusPendingReview SubmissionStatus = "Pending Review"
)

// AssignmentStatus represents where a student is in an assigned exam.
type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentStarted   AssignmentStatus = "started"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentFailed    AssignmentStatus = "failed"
)

// QuestionKind tags a Question as objective or subjective.
type QuestionKind string

const (
	QuestionObjective  QuestionKind = "objective"
	QuestionSubjective QuestionKind = "subjective"
)

// Question is an exam question. Kind is decided once when the question is
// loaded; only the fields for that kind are meaningful.
type Question struct {
	ID        int64        `json:"id"`
	ExamName  string       `json:"exam_name"`
	Kind      QuestionKind `json:"kind"`
	Text      string       `json:"text"`
	TimeLimit *int         `json:"time_limit,omitempty"`

	// Objective.
	Options []string      `json:"options,omitempty"`
	Correct CorrectOption `json:"correct_option"`

	// Subjective.
	ReferenceAnswer string  `json:"reference_answer,omitempty"`
	Marks           float64 `json:"marks,omitempty"`
}

// Answer is one element of a submission, aligned with the question ordering
// the submission was evaluated against.
type Answer struct {
	QuestionIndex int    `json:"question_index"`
	Value         any    `json:"answer"`
	QuestionText  string `json:"question_text"`
	IsCorrect     *bool  `json:"is_correct"`

	// Advisory only; never applied to IsCorrect or the score.
	SimilarityMatch  *bool    `json:"similarity_match,omitempty"`
	AdvisoryMarks    *float64 `json:"advisory_marks,omitempty"`
	AdvisoryFeedback string   `json:"advisory_feedback,omitempty"`
}

// Score aggregates a submission's marks.
type Score struct {
	ObjectiveScore  int     `json:"objective_score"`
	SubjectiveScore float64 `json:"subjective_score"`
	TotalScore      float64 `json:"total_score"`
}

// Submission is a student's single attempt record for an exam.
type Submission struct {
	ID             string           `json:"id"`
	StudentID      int64            `json:"student_id"`
	ExamTitle      string           `json:"exam_title"`
	ExamType       ExamType         `json:"exam_type"`
	Answers        []Answer         `json:"answers"`
	Score          Score            `json:"score"`
	TotalQuestions int              `json:"total_questions"`
	Status         SubmissionStatus `json:"status"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	ReviewedAt     *time.Time       `json:"reviewed_at,omitempty"`
	ReviewedBy     *int64           `json:"reviewed_by,omitempty"`
}

// ReviewedAnswer is a reviewer's verdict for one answer.
type ReviewedAnswer struct {
	QuestionIndex int  `json:"question_index"`
	IsCorrect     bool `json:"is_correct"`
}

// Assignment authorizes a student to take an exam.
type Assignment struct {
	ID           string           `json:"id"`
	StudentID    int64            `json:"student_id"`
	ExamName     string           `json:"exam_name"`
	Status       AssignmentStatus `json:"status"`
	AttemptCount int              `json:"attempt_count"`
	AssignedAt   time.Time        `json:"assigned_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
}

// ExamSummary aggregates the submissions of one exam.
type ExamSummary struct {
	ExamTitle     string  `json:"exam_title"`
	TotalAttempts int     `json:"total_attempts"`
	PendingReview int     `json:"pending_review"`
	AverageScore  float64 `json:"average_score"`
	HighestScore  float64 `json:"highest_score"`
	LowestScore   float64 `json:"lowest_score"`
}

// ExamBank describes the questions stored for one exam.
type ExamBank struct {
	ExamName   string   `json:"exam_name"`
	Type       ExamType `json:"type"`
	Objective  int      `json:"objective_questions"`
	Subjective int      `json:"subjective_questions"`
	Total      int      `json:"total_questions"`
}

// QuestionImport is used for loading questions from JSON. Entries with an
// options list are objective; all others are subjective.
type QuestionImport struct {
	ExamName        string         `json:"exam_name" validate:"max=200"`
	Text            string         `json:"question" validate:"required"`
	Options         []string       `json:"options,omitempty" validate:"omitempty,min=2,dive,required"`
	Correct         *CorrectOption `json:"correct_option,omitempty"`
	ReferenceAnswer string         `json:"answer,omitempty"`
	Marks           float64        `json:"marks,omitempty" validate:"gte=0"`
	TimeLimit       *int           `json:"timer,omitempty" validate:"omitempty,gt=0"`
}

// DefaultSubjectiveMarks is applied to imported subjective questions without marks.
const DefaultSubjectiveMarks = 10

// ToQuestion classifies the import entry and returns the tagged question.
func (qi QuestionImport) ToQuestion(defaultExam string) Question {
	exam := qi.ExamName
	if exam == "" {
		exam = defaultExam
	}
	q := Question{
		ExamName:  exam,
		Text:      qi.Text,
		TimeLimit: qi.TimeLimit,
	}
	if len(qi.Options) > 0 {
		q.Kind = QuestionObjective
		q.Options = qi.Options
		if qi.Correct != nil {
			q.Correct = *qi.Correct
		}
		return q
	}
	q.Kind = QuestionSubjective
	q.ReferenceAnswer = qi.ReferenceAnswer
	q.Marks = qi.Marks
	if q.Marks <= 0 {
		q.Marks = DefaultSubjectiveMarks
	}
	return q
}

// ExamConfig holds runtime exam parameters set via CLI flags.
type ExamConfig struct {
	MaxAttempts int
	Lang        string
}
