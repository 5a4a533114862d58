package exam

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examportal/internal/grading"
	"github.com/pavelanni/examportal/internal/model"
	"github.com/pavelanni/examportal/internal/store"
)

// SubmissionStore is the persistence the submission lifecycle needs.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub model.Submission) error
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	ListSubmissions(ctx context.Context, f store.SubmissionFilter) ([]model.Submission, error)
	ApplyReview(ctx context.Context, id string, reviewerID int64, subjective *float64, reviewed []model.ReviewedAnswer, now time.Time) error
	SetAdvisory(ctx context.Context, submissionID string, questionIndex int, marks float64, feedback string) error
	ExamSummaries(ctx context.Context) ([]model.ExamSummary, error)
}

// Advisor suggests marks for a free-text answer. Suggestions are stored next
// to the answer and never change its grade.
type Advisor interface {
	Advise(ctx context.Context, q model.Question, answer string) (marks float64, feedback string, err error)
}

const (
	advisoryTimeout = 2 * time.Minute
	// advisoryQueuePerWorker bounds how many submissions may wait for an
	// advisor per worker. Jobs beyond that are dropped.
	advisoryQueuePerWorker = 16
)

// SubmitInput is one exam attempt as handed in by a student.
type SubmitInput struct {
	StudentID int64
	ExamTitle string
	ExamType  model.ExamType
	Questions []model.Question
	Answers   []any
}

// ReviewInput is a reviewer's decision on a submission. A nil SubjectiveScore
// leaves the score unchanged.
type ReviewInput struct {
	SubmissionID    string
	ReviewerID      int64
	SubjectiveScore *float64
	Answers         []model.ReviewedAnswer
}

// Submissions grades and stores exam attempts and applies reviews.
type Submissions struct {
	store SubmissionStore
	gate  *Gate
	now   func() time.Time

	advisor Advisor
	jobs    chan advisoryJob
	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
}

type advisoryJob struct {
	sub       model.Submission
	questions []model.Question
}

// NewSubmissions returns a lifecycle that checks access through gate.
func NewSubmissions(s SubmissionStore, gate *Gate) *Submissions {
	return &Submissions{
		store: s,
		gate:  gate,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// UseAdvisor enables background advisory marking of subjective answers by
// concurrency workers. Advisor calls run under ctx; cancelling it aborts calls
// in flight and discards queued jobs.
func (s *Submissions) UseAdvisor(ctx context.Context, a Advisor, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	s.advisor = a
	s.jobs = make(chan advisoryJob, concurrency*advisoryQueuePerWorker)
	for range concurrency {
		s.wg.Add(1)
		go s.adviseWorker(ctx)
	}
}

// Wait stops accepting advisory jobs and blocks until the workers have
// drained the queue. Submissions after Wait are stored without advice.
func (s *Submissions) Wait() {
	s.mu.Lock()
	if s.jobs != nil && !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Submit evaluates an attempt and stores it. The student must hold an open
// assignment for the exam. Each student can submit an exam once; later
// attempts fail with DUPLICATE_SUBMISSION.
func (s *Submissions) Submit(ctx context.Context, in SubmitInput) (*model.Submission, error) {
	in.ExamTitle = strings.TrimSpace(in.ExamTitle)
	switch {
	case in.StudentID <= 0:
		return nil, newError(KindValidation, CodeInvalidInput, "student id is required")
	case in.ExamTitle == "":
		return nil, newError(KindValidation, CodeInvalidInput, "exam title is required")
	case !in.ExamType.IsValid():
		return nil, newError(KindValidation, CodeInvalidInput, "exam type must be Objective, Subjective or Mixed")
	case len(in.Questions) == 0:
		return nil, newError(KindValidation, CodeInvalidInput, "exam has no questions")
	}

	a, err := s.gate.CheckAccess(ctx, in.StudentID, in.ExamTitle)
	if err != nil {
		return nil, err
	}
	if a.Status == model.AssignmentFailed {
		return nil, newError(KindConflict, CodeAssignmentClosed, "assignment is no longer open")
	}

	res := grading.Evaluate(in.ExamType, in.Questions, in.Answers)
	sub := model.Submission{
		ID:        uuid.NewString(),
		StudentID: in.StudentID,
		ExamTitle: in.ExamTitle,
		ExamType:  in.ExamType,
		Answers:   res.Answers,
		Score: model.Score{
			ObjectiveScore:  res.ObjectiveScore,
			SubjectiveScore: res.SubjectiveScore,
			TotalScore:      res.TotalScore,
		},
		TotalQuestions: len(in.Questions),
		Status:         res.Status,
		SubmittedAt:    s.now(),
	}

	err = s.store.CreateSubmission(ctx, sub)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return nil, newError(KindConflict, CodeDuplicateSubmission, "exam already submitted")
	case errors.Is(err, store.ErrClosed):
		return nil, newError(KindConflict, CodeAssignmentClosed, "assignment is no longer open")
	case err != nil:
		return nil, dependency("create submission", err)
	}

	slog.Info("stored submission",
		"submission_id", sub.ID,
		"student_id", sub.StudentID,
		"exam", sub.ExamTitle,
		"objective_score", sub.Score.ObjectiveScore,
		"status", sub.Status,
	)

	if s.advisor != nil && sub.Status == model.StatusPendingReview {
		s.adviseAsync(sub, in.Questions)
	}
	return &sub, nil
}

// adviseAsync queues sub for advisory marking. A full queue drops the job.
func (s *Submissions) adviseAsync(sub model.Submission, questions []model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.jobs <- advisoryJob{sub: sub, questions: questions}:
	default:
		slog.Warn("advisory queue full, skipping submission", "submission_id", sub.ID)
	}
}

func (s *Submissions) adviseWorker(ctx context.Context) {
	defer s.wg.Done()
	for job := range s.jobs {
		if ctx.Err() != nil {
			slog.Debug("advisory job discarded", "submission_id", job.sub.ID)
			continue
		}
		s.advise(ctx, job)
	}
}

// advise asks the advisor about every subjective answer of a submission.
// Failures are logged and leave the answer without a suggestion.
func (s *Submissions) advise(ctx context.Context, job advisoryJob) {
	ctx, cancel := context.WithTimeout(ctx, advisoryTimeout)
	defer cancel()

	sub := job.sub
	for i, q := range job.questions {
		if q.Kind != model.QuestionSubjective || i >= len(sub.Answers) {
			continue
		}
		text := grading.AnswerText(sub.Answers[i].Value)
		if text == "" {
			continue
		}
		marks, feedback, err := s.advisor.Advise(ctx, q, text)
		if err != nil {
			slog.Warn("advisory grading failed", "submission_id", sub.ID, "question_index", i, "error", err)
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if err := s.store.SetAdvisory(ctx, sub.ID, i, marks, feedback); err != nil {
			slog.Warn("store advisory marks", "submission_id", sub.ID, "question_index", i, "error", err)
		}
	}
}

// Review applies a reviewer's verdicts and optional subjective score, then
// marks the submission Completed. Unknown question indexes are ignored.
func (s *Submissions) Review(ctx context.Context, in ReviewInput) (*model.Submission, error) {
	if in.SubmissionID == "" {
		return nil, newError(KindValidation, CodeInvalidInput, "submission id is required")
	}
	if in.SubjectiveScore != nil && *in.SubjectiveScore < 0 {
		return nil, newError(KindValidation, CodeInvalidScore, "subjective score must not be negative")
	}

	err := s.store.ApplyReview(ctx, in.SubmissionID, in.ReviewerID, in.SubjectiveScore, in.Answers, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, CodeSubmissionNotFound, "submission not found")
	}
	if err != nil {
		return nil, dependency("review submission", err)
	}
	slog.Info("reviewed submission", "submission_id", in.SubmissionID, "reviewer_id", in.ReviewerID, "answers", len(in.Answers))
	return s.Get(ctx, in.SubmissionID)
}

// Get returns one submission.
func (s *Submissions) Get(ctx context.Context, id string) (*model.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, CodeSubmissionNotFound, "submission not found")
	}
	if err != nil {
		return nil, dependency("get submission", err)
	}
	return sub, nil
}

// ListByStudent returns a student's submissions, newest first.
func (s *Submissions) ListByStudent(ctx context.Context, studentID int64) ([]model.Submission, error) {
	return s.list(ctx, store.SubmissionFilter{StudentID: studentID})
}

// ListByExam returns every submission of an exam, newest first.
func (s *Submissions) ListByExam(ctx context.Context, examTitle string) ([]model.Submission, error) {
	return s.list(ctx, store.SubmissionFilter{ExamTitle: examTitle})
}

// ListAll returns every submission, newest first.
func (s *Submissions) ListAll(ctx context.Context) ([]model.Submission, error) {
	return s.list(ctx, store.SubmissionFilter{})
}

func (s *Submissions) list(ctx context.Context, f store.SubmissionFilter) ([]model.Submission, error) {
	subs, err := s.store.ListSubmissions(ctx, f)
	if err != nil {
		return nil, dependency("list submissions", err)
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	return subs, nil
}

// ExamSummaries returns attempt counts and score statistics per exam.
func (s *Submissions) ExamSummaries(ctx context.Context) ([]model.ExamSummary, error) {
	sums, err := s.store.ExamSummaries(ctx)
	if err != nil {
		return nil, dependency("exam summaries", err)
	}
	if sums == nil {
		sums = []model.ExamSummary{}
	}
	return sums, nil
}
