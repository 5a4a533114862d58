package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examportal/internal/exam"
	"github.com/pavelanni/examportal/internal/model"
	"github.com/pavelanni/examportal/internal/questions"
)

type submitRequest struct {
	ExamTitle string         `json:"exam_title" validate:"required,max=200"`
	ExamType  model.ExamType `json:"exam_type" validate:"required,oneof=Objective Subjective Mixed"`
	Answers   []any          `json:"answers"`
}

type submitResponse struct {
	ID     string                 `json:"id"`
	Score  model.Score            `json:"score"`
	Status model.SubmissionStatus `json:"status"`
}

func (h *Handler) handleMyAssignments(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	list, err := h.gate.ListForStudent(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// loadQuestions returns the questions of an exam, writing a 404 when there are none.
func (h *Handler) loadQuestions(w http.ResponseWriter, r *http.Request, examName string) ([]model.Question, bool) {
	qs, err := h.store.ListQuestionsByExam(r.Context(), examName)
	if err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return nil, false
	}
	if len(qs) == 0 {
		h.fail(w, r, http.StatusNotFound, exam.KindNotFound, "QUESTIONS_NOT_FOUND", "")
		return nil, false
	}
	return qs, true
}

func (h *Handler) handleExamQuestions(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	examName := chi.URLParam(r, "exam")

	if _, err := h.gate.CheckAccess(r.Context(), user.ID, examName); err != nil {
		h.writeError(w, r, err)
		return
	}
	qs, ok := h.loadQuestions(w, r, examName)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, questions.StripAnswers(qs))
}

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	examName := chi.URLParam(r, "exam")

	a, err := h.gate.CheckAccess(r.Context(), user.ID, examName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err = h.gate.Start(r.Context(), a.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req submitRequest
	if !h.decode(w, r, &req) {
		return
	}

	examTitle := strings.TrimSpace(req.ExamTitle)
	if _, err := h.gate.CheckAccess(r.Context(), user.ID, examTitle); err != nil {
		h.writeError(w, r, err)
		return
	}
	qs, ok := h.loadQuestions(w, r, examTitle)
	if !ok {
		return
	}
	sub, err := h.subs.Submit(r.Context(), exam.SubmitInput{
		StudentID: user.ID,
		ExamTitle: examTitle,
		ExamType:  req.ExamType,
		Questions: qs,
		Answers:   req.Answers,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{ID: sub.ID, Score: sub.Score, Status: sub.Status})
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sub, err := h.subs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sub.StudentID != user.ID && !user.Role.CanReview() {
		h.forbidden(w, r)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleStudentSubmissions(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.failValidation(w, r, exam.CodeInvalidInput)
		return
	}
	if id != user.ID && !user.Role.CanReview() {
		h.forbidden(w, r)
		return
	}
	subs, err := h.subs.ListByStudent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}
