package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examportal/internal/exam"
	appI18n "github.com/pavelanni/examportal/internal/i18n"
	"github.com/pavelanni/examportal/internal/model"
	"github.com/pavelanni/examportal/internal/questions"
	"github.com/pavelanni/examportal/internal/store"
)

type reviewRequest struct {
	SubjectiveScore *float64               `json:"subjective_score"`
	Answers         []model.ReviewedAnswer `json:"answers"`
}

type assignRequest struct {
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	ExamName  string `json:"exam_name" validate:"required,max=200"`
}

type createUserRequest struct {
	Username        string         `json:"username" validate:"required,min=3,max=64"`
	DisplayName     string         `json:"display_name" validate:"max=100"`
	Password        string         `json:"password" validate:"required"`
	ConfirmPassword string         `json:"confirm_password" validate:"required"`
	Role            model.UserRole `json:"role" validate:"required,oneof=student teacher admin"`
}

type importResponse struct {
	Imported  int    `json:"imported"`
	Duplicate bool   `json:"duplicate"`
	Message   string `json:"message"`
}

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	var (
		subs []model.Submission
		err  error
	)
	if examTitle := r.URL.Query().Get("exam"); examTitle != "" {
		subs, err = h.subs.ListByExam(r.Context(), examTitle)
	} else {
		subs, err = h.subs.ListAll(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req reviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, err := h.subs.Review(r.Context(), exam.ReviewInput{
		SubmissionID:    chi.URLParam(r, "id"),
		ReviewerID:      user.ID,
		SubjectiveScore: req.SubjectiveScore,
		Answers:         req.Answers,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleExamSummaries(w http.ResponseWriter, r *http.Request) {
	sums, err := h.subs.ExamSummaries(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sums)
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !h.decode(w, r, &req) {
		return
	}
	student, err := h.store.GetUserByID(r.Context(), req.StudentID)
	if err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return
	}
	if student == nil || student.Role != model.UserRoleStudent {
		h.fail(w, r, http.StatusNotFound, exam.KindNotFound, "USER_NOT_FOUND", "")
		return
	}
	a, err := h.gate.Assign(r.Context(), req.StudentID, req.ExamName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// handleImportQuestions accepts a JSON question bank either as a multipart
// file field "questions_file" or as the raw request body. The "exam" query
// parameter names the exam for entries without one.
func (h *Handler) handleImportQuestions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var (
		data   []byte
		source string
		err    error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := r.FormFile("questions_file")
		if ferr != nil {
			h.failValidation(w, r, exam.CodeInvalidInput)
			return
		}
		defer file.Close()
		data, err = io.ReadAll(file)
		source = "upload:" + header.Filename
	} else {
		data, err = io.ReadAll(r.Body)
		source = "upload:" + r.URL.Query().Get("name")
	}
	if err != nil {
		h.failValidation(w, r, exam.CodeInvalidInput)
		return
	}

	n, err := questions.Import(r.Context(), h.store, source, data, r.URL.Query().Get("exam"), true)
	if errors.Is(err, questions.ErrUnchanged) {
		writeJSON(w, http.StatusOK, importResponse{Duplicate: true, Message: appI18n.Tp(r.Context(), "QuestionsImported", 0)})
		return
	}
	if err != nil {
		slog.Warn("question import rejected", "source", source, "error", err)
		h.failWith(w, r, http.StatusBadRequest, exam.KindValidation, "INVALID_QUESTIONS", map[string]any{"Detail": err.Error()}, err.Error())
		return
	}
	slog.Info("uploaded questions via API", "source", source, "count", n)
	writeJSON(w, http.StatusCreated, importResponse{Imported: n, Message: appI18n.Tp(r.Context(), "QuestionsImported", n)})
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var qi model.QuestionImport
	if !h.decode(w, r, &qi) {
		return
	}
	q, err := questions.Build(qi, "")
	if err != nil {
		h.failWith(w, r, http.StatusBadRequest, exam.KindValidation, "INVALID_QUESTIONS", map[string]any{"Detail": err.Error()}, err.Error())
		return
	}
	q.ID, err = h.store.InsertQuestion(r.Context(), q)
	if err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return
	}
	slog.Info("created question", "id", q.ID, "exam", q.ExamName, "kind", q.Kind)
	writeJSON(w, http.StatusCreated, q)
}

// handleListQuestions returns the questions of the exam named by the "exam"
// query parameter, answer keys included.
func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	examName := strings.TrimSpace(r.URL.Query().Get("exam"))
	if examName == "" {
		h.failValidation(w, r, exam.CodeInvalidInput)
		return
	}
	qs, ok := h.loadQuestions(w, r, examName)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *Handler) handleExamBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.store.ExamBanks(r.Context())
	if err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return
	}
	writeJSON(w, http.StatusOK, banks)
}

// handleGetQuestion returns a question with its answer key.
func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.failValidation(w, r, exam.CodeInvalidInput)
		return
	}
	q, err := h.store.GetQuestion(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.fail(w, r, http.StatusNotFound, exam.KindNotFound, "QUESTIONS_NOT_FOUND", "")
		return
	}
	if err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleDeleteQuestions(w http.ResponseWriter, r *http.Request) {
	examName := chi.URLParam(r, "exam")
	n, err := h.store.DeleteQuestionsByExam(r.Context(), examName)
	if err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return
	}
	if n == 0 {
		h.fail(w, r, http.StatusNotFound, exam.KindNotFound, "QUESTIONS_NOT_FOUND", "")
		return
	}
	slog.Info("deleted questions", "exam", examName, "count", n)
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": n,
		"message": appI18n.Tp(r.Context(), "QuestionsDeleted", int(n)),
	})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	role := model.UserRole(r.URL.Query().Get("role"))
	if role != "" && !role.IsValid() {
		h.failValidation(w, r, exam.CodeInvalidInput)
		return
	}
	users, err := h.store.ListUsers(r.Context(), role)
	if err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.checkPassword(w, r, req.Password, req.ConfirmPassword) {
		return
	}
	user, ok := h.createUser(w, r, normalizeUsername(req.Username), req.DisplayName, req.Password, req.Role)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.failValidation(w, r, exam.CodeInvalidInput)
		return
	}
	if current := model.UserFromContext(r.Context()); current.ID == id {
		h.forbidden(w, r)
		return
	}

	err = h.store.ToggleUserActive(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.fail(w, r, http.StatusNotFound, exam.KindNotFound, "USER_NOT_FOUND", "")
		return
	}
	if err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return
	}
	slog.Info("toggled user active", "id", id, "active", user.Active)
	writeJSON(w, http.StatusOK, user)
}
