package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/examportal/internal/auth"
	"github.com/pavelanni/examportal/internal/exam"
	appI18n "github.com/pavelanni/examportal/internal/i18n"
	"github.com/pavelanni/examportal/internal/model"
	"github.com/pavelanni/examportal/internal/store"
)

const maxBodyBytes = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	gate     *exam.Gate
	subs     *exam.Submissions
	tokens   *auth.Issuer
	config   model.ExamConfig
	validate *validator.Validate
}

// New creates a new Handler.
func New(s *store.Store, g *exam.Gate, subs *exam.Submissions, tokens *auth.Issuer, cfg model.ExamConfig) (*Handler, error) {
	if s == nil || g == nil || subs == nil || tokens == nil {
		return nil, errors.New("handler: store, gate, submissions and token issuer are required")
	}
	return &Handler{
		store:    s,
		gate:     g,
		subs:     subs,
		tokens:   tokens,
		config:   cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Routes registers all API routes under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(appI18n.Middleware(h.config.Lang))

		r.Get("/healthz", h.handleHealth)
		r.Post("/auth/signup", h.handleSignup)
		r.Post("/auth/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/me", h.handleMe)
			r.Post("/me/password", h.handleChangePassword)
			r.Get("/submissions/{id}", h.handleGetSubmission)
			r.Get("/students/{id}/submissions", h.handleStudentSubmissions)

			r.Group(func(r chi.Router) {
				r.Use(h.requireRole(model.UserRoleStudent))
				r.Get("/me/assignments", h.handleMyAssignments)
				r.Get("/exams/{exam}/questions", h.handleExamQuestions)
				r.Post("/exams/{exam}/start", h.handleStartExam)
				r.Post("/submissions", h.handleSubmit)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
				r.Get("/submissions", h.handleListSubmissions)
				r.Put("/submissions/{id}/review", h.handleReview)
				r.Get("/exams", h.handleExamSummaries)
				r.Post("/assignments", h.handleAssign)
				r.Get("/question-banks", h.handleExamBanks)
				r.Get("/questions", h.handleListQuestions)
				r.Post("/questions", h.handleCreateQuestion)
				r.Get("/questions/{id}", h.handleGetQuestion)
				r.Post("/questions/import", h.handleImportQuestions)
				r.Delete("/exams/{exam}/questions", h.handleDeleteQuestions)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.requireRole(model.UserRoleAdmin))
				r.Get("/users", h.handleListUsers)
				r.Post("/users", h.handleCreateUser)
				r.Post("/users/{id}/toggle", h.handleToggleUserActive)
			})
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func statusFor(k exam.Kind) int {
	switch k {
	case exam.KindValidation:
		return http.StatusBadRequest
	case exam.KindNotFound:
		return http.StatusNotFound
	case exam.KindConflict:
		return http.StatusConflict
	case exam.KindAuthorization:
		return http.StatusForbidden
	case exam.KindDependency:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as a JSON error body with a localized message.
// Errors that are not *exam.Error become 500 INTERNAL.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *exam.Error
	if !errors.As(err, &e) {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		h.fail(w, r, http.StatusInternalServerError, exam.KindInternal, "INTERNAL", "")
		return
	}
	status := statusFor(e.Kind)
	if status >= 500 {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", e.Code, "error", e)
	}
	h.fail(w, r, status, e.Kind, e.Code, e.Message)
}

// fail writes an error body. The message is translated from code, falling
// back to fallback when the bundle has no entry.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, kind exam.Kind, code, fallback string) {
	h.failWith(w, r, status, kind, code, nil, fallback)
}

func (h *Handler) failWith(w http.ResponseWriter, r *http.Request, status int, kind exam.Kind, code string, data map[string]any, fallback string) {
	writeJSON(w, status, map[string]errorBody{
		"error": {Kind: kind.String(), Code: code, Message: appI18n.ErrorMessage(r.Context(), code, data, fallback)},
	})
}

func (h *Handler) failValidation(w http.ResponseWriter, r *http.Request, code string) {
	h.fail(w, r, http.StatusBadRequest, exam.KindValidation, code, "")
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.failValidation(w, r, "INVALID_JSON")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		slog.Debug("request validation failed", "path", r.URL.Path, "error", err)
		h.failValidation(w, r, exam.CodeInvalidInput)
		return false
	}
	return true
}
