package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examportal/internal/exam"
	appI18n "github.com/pavelanni/examportal/internal/i18n"
	"github.com/pavelanni/examportal/internal/model"
	"github.com/pavelanni/examportal/internal/store"
)

const minPasswordLen = 8

// requireAuth is middleware that checks for a valid bearer token and loads
// the active user it names.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.unauthorized(w, r)
			return
		}

		claims, err := h.tokens.Parse(token)
		if err != nil {
			slog.Debug("rejected token", "error", err)
			h.unauthorized(w, r)
			return
		}

		user, err := h.store.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
			return
		}
		if user == nil || !user.Active {
			h.unauthorized(w, r)
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="examportal"`)
	h.fail(w, r, http.StatusUnauthorized, exam.KindAuthorization, "UNAUTHORIZED", "")
}

func (h *Handler) forbidden(w http.ResponseWriter, r *http.Request) {
	h.fail(w, r, http.StatusForbidden, exam.KindAuthorization, "FORBIDDEN", "")
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func (h *Handler) requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				h.unauthorized(w, r)
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			h.forbidden(w, r)
		})
	}
}

type signupRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Username        string `json:"username" validate:"required,min=3,max=64"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type tokenResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// checkPassword writes a validation error and returns false when the
// password is too short or does not match its confirmation.
func (h *Handler) checkPassword(w http.ResponseWriter, r *http.Request, password, confirm string) bool {
	if utf8.RuneCountInString(password) < minPasswordLen {
		h.failWith(w, r, http.StatusBadRequest, exam.KindValidation, "PASSWORD_TOO_SHORT", map[string]any{"Min": minPasswordLen}, "")
		return false
	}
	if password != confirm {
		h.failValidation(w, r, "PASSWORD_MISMATCH")
		return false
	}
	return true
}

// createUser hashes the password and stores a new active user.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request, username, name, password string, role model.UserRole) (*model.User, bool) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	u := model.User{
		Username:     username,
		DisplayName:  strings.TrimSpace(name),
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if u.DisplayName == "" {
		u.DisplayName = username
	}
	id, err := h.store.CreateUser(r.Context(), u)
	if errors.Is(err, store.ErrDuplicate) {
		h.fail(w, r, http.StatusConflict, exam.KindConflict, "USERNAME_TAKEN", "")
		return nil, false
	}
	if err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return nil, false
	}
	u.ID = id
	return &u, true
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.checkPassword(w, r, req.Password, req.ConfirmPassword) {
		return
	}

	user, ok := h.createUser(w, r, normalizeUsername(req.Username), req.Name, req.Password, model.UserRoleStudent)
	if !ok {
		return
	}
	h.respondWithToken(w, r, http.StatusCreated, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), normalizeUsername(req.Username))
	if err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.fail(w, r, http.StatusUnauthorized, exam.KindAuthorization, "INVALID_CREDENTIALS", "")
		return
	}
	if !user.Active {
		h.fail(w, r, http.StatusForbidden, exam.KindAuthorization, "ACCOUNT_DISABLED", "")
		return
	}
	h.respondWithToken(w, r, http.StatusOK, user)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user *model.User) {
	token, err := h.tokens.Sign(*user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("issued token", "user_id", user.ID, "role", user.Role)
	writeJSON(w, status, tokenResponse{Token: token, User: user})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.UserFromContext(r.Context()))
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.NewPassword == req.CurrentPassword {
		h.failValidation(w, r, "SAME_PASSWORD")
		return
	}
	if !h.checkPassword(w, r, req.NewPassword, req.ConfirmPassword) {
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		h.failValidation(w, r, "WRONG_PASSWORD")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.UpdatePasswordHash(r.Context(), user.ID, string(hash)); err != nil {
		h.writeError(w, r, &exam.Error{Kind: exam.KindDependency, Code: exam.CodeStorage, Err: err})
		return
	}
	slog.Info("changed password", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "PasswordChanged")})
}
