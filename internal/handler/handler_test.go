package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examportal/internal/auth"
	"github.com/pavelanni/examportal/internal/exam"
	appI18n "github.com/pavelanni/examportal/internal/i18n"
	"github.com/pavelanni/examportal/internal/model"
	"github.com/pavelanni/examportal/internal/store"
)

type testServer struct {
	store  *store.Store
	tokens *auth.Issuer
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	tokens, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	g := exam.NewGate(s, 1)
	h, err := New(s, g, exam.NewSubmissions(s, g), tokens, model.ExamConfig{MaxAttempts: 1, Lang: "en"})
	if err != nil {
		t.Fatalf("handler.New: %v", err)
	}
	r := chi.NewRouter()
	h.Routes(r)
	return &testServer{store: s, tokens: tokens, router: r}
}

// createUser stores a user with a cheap password hash and returns it with a token.
func (ts *testServer) createUser(t *testing.T, username string, role model.UserRole) (*model.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := model.User{Username: username, DisplayName: username, PasswordHash: string(hash), Role: role, Active: true}
	id, err := ts.store.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u.ID = id
	token, err := ts.tokens.Sign(u)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return &u, token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	return decodeBody[map[string]errorBody](t, rec)["error"]
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func seedBioExam(t *testing.T, s *store.Store) {
	t.Helper()
	err := s.InsertQuestions(context.Background(), []model.Question{
		{ExamName: "bio", Kind: model.QuestionObjective, Text: "2+2?", Options: []string{"3", "4"}, Correct: model.IndexOption(1)},
		{ExamName: "bio", Kind: model.QuestionObjective, Text: "Capital of France?", Options: []string{"Paris", "Rome"}, Correct: model.ValueOption("Paris")},
		{ExamName: "bio", Kind: model.QuestionSubjective, Text: "Mitochondria?", ReferenceAnswer: "mitochondria is powerhouse of the cell", Marks: 10},
	})
	if err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestSignupAndLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Alice", "username": " Alice@Example.com ", "password": "secret123", "confirm_password": "secret123",
	})
	expectStatus(t, rec, http.StatusCreated)
	signup := decodeBody[tokenResponse](t, rec)
	if signup.Token == "" {
		t.Fatal("expected a token")
	}
	if signup.User.Username != "alice@example.com" || signup.User.Role != model.UserRoleStudent {
		t.Errorf("unexpected user %+v", signup.User)
	}

	rec = ts.do(t, http.MethodGet, "/api/me", signup.Token, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice@example.com", "password": "secret123"})
	expectStatus(t, rec, http.StatusOK)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice@example.com", "password": "wrong-pass"})
	expectStatus(t, rec, http.StatusUnauthorized)
	if got := errorCode(t, rec).Code; got != "INVALID_CREDENTIALS" {
		t.Errorf("expected INVALID_CREDENTIALS, got %s", got)
	}

	rec = ts.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Alice", "username": "alice@example.com", "password": "secret123", "confirm_password": "secret123",
	})
	expectStatus(t, rec, http.StatusConflict)
}

func TestSignupValidation(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body map[string]string
		code string
	}{
		{"missing name", map[string]string{"username": "bob", "password": "secret123", "confirm_password": "secret123"}, "INVALID_INPUT"},
		{"short password", map[string]string{"name": "Bob", "username": "bob", "password": "short", "confirm_password": "short"}, "PASSWORD_TOO_SHORT"},
		{"mismatch", map[string]string{"name": "Bob", "username": "bob", "password": "secret123", "confirm_password": "secret124"}, "PASSWORD_MISMATCH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/auth/signup", "", tt.body)
			expectStatus(t, rec, http.StatusBadRequest)
			if got := errorCode(t, rec).Code; got != tt.code {
				t.Errorf("expected %s, got %s", tt.code, got)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/me", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}

	rec = ts.do(t, http.MethodGet, "/api/me", "not-a-token", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestRoleChecks(t *testing.T) {
	ts := newTestServer(t)
	_, student := ts.createUser(t, "student", model.UserRoleStudent)
	_, teacher := ts.createUser(t, "teacher", model.UserRoleTeacher)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"student lists all submissions", http.MethodGet, "/api/submissions", student, http.StatusForbidden},
		{"student reviews", http.MethodPut, "/api/submissions/x/review", student, http.StatusForbidden},
		{"teacher lists users", http.MethodGet, "/api/admin/users", teacher, http.StatusForbidden},
		{"teacher starts exam", http.MethodPost, "/api/exams/bio/start", teacher, http.StatusForbidden},
		{"teacher lists submissions", http.MethodGet, "/api/submissions", teacher, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.token, nil)
			expectStatus(t, rec, tt.want)
		})
	}
}

func TestExamFlow(t *testing.T) {
	ts := newTestServer(t)
	seedBioExam(t, ts.store)
	alice, student := ts.createUser(t, "alice", model.UserRoleStudent)
	_, other := ts.createUser(t, "bob", model.UserRoleStudent)
	_, teacher := ts.createUser(t, "teacher", model.UserRoleTeacher)

	// Not assigned yet.
	rec := ts.do(t, http.MethodGet, "/api/exams/bio/questions", student, nil)
	expectStatus(t, rec, http.StatusForbidden)
	if got := errorCode(t, rec).Code; got != exam.CodeNotAssigned {
		t.Errorf("expected %s, got %s", exam.CodeNotAssigned, got)
	}

	rec = ts.do(t, http.MethodPost, "/api/assignments", teacher, map[string]any{"student_id": alice.ID, "exam_name": "bio"})
	expectStatus(t, rec, http.StatusCreated)
	rec = ts.do(t, http.MethodPost, "/api/assignments", teacher, map[string]any{"student_id": alice.ID, "exam_name": "bio"})
	expectStatus(t, rec, http.StatusConflict)

	rec = ts.do(t, http.MethodGet, "/api/exams/bio/questions", student, nil)
	expectStatus(t, rec, http.StatusOK)
	if bytes.Contains(rec.Body.Bytes(), []byte("powerhouse")) || bytes.Contains(rec.Body.Bytes(), []byte("correct_option")) {
		t.Errorf("question listing leaks the answer key: %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/exams/bio/start", student, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = ts.do(t, http.MethodPost, "/api/exams/bio/start", student, nil)
	expectStatus(t, rec, http.StatusConflict)
	if got := errorCode(t, rec).Code; got != exam.CodeAttemptLimit {
		t.Errorf("expected %s, got %s", exam.CodeAttemptLimit, got)
	}

	submit := map[string]any{
		"exam_title": "bio",
		"exam_type":  "Mixed",
		"answers":    []any{1, 0, "mitochondria is the powerhouse of the cell"},
	}
	rec = ts.do(t, http.MethodPost, "/api/submissions", student, submit)
	expectStatus(t, rec, http.StatusCreated)
	resp := decodeBody[submitResponse](t, rec)
	if resp.Score.ObjectiveScore != 2 {
		t.Errorf("expected objective score 2, got %d", resp.Score.ObjectiveScore)
	}
	if resp.Status != model.StatusPendingReview {
		t.Errorf("expected status %q, got %q", model.StatusPendingReview, resp.Status)
	}

	rec = ts.do(t, http.MethodPost, "/api/submissions", student, submit)
	expectStatus(t, rec, http.StatusConflict)
	if got := errorCode(t, rec).Code; got != exam.CodeDuplicateSubmission {
		t.Errorf("expected %s, got %s", exam.CodeDuplicateSubmission, got)
	}

	// Another student cannot read the submission; the teacher can.
	rec = ts.do(t, http.MethodGet, "/api/submissions/"+resp.ID, other, nil)
	expectStatus(t, rec, http.StatusForbidden)
	rec = ts.do(t, http.MethodGet, "/api/submissions/"+resp.ID, student, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d/submissions", alice.ID), other, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = ts.do(t, http.MethodPut, "/api/submissions/"+resp.ID+"/review", teacher, map[string]any{
		"subjective_score": 8,
		"answers":          []map[string]any{{"question_index": 2, "is_correct": true}},
	})
	expectStatus(t, rec, http.StatusOK)
	sub := decodeBody[model.Submission](t, rec)
	if sub.Status != model.StatusCompleted {
		t.Errorf("expected status %q, got %q", model.StatusCompleted, sub.Status)
	}
	if sub.Score.TotalScore != 10 {
		t.Errorf("expected total score 10, got %v", sub.Score.TotalScore)
	}
	if sub.Answers[2].IsCorrect == nil || !*sub.Answers[2].IsCorrect {
		t.Errorf("expected reviewed answer to be correct, got %v", sub.Answers[2].IsCorrect)
	}

	rec = ts.do(t, http.MethodGet, "/api/exams", teacher, nil)
	expectStatus(t, rec, http.StatusOK)
	sums := decodeBody[[]model.ExamSummary](t, rec)
	if len(sums) != 1 || sums[0].TotalAttempts != 1 {
		t.Errorf("unexpected summaries %+v", sums)
	}

	rec = ts.do(t, http.MethodGet, "/api/submissions?exam=bio", teacher, nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decodeBody[[]model.Submission](t, rec); len(list) != 1 {
		t.Errorf("expected 1 submission, got %d", len(list))
	}
}

func TestReviewErrors(t *testing.T) {
	ts := newTestServer(t)
	_, teacher := ts.createUser(t, "teacher", model.UserRoleTeacher)

	rec := ts.do(t, http.MethodPut, "/api/submissions/missing/review", teacher, map[string]any{"subjective_score": 1})
	expectStatus(t, rec, http.StatusNotFound)
	if got := errorCode(t, rec).Code; got != exam.CodeSubmissionNotFound {
		t.Errorf("expected %s, got %s", exam.CodeSubmissionNotFound, got)
	}

	rec = ts.do(t, http.MethodPut, "/api/submissions/missing/review", teacher, map[string]any{"subjective_score": -1})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestAssignUnknownStudent(t *testing.T) {
	ts := newTestServer(t)
	_, teacher := ts.createUser(t, "teacher", model.UserRoleTeacher)

	rec := ts.do(t, http.MethodPost, "/api/assignments", teacher, map[string]any{"student_id": 999, "exam_name": "bio"})
	expectStatus(t, rec, http.StatusNotFound)
	if got := errorCode(t, rec).Code; got != "USER_NOT_FOUND" {
		t.Errorf("expected USER_NOT_FOUND, got %s", got)
	}
}

func TestLocalizedError(t *testing.T) {
	ts := newTestServer(t)
	_, student := ts.createUser(t, "student", model.UserRoleStudent)

	req := httptest.NewRequest(http.MethodGet, "/api/exams/bio/questions", nil)
	req.Header.Set("Authorization", "Bearer "+student)
	req.Header.Set("Accept-Language", "ru")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusForbidden)
	body := errorCode(t, rec)
	if body.Code != exam.CodeNotAssigned {
		t.Errorf("expected %s, got %s", exam.CodeNotAssigned, body.Code)
	}
	if body.Message != "Этот экзамен вам не назначен." {
		t.Errorf("expected russian message, got %q", body.Message)
	}
}

func TestImportAndDeleteQuestions(t *testing.T) {
	ts := newTestServer(t)
	_, teacher := ts.createUser(t, "teacher", model.UserRoleTeacher)

	bank := []map[string]any{
		{"question": "H2O is?", "options": []string{"water", "salt"}, "correct_option": 0},
		{"question": "Define entropy", "answer": "measure of disorder"},
	}
	rec := ts.do(t, http.MethodPost, "/api/questions/import?exam=chem", teacher, bank)
	expectStatus(t, rec, http.StatusCreated)
	resp := decodeBody[importResponse](t, rec)
	if resp.Imported != 2 {
		t.Errorf("expected 2 imported, got %d", resp.Imported)
	}
	if resp.Message != "2 questions imported." {
		t.Errorf("unexpected message %q", resp.Message)
	}

	rec = ts.do(t, http.MethodPost, "/api/questions/import?exam=chem", teacher, bank)
	expectStatus(t, rec, http.StatusOK)
	if resp := decodeBody[importResponse](t, rec); !resp.Duplicate {
		t.Error("expected the second upload to be reported as duplicate")
	}

	qs, err := ts.store.ListQuestionsByExam(context.Background(), "chem")
	if err != nil {
		t.Fatalf("ListQuestionsByExam: %v", err)
	}
	if len(qs) != 2 || qs[1].Marks != model.DefaultSubjectiveMarks {
		t.Errorf("unexpected questions %+v", qs)
	}

	rec = ts.do(t, http.MethodPost, "/api/questions/import", teacher, []map[string]any{{"options": []string{"a", "b"}}})
	expectStatus(t, rec, http.StatusBadRequest)
	if got := errorCode(t, rec).Code; got != "INVALID_QUESTIONS" {
		t.Errorf("expected INVALID_QUESTIONS, got %s", got)
	}

	rec = ts.do(t, http.MethodDelete, "/api/exams/chem/questions", teacher, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = ts.do(t, http.MethodDelete, "/api/exams/chem/questions", teacher, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestAdminUsers(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.createUser(t, "admin", model.UserRoleAdmin)
	student, studentToken := ts.createUser(t, "student", model.UserRoleStudent)

	rec := ts.do(t, http.MethodPost, "/api/admin/users", admin, map[string]string{
		"username": "teacher", "display_name": "Teacher", "password": "secret123", "confirm_password": "secret123", "role": "teacher",
	})
	expectStatus(t, rec, http.StatusCreated)
	if u := decodeBody[model.User](t, rec); u.Role != model.UserRoleTeacher {
		t.Errorf("expected role teacher, got %s", u.Role)
	}

	rec = ts.do(t, http.MethodPost, "/api/admin/users", admin, map[string]string{
		"username": "root2", "password": "secret123", "confirm_password": "secret123", "role": "superuser",
	})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = ts.do(t, http.MethodGet, "/api/admin/users", admin, nil)
	expectStatus(t, rec, http.StatusOK)
	if users := decodeBody[[]model.User](t, rec); len(users) != 3 {
		t.Errorf("expected 3 users, got %d", len(users))
	}
	rec = ts.do(t, http.MethodGet, "/api/admin/users?role=student", admin, nil)
	expectStatus(t, rec, http.StatusOK)
	if users := decodeBody[[]model.User](t, rec); len(users) != 1 || users[0].ID != student.ID {
		t.Errorf("expected only the student, got %+v", users)
	}

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/toggle", student.ID), admin, nil)
	expectStatus(t, rec, http.StatusOK)
	if u := decodeBody[model.User](t, rec); u.Active {
		t.Error("expected student to be deactivated")
	}

	// A deactivated user's token stops working.
	rec = ts.do(t, http.MethodGet, "/api/me", studentToken, nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = ts.do(t, http.MethodPost, "/api/admin/users/999/toggle", admin, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestCreateAndGetQuestion(t *testing.T) {
	ts := newTestServer(t)
	_, teacher := ts.createUser(t, "teacher", model.UserRoleTeacher)
	_, student := ts.createUser(t, "student", model.UserRoleStudent)

	rec := ts.do(t, http.MethodPost, "/api/questions", teacher, map[string]any{
		"exam_name": "bio", "question": "Largest organ?", "options": []string{"skin", "liver"}, "correct_option": "skin",
	})
	expectStatus(t, rec, http.StatusCreated)
	q := decodeBody[model.Question](t, rec)
	if q.ID == 0 || q.Kind != model.QuestionObjective {
		t.Errorf("unexpected question %+v", q)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/questions/%d", q.ID), teacher, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[model.Question](t, rec); got.Correct.Value != "skin" {
		t.Errorf("expected answer key skin, got %+v", got.Correct)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/questions/%d", q.ID), student, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = ts.do(t, http.MethodPost, "/api/questions", teacher, map[string]any{
		"exam_name": "bio", "question": "Pick one", "options": []string{"a", "b"}, "correct_option": "c",
	})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = ts.do(t, http.MethodGet, "/api/questions/999", teacher, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestSubmitChecksAssignmentFirst(t *testing.T) {
	ts := newTestServer(t)
	_, student := ts.createUser(t, "student", model.UserRoleStudent)

	rec := ts.do(t, http.MethodPost, "/api/submissions", student, map[string]any{
		"exam_title": "no-such-exam", "exam_type": "Objective", "answers": []any{0},
	})
	expectStatus(t, rec, http.StatusForbidden)
	if got := errorCode(t, rec).Code; got != exam.CodeNotAssigned {
		t.Errorf("expected %s, got %s", exam.CodeNotAssigned, got)
	}
}

func TestChangePassword(t *testing.T) {
	ts := newTestServer(t)
	u, token := ts.createUser(t, "alice", model.UserRoleStudent)

	tests := []struct {
		name string
		body map[string]string
		code string
	}{
		{"wrong current", map[string]string{"current_password": "nope12345", "new_password": "newsecret1", "confirm_password": "newsecret1"}, "WRONG_PASSWORD"},
		{"same as current", map[string]string{"current_password": "password123", "new_password": "password123", "confirm_password": "password123"}, "SAME_PASSWORD"},
		{"too short", map[string]string{"current_password": "password123", "new_password": "short", "confirm_password": "short"}, "PASSWORD_TOO_SHORT"},
		{"mismatch", map[string]string{"current_password": "password123", "new_password": "newsecret1", "confirm_password": "newsecret2"}, "PASSWORD_MISMATCH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/me/password", token, tt.body)
			expectStatus(t, rec, http.StatusBadRequest)
			if got := errorCode(t, rec).Code; got != tt.code {
				t.Errorf("expected %s, got %s", tt.code, got)
			}
		})
	}

	rec := ts.do(t, http.MethodPost, "/api/me/password", "", map[string]string{
		"current_password": "password123", "new_password": "newsecret1", "confirm_password": "newsecret1",
	})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = ts.do(t, http.MethodPost, "/api/me/password", token, map[string]string{
		"current_password": "password123", "new_password": "newsecret1", "confirm_password": "newsecret1",
	})
	expectStatus(t, rec, http.StatusOK)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": u.Username, "password": "password123"})
	expectStatus(t, rec, http.StatusUnauthorized)
	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": u.Username, "password": "newsecret1"})
	expectStatus(t, rec, http.StatusOK)
}

func TestQuestionBanks(t *testing.T) {
	ts := newTestServer(t)
	seedBioExam(t, ts.store)
	_, teacher := ts.createUser(t, "teacher", model.UserRoleTeacher)
	_, student := ts.createUser(t, "student", model.UserRoleStudent)

	rec := ts.do(t, http.MethodGet, "/api/question-banks", teacher, nil)
	expectStatus(t, rec, http.StatusOK)
	banks := decodeBody[[]model.ExamBank](t, rec)
	want := model.ExamBank{ExamName: "bio", Type: model.ExamMixed, Objective: 2, Subjective: 1, Total: 3}
	if len(banks) != 1 || banks[0] != want {
		t.Errorf("expected %+v, got %+v", want, banks)
	}

	rec = ts.do(t, http.MethodGet, "/api/questions?exam=bio", teacher, nil)
	expectStatus(t, rec, http.StatusOK)
	qs := decodeBody[[]model.Question](t, rec)
	if len(qs) != 3 || qs[2].ReferenceAnswer == "" {
		t.Errorf("expected 3 questions with answer keys, got %+v", qs)
	}

	rec = ts.do(t, http.MethodGet, "/api/questions?exam=chem", teacher, nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = ts.do(t, http.MethodGet, "/api/questions", teacher, nil)
	expectStatus(t, rec, http.StatusBadRequest)
	rec = ts.do(t, http.MethodGet, "/api/question-banks", student, nil)
	expectStatus(t, rec, http.StatusForbidden)
}
