package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/examportal/internal/model"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate")
	// ErrAttemptLimit is returned when an assignment has no attempts left.
	ErrAttemptLimit = errors.New("attempt limit exceeded")
	// ErrClosed is returned when an assignment is completed or failed.
	ErrClosed = errors.New("assignment closed")
)

type Store struct {
	db *sql.DB
}

// New opens the SQLite database at dbPath and applies the schema. Write
// transactions take the write lock up front so concurrent writers queue on the
// busy timeout instead of failing on lock upgrade.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_name TEXT NOT NULL,
		kind TEXT NOT NULL,
		text TEXT NOT NULL,
		options TEXT NOT NULL DEFAULT '[]',
		correct_option TEXT NOT NULL DEFAULT 'null',
		reference_answer TEXT NOT NULL DEFAULT '',
		marks REAL NOT NULL DEFAULT 0,
		time_limit INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_questions_exam ON questions(exam_name, id);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		student_id INTEGER NOT NULL,
		exam_name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'assigned',
		attempt_count INTEGER NOT NULL DEFAULT 0,
		assigned_at DATETIME NOT NULL,
		started_at DATETIME,
		UNIQUE (student_id, exam_name)
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		student_id INTEGER NOT NULL,
		exam_title TEXT NOT NULL,
		exam_type TEXT NOT NULL,
		objective_score INTEGER NOT NULL DEFAULT 0,
		subjective_score REAL NOT NULL DEFAULT 0,
		total_score REAL NOT NULL DEFAULT 0,
		total_questions INTEGER NOT NULL,
		status TEXT NOT NULL,
		submitted_at DATETIME NOT NULL,
		reviewed_at DATETIME,
		reviewed_by INTEGER,
		UNIQUE (student_id, exam_title)
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_exam ON submissions(exam_title);
	CREATE INDEX IF NOT EXISTS idx_submissions_submitted ON submissions(submitted_at DESC);

	CREATE TABLE IF NOT EXISTS submission_answers (
		submission_id TEXT NOT NULL,
		question_index INTEGER NOT NULL,
		answer TEXT NOT NULL DEFAULT 'null',
		question_text TEXT NOT NULL,
		is_correct INTEGER,
		similarity_match INTEGER,
		advisory_marks REAL,
		advisory_feedback TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (submission_id, question_index),
		FOREIGN KEY (submission_id) REFERENCES submissions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS exam_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// isUniqueViolation reports whether err comes from a UNIQUE or PRIMARY KEY constraint.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

const questionColumns = `id, exam_name, kind, text, options, correct_option, reference_answer, marks, time_limit`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertQuestion(ctx context.Context, db execer, q model.Question) (int64, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return 0, fmt.Errorf("encode options: %w", err)
	}
	if q.Options == nil {
		options = []byte("[]")
	}
	correct, err := json.Marshal(q.Correct)
	if err != nil {
		return 0, fmt.Errorf("encode correct option: %w", err)
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO questions (exam_name, kind, text, options, correct_option, reference_answer, marks, time_limit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ExamName, q.Kind, q.Text, string(options), string(correct), q.ReferenceAnswer, q.Marks, q.TimeLimit,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertQuestion stores a question.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (int64, error) {
	return insertQuestion(ctx, s.db, q)
}

// InsertQuestions stores a batch of questions in one transaction.
func (s *Store) InsertQuestions(ctx context.Context, qs []model.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	for i, q := range qs {
		if _, err := insertQuestion(ctx, tx, q); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(r rowScanner) (model.Question, error) {
	var q model.Question
	var options, correct string
	if err := r.Scan(&q.ID, &q.ExamName, &q.Kind, &q.Text, &options, &correct, &q.ReferenceAnswer, &q.Marks, &q.TimeLimit); err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return q, fmt.Errorf("decode options of question %d: %w", q.ID, err)
	}
	if len(q.Options) == 0 {
		q.Options = nil
	}
	if err := json.Unmarshal([]byte(correct), &q.Correct); err != nil {
		return q, fmt.Errorf("decode correct option of question %d: %w", q.ID, err)
	}
	return q, nil
}

// ListQuestionsByExam returns the questions of an exam in a stable order.
// Submissions are evaluated positionally against this order.
func (s *Store) ListQuestionsByExam(ctx context.Context, examName string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE exam_name = ? ORDER BY id`, examName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return q, ErrNotFound
	}
	return q, err
}

// DeleteQuestionsByExam removes every question of an exam and returns how many were deleted.
func (s *Store) DeleteQuestionsByExam(ctx context.Context, examName string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE exam_name = ?`, examName)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExamBanks lists every exam with questions, with its question counts by kind.
func (s *Store) ExamBanks(ctx context.Context) ([]model.ExamBank, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exam_name, kind, COUNT(*) FROM questions GROUP BY exam_name, kind ORDER BY exam_name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	banks := []model.ExamBank{}
	for rows.Next() {
		var (
			name  string
			kind  model.QuestionKind
			count int
		)
		if err := rows.Scan(&name, &kind, &count); err != nil {
			return nil, err
		}
		if len(banks) == 0 || banks[len(banks)-1].ExamName != name {
			banks = append(banks, model.ExamBank{ExamName: name})
		}
		b := &banks[len(banks)-1]
		switch kind {
		case model.QuestionObjective:
			b.Objective += count
		case model.QuestionSubjective:
			b.Subjective += count
		}
		b.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range banks {
		switch {
		case banks[i].Objective > 0 && banks[i].Subjective > 0:
			banks[i].Type = model.ExamMixed
		case banks[i].Subjective > 0:
			banks[i].Type = model.ExamSubjective
		default:
			banks[i].Type = model.ExamObjective
		}
	}
	return banks, nil
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
