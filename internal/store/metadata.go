package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pavelanni/examportal/internal/model"
)

const importHashPrefix = "import_hash:"

const upsertMetadata = `INSERT INTO exam_metadata (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`

// SetMetadata upserts a key-value pair in the exam_metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, upsertMetadata, key, value)
	return err
}

// GetMetadata returns the value for a metadata key, or "" if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM exam_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// ImportedHash returns the content hash recorded for a question source, or "".
func (s *Store) ImportedHash(ctx context.Context, source string) (string, error) {
	return s.GetMetadata(ctx, importHashPrefix+source)
}

// SaveImport stores the questions of one import and records its content hash
// under source in a single transaction. With replace set, the existing
// questions of every exam named in qs are deleted first.
func (s *Store) SaveImport(ctx context.Context, source, hash string, qs []model.Question, replace bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		cleared := make(map[string]bool)
		for _, q := range qs {
			if cleared[q.ExamName] {
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE exam_name = ?`, q.ExamName); err != nil {
				return fmt.Errorf("clear exam %q: %w", q.ExamName, err)
			}
			cleared[q.ExamName] = true
		}
	}
	for i, q := range qs {
		if _, err := insertQuestion(ctx, tx, q); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}
	if _, err := tx.ExecContext(ctx, upsertMetadata, importHashPrefix+source, hash); err != nil {
		return fmt.Errorf("record import hash: %w", err)
	}
	return tx.Commit()
}
