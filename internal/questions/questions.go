// Package questions loads question banks from JSON files into the store.
package questions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/examportal/internal/model"
)

var (
	// ErrUnchanged is returned when the same content was already imported from source.
	ErrUnchanged = errors.New("questions already imported")
	// ErrChanged is returned when source was imported before with different content
	// and replacing is not allowed.
	ErrChanged = errors.New("questions file changed since last import")
)

// Store is the persistence an import needs.
type Store interface {
	ImportedHash(ctx context.Context, source string) (string, error)
	SaveImport(ctx context.Context, source, hash string, qs []model.Question, replace bool) error
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes a JSON array of questions and classifies each entry. Entries
// without an exam name go to defaultExam.
func Parse(data []byte, defaultExam string) ([]model.Question, error) {
	var entries []model.QuestionImport
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("no questions in file")
	}

	out := make([]model.Question, 0, len(entries))
	for i, qi := range entries {
		q, err := Build(qi, defaultExam)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// Build validates one import entry and classifies it.
func Build(qi model.QuestionImport, defaultExam string) (model.Question, error) {
	if err := validate.Struct(qi); err != nil {
		return model.Question{}, err
	}
	q := qi.ToQuestion(strings.TrimSpace(defaultExam))
	q.ExamName = strings.TrimSpace(q.ExamName)
	if q.ExamName == "" {
		return model.Question{}, errors.New("exam name is required")
	}
	if err := checkCorrectOption(q); err != nil {
		return model.Question{}, err
	}
	return q, nil
}

func checkCorrectOption(q model.Question) error {
	if q.Kind != model.QuestionObjective {
		return nil
	}
	switch {
	case q.Correct.Index != nil:
		if *q.Correct.Index < 0 || *q.Correct.Index >= len(q.Options) {
			return fmt.Errorf("correct option %d out of range", *q.Correct.Index)
		}
	case q.Correct.Value != "":
		if !slices.Contains(q.Options, q.Correct.Value) {
			return fmt.Errorf("correct option %q is not one of the options", q.Correct.Value)
		}
	default:
		return errors.New("correct option is required")
	}
	return nil
}

// Import parses data and stores its questions, recording the content hash under
// source. Content already imported from source returns ErrUnchanged. Different
// content under a known source returns ErrChanged unless replace is set, in
// which case the questions of the exams in data are replaced.
func Import(ctx context.Context, st Store, source string, data []byte, defaultExam string, replace bool) (int, error) {
	hash := sha256sum(data)
	stored, err := st.ImportedHash(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("check import status for %s: %w", source, err)
	}
	if stored == hash {
		return 0, ErrUnchanged
	}
	if stored != "" && !replace {
		return 0, ErrChanged
	}

	qs, err := Parse(data, defaultExam)
	if err != nil {
		return 0, err
	}
	if err := st.SaveImport(ctx, source, hash, qs, replace); err != nil {
		return 0, fmt.Errorf("save questions from %s: %w", source, err)
	}
	slog.Info("imported questions", "source", source, "count", len(qs))
	return len(qs), nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ForStudent is a question with the answer key removed.
type ForStudent struct {
	Index     int                `json:"index"`
	Kind      model.QuestionKind `json:"kind"`
	Text      string             `json:"text"`
	Options   []string           `json:"options,omitempty"`
	Marks     float64            `json:"marks,omitempty"`
	TimeLimit *int               `json:"time_limit,omitempty"`
}

// StripAnswers returns qs without correct options or reference answers.
func StripAnswers(qs []model.Question) []ForStudent {
	out := make([]ForStudent, len(qs))
	for i, q := range qs {
		out[i] = ForStudent{
			Index:     i,
			Kind:      q.Kind,
			Text:      q.Text,
			Options:   q.Options,
			Marks:     q.Marks,
			TimeLimit: q.TimeLimit,
		}
	}
	return out
}
