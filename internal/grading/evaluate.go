package grading

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/pavelanni/examportal/internal/model"
)

// Result is the outcome of evaluating one exam attempt.
type Result struct {
	Answers         []model.Answer
	ObjectiveScore  int
	SubjectiveScore float64
	TotalScore      float64
	Status          model.SubmissionStatus
}

// Evaluate scores answers against questions by position. An index with no
// answer counts as unanswered. Objective questions are marked immediately;
// subjective ones stay ungraded (IsCorrect nil) until a reviewer acts, with the
// similarity verdict kept as advisory metadata.
//
// examType is informational: each question is classified by its own kind.
func Evaluate(examType model.ExamType, questions []model.Question, answers []any) Result {
	res := Result{
		Answers: make([]model.Answer, 0, len(questions)),
		Status:  model.StatusCompleted,
	}
	for i, q := range questions {
		var value any
		if i < len(answers) {
			value = answers[i]
		}
		a := model.Answer{
			QuestionIndex: i,
			Value:         value,
			QuestionText:  q.Text,
		}

		switch q.Kind {
		case model.QuestionObjective:
			ok := objectiveCorrect(q, value)
			a.IsCorrect = &ok
			if ok {
				res.ObjectiveScore++
			}
		default:
			similar := IsSimilar(AnswerText(value), q.ReferenceAnswer)
			a.SimilarityMatch = &similar
			res.Status = model.StatusPendingReview
		}
		res.Answers = append(res.Answers, a)
	}
	res.TotalScore = float64(res.ObjectiveScore) + res.SubjectiveScore
	return res
}

func objectiveCorrect(q model.Question, value any) bool {
	idx, ok := optionIndex(value)
	if !ok {
		return false
	}
	switch {
	case q.Correct.Index != nil:
		return idx == *q.Correct.Index
	case q.Correct.Value != "":
		if idx < 0 || idx >= len(q.Options) {
			return false
		}
		return q.Options[idx] == q.Correct.Value
	}
	return false
}

// optionIndex converts a decoded answer into an option index. Only integral
// numbers qualify.
func optionIndex(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

// AnswerText renders a decoded answer as free text; nil is the empty string.
func AnswerText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
