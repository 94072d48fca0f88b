package app

import "quiz-attempt-service/internal/domain"

// CorrectOptionIndex scans a question's options in persisted order and
// returns the position of the first option marked correct. It is the single
// source of truth for grading; correctness is never inferred from option
// text or identity.
func CorrectOptionIndex(q domain.Question) (int, bool) {
	for i, opt := range q.Options {
		if opt.Correct {
			return i, true
		}
	}
	return -1, false
}

// Score grades an answer set against a quiz. It is a pure function: no
// persistence, deterministic for the same inputs. Questions without an
// entry in answers, and questions whose answer key is absent, contribute 0.
func Score(quiz domain.Quiz, answers map[string]int) domain.ScoreSummary {
	summary := domain.ScoreSummary{
		Total:       len(quiz.Questions),
		PerQuestion: make(map[string]domain.QuestionScore, len(quiz.Questions)),
	}

	for _, question := range quiz.Questions {
		qs := domain.QuestionScore{Selected: -1, Correct: -1}
		correctIdx, hasKey := CorrectOptionIndex(question)
		if hasKey {
			qs.Correct = correctIdx
		}
		if selected, answered := answers[question.ID]; answered {
			qs.Selected = selected
			if hasKey && selected == correctIdx {
				qs.IsCorrect = true
				summary.Score++
			}
		}
		summary.PerQuestion[question.ID] = qs
	}

	summary.Percentage = domain.Percentage(summary.Score, summary.Total)
	return summary
}
