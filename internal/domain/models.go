package domain

import (
	"fmt"
	"math"
	"time"
)

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id" yaml:"id"`
	Text    string `json:"text" yaml:"text"`
	Correct bool   `json:"correct" yaml:"correct"`
}

// Question models an MCQ question with exactly one correct option.
// Grading is keyed by the correct option's position in Options, so the
// ordering persisted by storage must be stable between authoring and taking.
type Question struct {
	ID      string   `json:"id" yaml:"id"`
	Text    string   `json:"text" yaml:"text"`
	Options []Option `json:"options" yaml:"options"`
}

// Quiz is an ordered collection of questions plus taking metadata.
type Quiz struct {
	ID               string     `json:"id" yaml:"id"`
	Title            string     `json:"title" yaml:"title"`
	Description      string     `json:"description,omitempty" yaml:"description,omitempty"`
	TimeLimitMinutes int        `json:"timeLimitMinutes" yaml:"timeLimitMinutes"`
	Active           bool       `json:"active" yaml:"active"`
	Public           bool       `json:"public" yaml:"public"`
	Questions        []Question `json:"questions" yaml:"questions"`
}

// Validate enforces the authoring invariants: a positive time limit and,
// per question, at least two options with exactly one marked correct.
func (q Quiz) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("quiz: %w: missing id", ErrInvalidQuiz)
	}
	if q.TimeLimitMinutes < 1 {
		return fmt.Errorf("quiz %s: %w: time limit must be at least 1 minute", q.ID, ErrInvalidQuiz)
	}
	for _, question := range q.Questions {
		if len(question.Options) < 2 {
			return fmt.Errorf("question %s: %w: needs at least 2 options", question.ID, ErrInvalidQuiz)
		}
		correct := 0
		for _, opt := range question.Options {
			if opt.Correct {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("question %s: %w: expected exactly 1 correct option, found %d", question.ID, ErrInvalidQuiz, correct)
		}
	}
	return nil
}

// User carries just enough identity for ownership checks.
type User struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Attempt is one user's pass at a quiz, mutable only while in progress.
type Attempt struct {
	ID               string         `json:"id"`
	UserID           string         `json:"userId"`
	QuizID           string         `json:"quizId"`
	StartedAt        time.Time      `json:"startedAt"`
	SubmittedAt      *time.Time     `json:"submittedAt,omitempty"`
	Score            int            `json:"score"`
	TotalQuestions   int            `json:"totalQuestions"`
	Completed        bool           `json:"completed"`
	Answers          map[string]int `json:"answers"` // questionID -> selected option index
	TimeTakenSeconds int            `json:"timeTakenSeconds,omitempty"`
}

// InProgress reports whether the attempt can still accept answers.
func (a Attempt) InProgress() bool {
	return !a.Completed && a.SubmittedAt == nil
}

// UserAnswer is the per-question record materialized when an attempt is
// finalized. Attempts own their UserAnswers (cascade delete).
type UserAnswer struct {
	ID            string `json:"id"`
	AttemptID     string `json:"attemptId"`
	QuestionID    string `json:"questionId"`
	SelectedIndex int    `json:"selectedIndex"`
	Correct       bool   `json:"correct"`
}

// Result is the frozen scoring outcome of a completed attempt. Exactly one
// per attempt, never recomputed.
type Result struct {
	ID             string    `json:"id"`
	AttemptID      string    `json:"attemptId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Percentage     int       `json:"percentage"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// QuestionScore is the per-question grading breakdown.
type QuestionScore struct {
	Selected  int  `json:"selected"` // -1 when unanswered
	Correct   int  `json:"correct"`  // -1 when the question has no correct option
	IsCorrect bool `json:"isCorrect"`
}

// ScoreSummary is the outcome of grading an answer set against a quiz.
type ScoreSummary struct {
	Score       int                      `json:"score"`
	Total       int                      `json:"total"`
	Percentage  int                      `json:"percentage"`
	PerQuestion map[string]QuestionScore `json:"perQuestion"`
}

// UserStats aggregates a user's completed attempts for the history view.
type UserStats struct {
	TotalAttempts     int `json:"totalAttempts"`
	AveragePercentage int `json:"averagePercentage"`
	BestPercentage    int `json:"bestPercentage"`
	QuizzesTaken      int `json:"quizzesTaken"`
}

// Percentage computes round-half-up(score*100/total), or 0 when total is 0.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) * 100 / float64(total)))
}
