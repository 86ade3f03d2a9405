// Package domain holds course quizzes and their questions.
package domain

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"eduplatform/backend/internal/platform/enum"
)

// ErrQuizNotFound is returned by services when no quiz has the requested ID.
var ErrQuizNotFound = errors.New("quiz not found")

// QuestionType selects how a question is answered and which answer field is set.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionText           QuestionType = "TEXT"
	QuestionNumeric        QuestionType = "NUMERIC"
)

// ParseQuestionType parses s case-insensitively. Dashes and spaces are read as underscores.
func ParseQuestionType(s string) (QuestionType, error) {
	norm := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToUpper(strings.TrimSpace(s)))
	switch t := QuestionType(norm); t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionText, QuestionNumeric:
		return t, nil
	}
	return "", enum.Unrecognized("question type", s)
}

const (
	DefaultPassingScore = 70
	DefaultMaxAttempts  = 3
	DefaultPoints       = 1
)

// Question is one quiz item. Exactly one answer field is meaningful, chosen by Type:
// CorrectIndex for multiple choice, CorrectBool for true/false, CorrectAnswer otherwise.
type Question struct {
	ID            string       `json:"id"`
	Prompt        string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	CorrectIndex  *int         `json:"correctAnswerIndex,omitempty"`
	CorrectBool   *bool        `json:"correctAnswerBoolean,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
	Points        int          `json:"points"`
}

func (q *Question) validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return errors.New("question text is required")
	}
	if q.Points < 1 {
		return errors.New("points must be positive")
	}
	switch q.Type {
	case QuestionMultipleChoice:
		if len(q.Options) < 2 {
			return errors.New("multiple choice needs at least two options")
		}
		if q.CorrectIndex == nil || *q.CorrectIndex < 0 || *q.CorrectIndex >= len(q.Options) {
			return errors.New("correct answer index must point at an option")
		}
	case QuestionTrueFalse:
		if q.CorrectBool == nil {
			return errors.New("true/false needs a boolean answer")
		}
	case QuestionText:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return errors.New("text question needs an answer")
		}
	case QuestionNumeric:
		if _, err := strconv.ParseFloat(strings.TrimSpace(q.CorrectAnswer), 64); err != nil {
			return errors.New("numeric question needs a numeric answer")
		}
	default:
		_, err := ParseQuestionType(string(q.Type))
		return err
	}
	return nil
}

// Quiz belongs to one course and is referenced from that course's quiz lessons.
type Quiz struct {
	ID               string
	CourseID         string
	Title            string
	Description      string
	Questions        []Question
	TimeLimitMinutes *int
	PassingScore     int
	AllowRetake      bool
	MaxAttempts      int
	ShuffleQuestions bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks the quiz and every question.
func (q *Quiz) Validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return errors.New("title is required")
	}
	if q.CourseID == "" {
		return errors.New("course is required")
	}
	if q.TimeLimitMinutes != nil && *q.TimeLimitMinutes < 1 {
		return errors.New("time limit must be at least 1 minute")
	}
	if q.PassingScore < 0 || q.PassingScore > 100 {
		return errors.New("passing score must be between 0 and 100")
	}
	if q.MaxAttempts < 1 {
		return errors.New("max attempts must be positive")
	}
	for i := range q.Questions {
		if err := q.Questions[i].validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

// TotalPoints sums the points of every question.
func (q *Quiz) TotalPoints() int {
	n := 0
	for _, qu := range q.Questions {
		n += qu.Points
	}
	return n
}

// WithoutAnswers returns a copy with answers and explanations removed, for
// learners taking the quiz.
func (q *Quiz) WithoutAnswers() *Quiz {
	c := *q
	c.Questions = make([]Question, len(q.Questions))
	for i, qu := range q.Questions {
		qu.Options = slices.Clone(qu.Options)
		qu.CorrectAnswer = ""
		qu.CorrectIndex = nil
		qu.CorrectBool = nil
		qu.Explanation = ""
		c.Questions[i] = qu
	}
	return &c
}
