package models

import (
	"fmt"
	"strings"
)

const (
	FormatMultipleChoice = "multiple-choice"
	FormatTrueFalse      = "true-false"
	FormatShortAnswer    = "short-answer"
)

var questionFormats = map[string]bool{
	FormatMultipleChoice: true,
	FormatTrueFalse:      true,
	FormatShortAnswer:    true,
}

type Question struct {
	Question          string            `bson:"question" json:"question"`
	Format            string            `bson:"format" json:"format"`
	Options           map[string]string `bson:"options" json:"options"`
	Answer            string            `bson:"answer" json:"answer"`
	CorrectAttempts   int               `bson:"correctAttempts" json:"correctAttempts"`
	IncorrectAttempts int               `bson:"incorrectAttempts" json:"incorrectAttempts"`
}

// NewQuestion returns a question with no options, no answer and zeroed
// counters.
func NewQuestion(text, format string) Question {
	q := Question{Question: text, Format: format}
	q.Normalize()
	return q
}

// Normalize fills defaults: an empty format becomes multiple choice and a
// missing options map becomes empty.
func (q *Question) Normalize() {
	if q.Format == "" {
		q.Format = FormatMultipleChoice
	}
	if q.Options == nil {
		q.Options = map[string]string{}
	}
}

func (q *Question) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return invalid("question", "is required")
	}
	if !questionFormats[q.Format] {
		return invalid("format", fmt.Sprintf("%q is not supported", q.Format))
	}
	if q.Answer != "" && len(q.Options) > 0 {
		if _, ok := q.Options[q.Answer]; !ok {
			return invalid("answer", fmt.Sprintf("%q is not one of the options", q.Answer))
		}
	}
	if q.CorrectAttempts < 0 || q.IncorrectAttempts < 0 {
		return invalid("attempts", "cannot be negative")
	}
	return nil
}

// ClearAttempts zeroes the per-question counters. Questions supplied by a
// client start without history; only recorded attempts move the counters.
func (q *Question) ClearAttempts() {
	q.CorrectAttempts = 0
	q.IncorrectAttempts = 0
}

// IsCorrect compares an answer with the stored one, ignoring case and
// surrounding space.
func (q *Question) IsCorrect(answer string) bool {
	if q.Answer == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.Answer))
}

// ClearAttempts zeroes the counters of every question in place.
func ClearAttempts(questions []Question) {
	for i := range questions {
		questions[i].ClearAttempts()
	}
}

// ValidateQuestions normalizes and validates every question in place.
func ValidateQuestions(questions []Question) error {
	for i := range questions {
		questions[i].Normalize()
		if err := questions[i].Validate(); err != nil {
			if fe, ok := err.(*FieldError); ok {
				fe.Field = fmt.Sprintf("questions.%d.%s", i, fe.Field)
			}
			return err
		}
	}
	return nil
}
