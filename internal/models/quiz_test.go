package models

import (
	"errors"
	"testing"
	"time"
)

func TestNewQuiz(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := QuizInput{
		Title:       "  Capitals ",
		Description: "geo",
		Questions:   []Question{{Question: "Capital of Peru?", Answer: "Lima"}},
	}

	quiz, err := NewQuiz("u1", in, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !quiz.ID.IsZero() {
		t.Errorf("Expected unset ID, got %s", quiz.ID.Hex())
	}
	if quiz.Title != "Capitals" {
		t.Errorf("Expected trimmed title, got %q", quiz.Title)
	}
	if quiz.Author != "u1" {
		t.Errorf("Expected author u1, got %q", quiz.Author)
	}
	if !quiz.CreatedDate.Equal(now) || !quiz.UpdatedDate.Equal(now) {
		t.Errorf("Expected both dates to be %v, got %v and %v", now, quiz.CreatedDate, quiz.UpdatedDate)
	}
	if quiz.Favorites != 0 || quiz.TotalAttempts != 0 || quiz.CorrectAttempts != 0 || quiz.IncorrectAttempts != 0 {
		t.Errorf("Expected zero counters, got %+v", quiz)
	}
	if quiz.DatesUsed == nil || quiz.DatesUpdated == nil {
		t.Errorf("Expected empty, non-nil date slices")
	}
	if quiz.Questions[0].Format != FormatMultipleChoice {
		t.Errorf("Expected question format default, got %q", quiz.Questions[0].Format)
	}

	// the input slice is not shared
	in.Questions[0].Question = "changed"
	if quiz.Questions[0].Question == "changed" {
		t.Errorf("Expected NewQuiz to copy the questions")
	}
}

func TestNewQuizValidation(t *testing.T) {
	testCases := []struct {
		name   string
		author string
		in     QuizInput
		field  string
	}{
		{"missing title", "u1", QuizInput{Title: " "}, "title"},
		{"missing author", "", QuizInput{Title: "Capitals"}, "author"},
		{"bad question", "u1", QuizInput{Title: "Capitals", Questions: []Question{{Format: FormatTrueFalse}}}, "questions.0.question"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewQuiz(tc.author, tc.in, time.Now())
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Expected ErrValidation, got %v", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != tc.field {
				t.Errorf("Expected field %s, got %v", tc.field, err)
			}
		})
	}
}

func TestQuizNormalize(t *testing.T) {
	quiz := &Quiz{Title: "t", Questions: []Question{{Question: "q"}}}
	quiz.Normalize()

	if quiz.DatesUsed == nil || quiz.DatesUpdated == nil {
		t.Errorf("Expected date slices to be initialised")
	}
	if quiz.Questions[0].Options == nil {
		t.Errorf("Expected question options to be initialised")
	}

	empty := &Quiz{}
	empty.Normalize()
	if empty.Questions == nil {
		t.Errorf("Expected questions to be initialised")
	}
}

func TestClientQuestionsStartWithoutAttempts(t *testing.T) {
	seeded := func() []Question {
		return []Question{{Question: "Capital of Peru?", Answer: "Lima", CorrectAttempts: 40, IncorrectAttempts: 2}}
	}

	quiz, err := NewQuiz("u1", QuizInput{Title: "Capitals", Questions: seeded()}, time.Now())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if q := quiz.Questions[0]; q.CorrectAttempts != 0 || q.IncorrectAttempts != 0 {
		t.Errorf("Expected NewQuiz to zero question counters, got %d/%d", q.CorrectAttempts, q.IncorrectAttempts)
	}

	set, err := DecodeQuizPatch(map[string]any{"questions": seeded()})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	questions := set[0].Value.([]Question)
	if q := questions[0]; q.CorrectAttempts != 0 || q.IncorrectAttempts != 0 {
		t.Errorf("Expected patched questions to have zero counters, got %d/%d", q.CorrectAttempts, q.IncorrectAttempts)
	}
}
