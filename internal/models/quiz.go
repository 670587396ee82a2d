package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Quiz struct {
	ID                bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Title             string        `bson:"title" json:"title" patch:"mutable"`
	Author            string        `bson:"author" json:"author" patch:"mutable"`
	Questions         []Question    `bson:"questions" json:"questions" patch:"mutable"`
	Description       string        `bson:"description" json:"description" patch:"mutable"`
	CreatedDate       time.Time     `bson:"createdDate" json:"createdDate"`
	UpdatedDate       time.Time     `bson:"updatedDate" json:"updatedDate"`
	Favorites         int           `bson:"favorites" json:"favorites"`
	TotalAttempts     int           `bson:"totalAttempts" json:"totalAttempts"`
	CorrectAttempts   int           `bson:"correctAttempts" json:"correctAttempts"`
	IncorrectAttempts int           `bson:"incorrectAttempts" json:"incorrectAttempts"`
	DatesUsed         []time.Time   `bson:"datesUsed" json:"datesUsed"`
	DatesUpdated      []time.Time   `bson:"datesUpdated" json:"datesUpdated"`
}

// QuizInput is the client-supplied part of a new quiz.
type QuizInput struct {
	Title       string     `json:"title"`
	Questions   []Question `json:"questions"`
	Description string     `json:"description"`
}

// NewQuiz builds an unsaved quiz. Counters start at zero and the ID is left
// for the store to assign.
func NewQuiz(author string, in QuizInput, now time.Time) (*Quiz, error) {
	quiz := &Quiz{
		Title:       strings.TrimSpace(in.Title),
		Author:      author,
		Questions:   append([]Question(nil), in.Questions...),
		Description: in.Description,
		CreatedDate: now,
		UpdatedDate: now,
	}
	ClearAttempts(quiz.Questions)
	quiz.Normalize()

	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (q *Quiz) Validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return invalid("title", "is required")
	}
	if strings.TrimSpace(q.Author) == "" {
		return invalid("author", "is required")
	}
	return ValidateQuestions(q.Questions)
}

// Normalize fills the defaults a stored document may lack.
func (q *Quiz) Normalize() {
	if q.Questions == nil {
		q.Questions = []Question{}
	}
	for i := range q.Questions {
		q.Questions[i].Normalize()
	}
	if q.DatesUsed == nil {
		q.DatesUsed = []time.Time{}
	}
	if q.DatesUpdated == nil {
		q.DatesUpdated = []time.Time{}
	}
}

// DecodeQuizPatch turns a generic patch into a $set document. Protected keys
// fail with ErrForbiddenField, unknown keys and bad values with ErrValidation.
// A replacement question list starts with zeroed attempt counters.
func DecodeQuizPatch(patch map[string]any) (bson.D, error) {
	if len(patch) == 0 {
		return nil, invalid("patch", "is empty")
	}

	set, err := QuizPatchSchema().Decode(patch)
	if err != nil {
		return nil, err
	}

	for i, e := range set {
		switch e.Key {
		case "title", "author":
			s := strings.TrimSpace(e.Value.(string))
			if s == "" {
				return nil, invalid(e.Key, "is required")
			}
			set[i].Value = s
		case "questions":
			questions := e.Value.([]Question)
			if questions == nil {
				questions = []Question{}
			}
			ClearAttempts(questions)
			if err := ValidateQuestions(questions); err != nil {
				return nil, err
			}
			set[i].Value = questions
		}
	}
	return set, nil
}
