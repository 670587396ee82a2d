package event

import (
	"encoding/json"
	"time"

	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	"github.com/google/uuid"
)

type EventType string

const (
	QuizCreated       EventType = "quiz.created"
	QuizUpdated       EventType = "quiz.updated"
	QuizFavorited     EventType = "quiz.favorited"
	QuizDeleted       EventType = "quiz.deleted"
	QuizQuestionAdded EventType = "quiz.question_added"
	QuizAttempted     EventType = "quiz.attempted"

	UserRegistered EventType = "user.registered"
	UserDeleted    EventType = "user.deleted"
)

const (
	QuizExchange = "quiz-events"
	UserExchange = "user-events"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Version   string    `json:"version"`
}

func newBaseEvent(t EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().Unix(),
		Version:   "1.0",
	}
}

type QuizEvent struct {
	BaseEvent
	QuizID        string `json:"quiz_id"`
	Author        string `json:"author"`
	Title         string `json:"title"`
	Favorites     int    `json:"favorites"`
	QuestionCount int    `json:"question_count"`
	TotalAttempts int    `json:"total_attempts"`
}

func NewQuizEvent(t EventType, quiz *models.Quiz) *QuizEvent {
	return &QuizEvent{
		BaseEvent:     newBaseEvent(t),
		QuizID:        quiz.ID.Hex(),
		Author:        quiz.Author,
		Title:         quiz.Title,
		Favorites:     quiz.Favorites,
		QuestionCount: len(quiz.Questions),
		TotalAttempts: quiz.TotalAttempts,
	}
}

func (e *QuizEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type UserEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Provider string `json:"provider"`
}

func NewUserEvent(t EventType, user *models.User) *UserEvent {
	return &UserEvent{
		BaseEvent: newBaseEvent(t),
		UserID:    user.ID.Hex(),
		Username:  user.Username,
		Provider:  user.Provider,
	}
}

func (e *UserEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
