package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type published struct {
	exchange   string
	routingKey string
	body       []byte
}

type fakeSender struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeSender) PublishEvent(_ context.Context, exchange, routingKey string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange, routingKey, body})
	return nil
}

func (f *fakeSender) Close() error {
	f.closed = true
	return nil
}

func TestDisabledPublisherDropsEvents(t *testing.T) {
	p, err := NewEventPublisher("")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := p.PublishQuizEvent(context.Background(), QuizCreated, &models.Quiz{}); err != nil {
		t.Errorf("Expected disabled publisher to succeed, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Expected no error on close, got %v", err)
	}
}

func TestPublishQuizEvent(t *testing.T) {
	broker := &fakeSender{}
	p := &EventPublisher{broker: broker, enabled: true}

	quiz := &models.Quiz{
		ID:        bson.NewObjectID(),
		Title:     "Capitals",
		Author:    "u1",
		Favorites: 3,
		Questions: []models.Question{{Question: "a"}, {Question: "b"}},
	}
	if err := p.PublishQuizEvent(context.Background(), QuizFavorited, quiz); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(broker.sent) != 1 {
		t.Fatalf("Expected one message, got %d", len(broker.sent))
	}
	msg := broker.sent[0]
	if msg.exchange != QuizExchange || msg.routingKey != "quiz.favorited" {
		t.Errorf("Unexpected routing %s / %s", msg.exchange, msg.routingKey)
	}

	var ev QuizEvent
	if err := json.Unmarshal(msg.body, &ev); err != nil {
		t.Fatalf("Expected JSON body, got %v", err)
	}
	if ev.QuizID != quiz.ID.Hex() || ev.Favorites != 3 || ev.QuestionCount != 2 || ev.Type != QuizFavorited {
		t.Errorf("Unexpected event %+v", ev)
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Errorf("Expected a uuid event id, got %q", ev.ID)
	}
}

func TestPublishUserEvent(t *testing.T) {
	broker := &fakeSender{}
	p := &EventPublisher{broker: broker, enabled: true}

	user := &models.User{ID: bson.NewObjectID(), Username: "ana", PasswordHash: "secret-hash"}
	if err := p.PublishUserEvent(context.Background(), UserRegistered, user); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	msg := broker.sent[0]
	if msg.exchange != UserExchange || msg.routingKey != "user.registered" {
		t.Errorf("Unexpected routing %s / %s", msg.exchange, msg.routingKey)
	}
	var raw map[string]any
	if err := json.Unmarshal(msg.body, &raw); err != nil {
		t.Fatalf("Expected JSON body, got %v", err)
	}
	for k, v := range raw {
		if v == "secret-hash" {
			t.Errorf("Expected no credential in event, found it under %q", k)
		}
	}

	if err := p.Close(); err != nil || !broker.closed {
		t.Errorf("Expected broker to be closed, got %v", err)
	}
}

func TestPublishErrorSurfaces(t *testing.T) {
	boom := errors.New("channel closed")
	p := &EventPublisher{broker: &fakeSender{err: boom}, enabled: true}

	err := p.PublishQuizEvent(context.Background(), QuizDeleted, &models.Quiz{ID: bson.NewObjectID()})
	if !errors.Is(err, boom) {
		t.Errorf("Expected broker error, got %v", err)
	}
}
