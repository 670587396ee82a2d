package event

import (
	"context"
	"fmt"

	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	log "github.com/sirupsen/logrus"
)

type Publisher interface {
	PublishQuizEvent(ctx context.Context, t EventType, quiz *models.Quiz) error
	PublishUserEvent(ctx context.Context, t EventType, user *models.User) error

	// Close releases the broker connection
	Close() error
}

// sender is the part of RabbitMQClient the publisher needs.
type sender interface {
	PublishEvent(ctx context.Context, exchange, routingKey string, body []byte) error
	Close() error
}

type EventPublisher struct {
	broker  sender
	enabled bool
}

// NewEventPublisher connects to RabbitMQ and declares the quiz and user
// exchanges. An empty URI yields a disabled publisher that drops events.
func NewEventPublisher(rabbitURI string) (*EventPublisher, error) {
	if rabbitURI == "" {
		log.Warn("RabbitMQ URI is empty, event publishing is disabled")
		return &EventPublisher{enabled: false}, nil
	}

	client, err := NewRabbitMQClient(rabbitURI, QuizExchange, UserExchange)
	if err != nil {
		return nil, err
	}
	return &EventPublisher{broker: client, enabled: true}, nil
}

func (p *EventPublisher) PublishQuizEvent(ctx context.Context, t EventType, quiz *models.Quiz) error {
	if !p.enabled {
		log.Debugf("Event publishing is disabled, skipping %s", t)
		return nil
	}

	body, err := NewQuizEvent(t, quiz).ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", t, err)
	}
	if err := p.broker.PublishEvent(ctx, QuizExchange, string(t), body); err != nil {
		return err
	}

	log.WithFields(log.Fields{"event": t, "quiz_id": quiz.ID.Hex()}).Debug("Published quiz event")
	return nil
}

func (p *EventPublisher) PublishUserEvent(ctx context.Context, t EventType, user *models.User) error {
	if !p.enabled {
		log.Debugf("Event publishing is disabled, skipping %s", t)
		return nil
	}

	body, err := NewUserEvent(t, user).ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", t, err)
	}
	if err := p.broker.PublishEvent(ctx, UserExchange, string(t), body); err != nil {
		return err
	}

	log.WithFields(log.Fields{"event": t, "user_id": user.ID.Hex()}).Debug("Published user event")
	return nil
}

func (p *EventPublisher) Close() error {
	if !p.enabled || p.broker == nil {
		return nil
	}
	return p.broker.Close()
}
