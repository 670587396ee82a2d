package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

var errNotConnected = errors.New("cannot publish: not connected to RabbitMQ")

type RabbitMQClient struct {
	connectionURI string
	exchanges     []string

	mu          sync.Mutex
	conn        *amqp.Connection
	channel     *amqp.Channel
	isConnected bool
	closed      bool
}

func NewRabbitMQClient(connectionURI string, exchanges ...string) (*RabbitMQClient, error) {
	client := &RabbitMQClient{
		connectionURI: connectionURI,
		exchanges:     exchanges,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *RabbitMQClient) connect() error {
	conn, err := amqp.Dial(c.connectionURI)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := declareExchanges(channel, c.exchanges); err != nil {
		channel.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.isConnected = true
	c.mu.Unlock()

	go c.monitorConnection(conn)
	return nil
}

func declareExchanges(channel *amqp.Channel, exchanges []string) error {
	for _, name := range exchanges {
		err := channel.ExchangeDeclare(
			name,    // name
			"topic", // type
			true,    // durable
			false,   // auto-deleted
			false,   // internal
			false,   // no-wait
			nil,     // arguments
		)
		if err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", name, err)
		}
	}
	return nil
}

func (c *RabbitMQClient) monitorConnection(conn *amqp.Connection) {
	connClose := conn.NotifyClose(make(chan *amqp.Error, 1))

	// a nil error means the connection was closed on purpose
	err := <-connClose
	c.mu.Lock()
	c.isConnected = false
	closed := c.closed
	c.mu.Unlock()

	if closed || err == nil {
		return
	}

	log.Warnf("RabbitMQ connection closed: %v, attempting to reconnect...", err)
	c.reconnect()
}

func (c *RabbitMQClient) reconnect() {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		time.Sleep(backoff)

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		err := c.connect()
		if err == nil {
			log.Info("Successfully reconnected to RabbitMQ")
			return
		}
		log.Errorf("Failed to reconnect to RabbitMQ: %v", err)

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *RabbitMQClient) PublishEvent(ctx context.Context, exchange, routingKey string, body []byte) error {
	c.mu.Lock()
	channel, connected := c.channel, c.isConnected
	c.mu.Unlock()

	if !connected {
		return errNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := channel.PublishWithContext(
		ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close closes the channel and connection and stops reconnecting.
func (c *RabbitMQClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.isConnected = false

	var err error
	if c.channel != nil {
		err = c.channel.Close()
	}
	if c.conn != nil {
		if cerr := c.conn.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}
