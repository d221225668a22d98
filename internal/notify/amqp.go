package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeType     = "topic"
	routingKeyPrefix = "storefront."
)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher publishes events as JSON to a RabbitMQ topic exchange with routing key
// storefront.<kind>.
type AMQPPublisher struct {
	ch       Channel
	exchange string
	marshal  func(any) ([]byte, error)
	clock    func() time.Time
	closers  []func() error
}

// NewAMQPPublisher constructs a publisher over an open channel.
func NewAMQPPublisher(ch Channel, exchange string) (*AMQPPublisher, error) {
	if ch == nil {
		return nil, errors.New("amqp publisher: channel is required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		return nil, errors.New("amqp publisher: exchange is required")
	}
	return &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		marshal:  json.Marshal,
		clock:    time.Now,
	}, nil
}

// DialAMQP connects to the broker, declares the durable topic exchange and returns a publisher
// owning the connection.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp publisher: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,     // name
		exchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp publisher: declare exchange: %w", err)
	}

	p, err := NewAMQPPublisher(ch, exchange)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.closers = []func() error{ch.Close, conn.Close}
	return p, nil
}

// Notify implements Notifier.
func (p *AMQPPublisher) Notify(ctx context.Context, event Event) error {
	if p == nil || p.ch == nil {
		return errors.New("amqp publisher: not initialised")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.clock().UTC()
	}

	body, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("amqp publisher: marshal event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(event.Kind),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Type:         string(event.Kind),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp publisher: publish %s: %w", event.Kind, err)
	}
	return nil
}

// Close releases the channel and connection opened by DialAMQP.
func (p *AMQPPublisher) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// RoutingKey returns the topic routing key for kind.
func RoutingKey(kind Kind) string {
	return routingKeyPrefix + string(kind)
}
