package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange carries order lifecycle events; the routing key is the event type.
const DefaultExchange = "order.events"

// producerChannel is the subset of *amqp.Channel the producer needs.
type producerChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitProducer implements usecase.EventPublisher.
type RabbitProducer struct {
	ch       producerChannel
	exchange string
}

// NewRabbitProducer declares the topic exchange once at startup and puts the
// channel in confirm mode.
func NewRabbitProducer(ch producerChannel, exchange string) (*RabbitProducer, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &RabbitProducer{ch: ch, exchange: exchange}, nil
}

// Publish sends ev to the exchange with ev.Type as routing key.
func (p *RabbitProducer) Publish(ctx context.Context, ev usecase.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         ev.Type,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

var _ usecase.EventPublisher = (*RabbitProducer)(nil)

type topologyChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// DeclareQueue declares a durable queue bound to a durable topic exchange
// under each routing key.
func DeclareQueue(ch topologyChannel, queue, exchange string, keys ...string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	for _, k := range keys {
		if err := ch.QueueBind(q.Name, k, exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s/%s: %w", queue, exchange, k, err)
		}
	}
	return nil
}
