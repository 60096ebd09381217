package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

// Publisher is the slice of *amqp.Channel the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type OutcomeProducer interface {
	PublishOutcome(ctx context.Context, cb usecase.Callback) error
}

type RabbitMQProducer struct {
	Ch Publisher
}

func NewProducer(ch Publisher) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch}
}

// PublishOutcome enqueues a callback for the outcome worker.
func (p *RabbitMQProducer) PublishOutcome(ctx context.Context, cb usecase.Callback) error {
	body, err := json.Marshal(cb)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    cb.Reference() + ":" + string(cb.Outcome),
		},
	)
	if err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	return nil
}
