package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

// Consumer is the slice of *amqp.Channel the worker needs.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// OutcomeReconciler applies one outcome.
type OutcomeReconciler interface {
	Execute(ctx context.Context, cb usecase.Callback) ([]string, error)
}

type Worker struct {
	Channel    Consumer
	Reconciler OutcomeReconciler
	Logger     *zap.Logger
}

func NewWorker(ch Consumer, reconciler OutcomeReconciler, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{Channel: ch, Reconciler: reconciler, Logger: logger}
}

// Start consumes queueName until ctx is cancelled or the channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(
		queueName,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer on %s: %w", queueName, err)
	}

	w.Logger.Info("outcome worker started", zap.String("queue", queueName))
	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("outcome worker stopped", zap.String("queue", queueName))
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", queueName)
			}
			w.handle(ctx, d)
		}
	}
}

// handle acks applied, conflicting and discarded outcomes. Malformed bodies
// are dead lettered; technical failures are requeued once, then dead lettered.
func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var cb usecase.Callback
	if err := json.Unmarshal(d.Body, &cb); err != nil {
		w.Logger.Warn("malformed outcome message", zap.String("message_id", d.MessageId), zap.Error(err))
		w.nack(d, false)
		return
	}

	logger := w.Logger.With(zap.String("reference", cb.Reference()), zap.String("outcome", string(cb.Outcome)))

	var conflict *usecase.ConcurrencyConflict
	updated, err := w.Reconciler.Execute(ctx, cb)
	switch {
	case err == nil:
		logger.Debug("outcome consumed", zap.Strings("updated", updated))
		w.ack(d)
	case errors.As(err, &conflict):
		// a concurrent writer moved the prospect; its state already wins
		logger.Info("outcome dropped on concurrent update", zap.Error(err))
		w.ack(d)
	case usecase.IsTechnicalError(err):
		logger.Error("outcome processing failed", zap.Bool("redelivered", d.Redelivered), zap.Error(err))
		w.nack(d, !d.Redelivered)
	default:
		// mismatches and invalid payloads never succeed on retry
		logger.Warn("outcome discarded", zap.Error(err))
		w.ack(d)
	}
}

func (w *Worker) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		w.Logger.Error("ack failed", zap.Error(err))
	}
}

func (w *Worker) nack(d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		w.Logger.Error("nack failed", zap.Error(err))
	}
}
