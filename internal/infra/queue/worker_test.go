package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Execute(ctx context.Context, cb usecase.Callback) ([]string, error) {
	args := m.Called(ctx, cb)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

type recordingAck struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue []bool
}

func (a *recordingAck) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *recordingAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *recordingAck) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

func delivery(t *testing.T, ack amqp.Acknowledger, body any, redelivered bool) amqp.Delivery {
	t.Helper()
	raw, ok := body.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return amqp.Delivery{Acknowledger: ack, Body: raw, Redelivered: redelivered}
}

func TestWorkerHandle(t *testing.T) {
	cb := usecase.Callback{ProspectID: "p-1", Outcome: usecase.OutcomeSent}

	tests := []struct {
		name        string
		body        any
		redelivered bool
		result      error
		wantAck     bool
		wantRequeue bool
	}{
		{name: "applied", body: cb, wantAck: true},
		{name: "mismatch is discarded", body: cb, result: &usecase.ReconciliationMismatch{Reference: "p-1", Reason: "unknown prospect"}, wantAck: true},
		{name: "technical error requeued once", body: cb, result: &usecase.TechnicalError{Code: "DATABASE_ERROR", Err: errors.New("down")}, wantRequeue: true},
		{name: "technical error dead lettered on redelivery", body: cb, redelivered: true, result: &usecase.TechnicalError{Code: "DATABASE_ERROR", Err: errors.New("down")}},
		{name: "conflict acked", body: cb, result: &usecase.ConcurrencyConflict{ProspectID: "p-1"}, wantAck: true},
		{name: "malformed body dead lettered", body: []byte("{not json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(MockReconciler)
			if _, raw := tt.body.([]byte); !raw {
				rec.On("Execute", mock.Anything, cb).Return([]string{"p-1"}, tt.result).Once()
			}
			ack := &recordingAck{}
			w := NewWorker(nil, rec, nil)

			w.handle(context.Background(), delivery(t, ack, tt.body, tt.redelivered))

			rec.AssertExpectations(t)
			if tt.wantAck {
				assert.Equal(t, 1, ack.acks)
				assert.Zero(t, ack.nacks)
				return
			}
			assert.Zero(t, ack.acks)
			require.Equal(t, 1, ack.nacks)
			assert.Equal(t, tt.wantRequeue, ack.requeue[0])
		})
	}
}

type fakeConsumer struct {
	deliveries chan amqp.Delivery
	err        error
}

func (f *fakeConsumer) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, f.err
}

func TestWorkerStartStopsOnCancel(t *testing.T) {
	cb := usecase.Callback{ProspectID: "p-1", Outcome: usecase.OutcomeRequested}
	rec := new(MockReconciler)
	rec.On("Execute", mock.Anything, cb).Return([]string{"p-1"}, nil).Once()

	consumer := &fakeConsumer{deliveries: make(chan amqp.Delivery, 1)}
	ack := &recordingAck{}
	consumer.deliveries <- delivery(t, ack, cb, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWorker(consumer, rec, nil).Start(ctx, QueueName) }()

	require.Eventually(t, func() bool {
		ack.mu.Lock()
		defer ack.mu.Unlock()
		return ack.acks == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	rec.AssertExpectations(t)
}

func TestWorkerStartReportsClosedChannel(t *testing.T) {
	consumer := &fakeConsumer{deliveries: make(chan amqp.Delivery)}
	close(consumer.deliveries)

	err := NewWorker(consumer, new(MockReconciler), nil).Start(context.Background(), QueueName)
	assert.Error(t, err)
}

func TestWorkerStartConsumeError(t *testing.T) {
	consumer := &fakeConsumer{err: errors.New("channel closed")}
	err := NewWorker(consumer, new(MockReconciler), nil).Start(context.Background(), QueueName)
	assert.ErrorContains(t, err, "channel closed")
}

type fakePublisher struct {
	exchange, key string
	msg           amqp.Publishing
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func TestProducerPublishesOutcome(t *testing.T) {
	pub := &fakePublisher{}
	cb := usecase.Callback{ProviderMessageID: "msg-1", Outcome: usecase.OutcomeRejected, Reason: "declined"}

	require.NoError(t, NewProducer(pub).PublishOutcome(context.Background(), cb))

	assert.Equal(t, ExchangeName, pub.exchange)
	assert.Equal(t, RoutingKey, pub.key)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, "provider:msg-1:rejected", pub.msg.MessageId)

	var got usecase.Callback
	require.NoError(t, json.Unmarshal(pub.msg.Body, &got))
	assert.Equal(t, cb, got)
}
