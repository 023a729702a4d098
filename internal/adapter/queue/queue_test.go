package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type ackRecord struct {
	tag     uint64
	ack     bool
	requeue bool
}

type recordingAcker struct {
	mu   sync.Mutex
	acks []ackRecord
}

func (a *recordingAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, ackRecord{tag: tag, ack: true})
	return nil
}

func (a *recordingAcker) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

type fakeChannel struct {
	prefetch   int
	deliveries map[string]chan amqp.Delivery

	exchanges []string
	queues    []string
	bindings  []string
	confirm   bool
	published []amqp.Publishing
	keys      []string
	pubErr    error
}

func (f *fakeChannel) Qos(n, _ int, _ bool) error { f.prefetch = n; return nil }

func (f *fakeChannel) Consume(queue, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	ch, ok := f.deliveries[queue]
	if !ok {
		return nil, fmt.Errorf("no queue %s", queue)
	}
	return ch, nil
}

func (f *fakeChannel) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	f.exchanges = append(f.exchanges, name)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.queues = append(f.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	f.bindings = append(f.bindings, exchange+"/"+key+"->"+name)
	return nil
}

func (f *fakeChannel) Confirm(bool) error { f.confirm = true; return nil }

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

type handlerFunc func(ctx context.Context, d amqp.Delivery) error

func (f handlerFunc) Handle(ctx context.Context, d amqp.Delivery) error { return f(ctx, d) }

func TestRouter_AckNack(t *testing.T) {
	msgs := make(chan amqp.Delivery, 4)
	ch := &fakeChannel{deliveries: map[string]chan amqp.Delivery{"payment.result.q": msgs}}
	acker := &recordingAcker{}

	r := NewRouter(ch, WithPrefetch(5), WithTimeout(time.Second))
	r.Register("payment.result.q", handlerFunc(func(_ context.Context, d amqp.Delivery) error {
		switch string(d.Body) {
		case "ok":
			return nil
		case "poison":
			return Permanent(errors.New("bad payload"))
		default:
			return errors.New("db down")
		}
	}))
	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, 5, ch.prefetch)

	msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte("ok")}
	msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 2, Body: []byte("poison")}
	msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 3, Body: []byte("flaky")}
	msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 4, Body: []byte("flaky"), Redelivered: true}
	close(msgs)
	r.Wait()

	assert.Equal(t, []ackRecord{
		{tag: 1, ack: true},
		{tag: 2, requeue: false},
		{tag: 3, requeue: true},
		{tag: 4, requeue: false},
	}, acker.acks)
}

func TestRouter_UnknownQueue(t *testing.T) {
	r := NewRouter(&fakeChannel{deliveries: map[string]chan amqp.Delivery{}})
	r.Register("missing.q", handlerFunc(func(context.Context, amqp.Delivery) error { return nil }))
	assert.Error(t, r.Start(context.Background()))
}

func TestJSONHandler(t *testing.T) {
	var got usecase.PaymentResultMsg
	h := JSONHandler[usecase.PaymentResultMsg]{HandleFunc: func(_ context.Context, m usecase.PaymentResultMsg) error {
		got = m
		return nil
	}}

	require.NoError(t, h.Handle(context.Background(), amqp.Delivery{Body: []byte(`{"orderId":"o-1","transactionId":"tx","status":"SUCCESS"}`)}))
	assert.Equal(t, "o-1", got.OrderID)

	err := h.Handle(context.Background(), amqp.Delivery{Body: []byte(`{`)})
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestRabbitProducer(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewRabbitProducer(ch, "")
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultExchange}, ch.exchanges)
	assert.True(t, ch.confirm)

	ev := usecase.OrderEvent{Type: usecase.EventOrderPlaced, OrderID: "o-1", OrderNumber: "AL261016001", Total: "108.00",
		OccurredAt: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, ch.published, 1)
	assert.Equal(t, []string{"order.placed"}, ch.keys)
	msg := ch.published[0]
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "order.placed", msg.Type)
	assert.NotEmpty(t, msg.MessageId)

	var decoded usecase.OrderEvent
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, ev, decoded)

	ch.pubErr = errors.New("channel closed")
	assert.Error(t, p.Publish(context.Background(), ev))
}

func TestDeclareQueue(t *testing.T) {
	ch := &fakeChannel{}
	require.NoError(t, DeclareQueue(ch, "payment.result.q", "payment.events", "payment.succeeded", "payment.failed"))
	assert.Equal(t, []string{"payment.result.q"}, ch.queues)
	assert.Equal(t, []string{
		"payment.events/payment.succeeded->payment.result.q",
		"payment.events/payment.failed->payment.result.q",
	}, ch.bindings)
}

type stubRecorder struct{ err error }

func (s stubRecorder) RecordPayment(context.Context, usecase.PaymentResultMsg) error { return s.err }

func TestPaymentResultHandler(t *testing.T) {
	msg := usecase.PaymentResultMsg{OrderID: "o-1", Status: "SUCCESS"}
	cases := []struct {
		name      string
		err       error
		wantErr   bool
		permanent bool
	}{
		{"applied", nil, false, false},
		{"redelivery", fmt.Errorf("%w: payment already completed", domain.ErrInvalidTransition), false, false},
		{"unknown order", domain.ErrNotFound, true, true},
		{"bad message", domain.ErrValidation, true, true},
		{"transient", errors.New("timeout"), true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewPaymentResultHandler(stubRecorder{err: tc.err}).HandlePaymentResult(context.Background(), msg)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.permanent, errors.Is(err, ErrPermanent))
		})
	}
}
