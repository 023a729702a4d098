package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aq2208/gorder-store/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// consumerChannel is the subset of *amqp.Channel the Router needs.
type consumerChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Router manages multiple consumers (one per registered queue) on a single AMQP channel.
type Router struct {
	ch            consumerChannel
	prefetch      int
	callTimeout   time.Duration
	requeueOnErr  bool
	registrations []registration
	wg            sync.WaitGroup
}

type registration struct {
	queueName   string
	handler     Handler
	consumerTag string
}

// --- Options ---

type RouterOption func(*Router)

func WithPrefetch(n int) RouterOption          { return func(r *Router) { r.prefetch = n } }
func WithTimeout(d time.Duration) RouterOption { return func(r *Router) { r.callTimeout = d } }
func WithRequeue(b bool) RouterOption          { return func(r *Router) { r.requeueOnErr = b } }

// NewRouter constructs a Router. Defaults: prefetch=50, timeout=10s, requeueOnErr=true.
func NewRouter(ch consumerChannel, opts ...RouterOption) *Router {
	r := &Router{
		ch:           ch,
		prefetch:     50,
		callTimeout:  10 * time.Second,
		requeueOnErr: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register associates a queue with a handler. Call multiple times for multiple queues.
func (r *Router) Register(queueName string, h Handler) {
	r.registrations = append(r.registrations, registration{
		queueName:   queueName,
		handler:     h,
		consumerTag: "c_" + queueName,
	})
}

// Start begins consuming; non-blocking (spawns one goroutine per queue).
// Consumers stop when the broker closes their delivery channel; Wait blocks until then.
func (r *Router) Start(ctx context.Context) error {
	if err := r.ch.Qos(r.prefetch, 0, false); err != nil {
		return err
	}

	for _, reg := range r.registrations {
		deliveries, err := r.ch.Consume(
			reg.queueName,
			reg.consumerTag,
			false, // manual ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			return err
		}

		r.wg.Add(1)
		go func(reg registration, msgs <-chan amqp.Delivery) {
			defer r.wg.Done()
			r.consume(ctx, reg, msgs)
		}(reg, deliveries)
	}
	return nil
}

func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) consume(ctx context.Context, reg registration, msgs <-chan amqp.Delivery) {
	log := logging.FromCtx(ctx).With("queue", reg.queueName, "tag", reg.consumerTag)
	for d := range msgs {
		l := log.With("rk", d.RoutingKey, "message_id", d.MessageId)
		hctx, cancel := context.WithTimeout(logging.WithCtx(context.WithoutCancel(ctx), l), r.callTimeout)
		err := reg.handler.Handle(hctx, d)
		cancel()

		if err != nil {
			requeue := r.requeueOnErr && !errors.Is(err, ErrPermanent) && !d.Redelivered
			l.Error("handler error", "err", err, "requeue", requeue)
			_ = d.Nack(false, requeue)
			continue
		}
		_ = d.Ack(false)
	}
	log.Info("consumer stopped")
}
