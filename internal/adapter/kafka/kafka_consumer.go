package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/aq2208/gorder-store/internal/logging"
)

// HandlerFunc processes a decoded event.
type HandlerFunc[T any] func(ctx context.Context, ev T) error

// Consumer consumes topics with a single handler. Messages are decoded from JSON into T.
type Consumer[T any] struct {
	Group  sarama.ConsumerGroup
	Topics []string
	Handle HandlerFunc[T]
}

func NewConsumer[T any](group sarama.ConsumerGroup, topics []string, h HandlerFunc[T]) *Consumer[T] {
	return &Consumer[T]{
		Group:  group,
		Topics: topics,
		Handle: h,
	}
}

const (
	defaultAttempts = 3
	defaultBackoff  = 200 * time.Millisecond
)

// Start blocks until ctx is cancelled or the group is closed.
func (c *Consumer[T]) Start(ctx context.Context) error {
	log := logging.FromCtx(ctx).With("topics", c.Topics)
	go func() {
		for err := range c.Group.Errors() {
			log.Error("kafka group error", "err", err)
		}
	}()

	handler := &cgHandler[T]{handle: c.Handle, attempts: defaultAttempts, backoff: defaultBackoff}
	for {
		// A claim that gives up on a message ends the session; the next Consume
		// resumes from the last committed offset, which is that message.
		err := c.Group.Consume(ctx, c.Topics, handler)
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type cgHandler[T any] struct {
	handle   HandlerFunc[T]
	attempts int
	backoff  time.Duration
}

func (h *cgHandler[T]) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *cgHandler[T]) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks handled and undecodable messages. A message whose handler
// keeps failing is left unmarked and stops the claim, so nothing after it is
// marked either and the group redelivers from it.
func (h *cgHandler[T]) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		l := logging.FromCtx(sess.Context()).With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		var ev T
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			l.Warn("kafka decode error", "err", err)
			sess.MarkMessage(msg, "decode-error")
			continue
		}
		if err := h.handleWithRetry(logging.WithCtx(sess.Context(), l), ev); err != nil {
			l.Error("handler error, stopping claim", "err", err, "key", string(msg.Key))
			return fmt.Errorf("offset %d: %w", msg.Offset, err)
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

func (h *cgHandler[T]) handleWithRetry(ctx context.Context, ev T) error {
	attempts := max(h.attempts, 1)
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(h.backoff * time.Duration(i)):
			}
		}
		if err = h.handle(ctx, ev); err == nil {
			return nil
		}
	}
	return err
}
