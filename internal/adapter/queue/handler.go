package queue

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes a single delivery. It should be idempotent.
// Return nil => ACK; return error => NACK (requeue behavior controlled by Router,
// except for permanent errors which are never requeued).
type Handler interface {
	Handle(ctx context.Context, d amqp.Delivery) error
}

var ErrPermanent = errors.New("permanent failure")

type permanentError struct{ err error }

func (e permanentError) Error() string        { return e.err.Error() }
func (e permanentError) Is(target error) bool { return target == ErrPermanent }
func (e permanentError) Unwrap() error        { return e.err }

// Permanent marks err so the Router drops the delivery instead of requeueing it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}
