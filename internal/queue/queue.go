// Package queue abstracts the inbound message queue. The pipeline only sees
// Delivery and Consumer; SQS and AMQP backends live in subpackages.
package queue

import (
	"context"
	"errors"
	"time"
)

// Delivery is one message pulled off the queue. ReceiptHandle is whatever
// the backend needs to delete or release it (SQS receipt handle, AMQP
// delivery tag).
type Delivery struct {
	MessageID     string
	ReceiptHandle string
	Body          []byte
	Received      time.Time
}

// Consumer pulls deliveries from a queue. Receive blocks up to the backend's
// wait time and may return an empty batch; that is not an error.
type Consumer interface {
	Receive(ctx context.Context) ([]Delivery, error)

	// Delete acknowledges a delivery so it will not be seen again.
	Delete(ctx context.Context, d Delivery) error

	// Release returns an unacknowledged delivery for prompt redelivery
	// instead of waiting out the visibility window.
	Release(ctx context.Context, d Delivery) error

	Close() error
}

// permanentError marks a failure that redelivery cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the runner acknowledges the message instead of
// letting it redeliver.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked with
// Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
