package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/leadworks/leadgate/internal/wire"
)

// Handler processes one parsed message. A nil return acknowledges the
// delivery; a Permanent-wrapped error also acknowledges; any other error
// releases the delivery for redelivery.
type Handler func(ctx context.Context, msg *wire.ParsedMessage) error

const idleDelay = time.Second

// Runner drives the consume loop: receive a batch, process it sequentially,
// acknowledge or release each delivery by outcome.
type Runner struct {
	consumer Consumer
	handler  Handler
	logger   *slog.Logger
	tracer   trace.Tracer

	sleep func(ctx context.Context, d time.Duration)
}

func NewRunner(consumer Consumer, handler Handler, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		consumer: consumer,
		handler:  handler,
		logger:   logger,
		tracer:   otel.Tracer("leadgate/queue"),
		sleep:    sleepCtx,
	}
}

// Run polls until ctx is cancelled. It only returns ctx.Err(); transient
// receive failures are logged and retried after a pause.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := r.consumer.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("queue receive failed", "error", err)
			r.sleep(ctx, idleDelay)
			continue
		}
		if len(batch) == 0 {
			r.sleep(ctx, idleDelay)
			continue
		}

		released := false
		for _, d := range batch {
			if r.processOne(ctx, d) {
				released = true
			}
		}
		// A released delivery means a transient failure. Pause before the
		// next receive so backends that requeue instantly do not spin.
		if released {
			r.sleep(ctx, idleDelay)
		}
	}
}

// processOne reports whether the delivery was released for redelivery.
func (r *Runner) processOne(ctx context.Context, d Delivery) bool {
	ctx, span := r.tracer.Start(ctx, "queue.process",
		trace.WithAttributes(attribute.String("messaging.message.id", d.MessageID)))
	defer span.End()

	err := r.handleSafely(ctx, d)
	switch {
	case err == nil:
		r.ack(ctx, d)
	case IsPermanent(err):
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("message failed permanently, dropping",
			"message_id", d.MessageID, "error", err)
		r.ack(ctx, d)
	default:
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("message failed, releasing for redelivery",
			"message_id", d.MessageID, "error", err)
		if rerr := r.consumer.Release(ctx, d); rerr != nil {
			r.logger.Warn("release failed", "message_id", d.MessageID, "error", rerr)
		}
		return true
	}
	return false
}

// handleSafely parses and handles one delivery, converting panics into
// errors so one poisoned message cannot kill the loop. Parse failures are
// permanent: the payload will not get better on redelivery.
func (r *Runner) handleSafely(ctx context.Context, d Delivery) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while handling message: %v", rec)
		}
	}()

	msg, perr := wire.Parse(d.Body)
	if perr != nil {
		var pe *wire.ParseError
		if errors.As(perr, &pe) {
			return Permanent(perr)
		}
		return perr
	}
	return r.handler(ctx, msg)
}

func (r *Runner) ack(ctx context.Context, d Delivery) {
	if err := r.consumer.Delete(ctx, d); err != nil {
		r.logger.Warn("delete failed, message will redeliver",
			"message_id", d.MessageID, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
