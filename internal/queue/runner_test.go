package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leadworks/leadgate/internal/wire"
)

type scriptedConsumer struct {
	batches  [][]Delivery
	deleted  []string
	released []string
	cancel   context.CancelFunc
}

func (c *scriptedConsumer) Receive(ctx context.Context) ([]Delivery, error) {
	if len(c.batches) == 0 {
		// Script exhausted: stop the runner.
		c.cancel()
		return nil, ctx.Err()
	}
	b := c.batches[0]
	c.batches = c.batches[1:]
	return b, nil
}

func (c *scriptedConsumer) Delete(ctx context.Context, d Delivery) error {
	c.deleted = append(c.deleted, d.MessageID)
	return nil
}

func (c *scriptedConsumer) Release(ctx context.Context, d Delivery) error {
	c.released = append(c.released, d.MessageID)
	return nil
}

func (c *scriptedConsumer) Close() error { return nil }

func runScript(t *testing.T, batches [][]Delivery, h Handler) *scriptedConsumer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &scriptedConsumer{batches: batches, cancel: cancel}
	r := NewRunner(c, h, nil)
	r.sleep = func(context.Context, time.Duration) {}
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	return c
}

func delivery(id, body string) Delivery {
	return Delivery{MessageID: id, ReceiptHandle: "rh-" + id, Body: []byte(body)}
}

const validBody = `{"from":"919876543210","id":"wamid.1","timestamp":"1735689600","type":"text","text":{"body":"hello"}}`

func TestRun_HandledMessageIsDeleted(t *testing.T) {
	var handled []string
	c := runScript(t, [][]Delivery{{delivery("m1", validBody)}},
		func(ctx context.Context, msg *wire.ParsedMessage) error {
			handled = append(handled, msg.Content)
			return nil
		})

	if len(handled) != 1 || handled[0] != "hello" {
		t.Errorf("handled = %v, want [hello]", handled)
	}
	if len(c.deleted) != 1 || c.deleted[0] != "m1" {
		t.Errorf("deleted = %v, want [m1]", c.deleted)
	}
	if len(c.released) != 0 {
		t.Errorf("released = %v, want none", c.released)
	}
}

func TestRun_MalformedPayloadIsDroppedNotReleased(t *testing.T) {
	handled := 0
	c := runScript(t, [][]Delivery{{delivery("bad", `{"from":`)}},
		func(ctx context.Context, msg *wire.ParsedMessage) error {
			handled++
			return nil
		})

	if handled != 0 {
		t.Error("handler invoked for unparsable payload")
	}
	if len(c.deleted) != 1 || c.deleted[0] != "bad" {
		t.Errorf("deleted = %v, want [bad]", c.deleted)
	}
	if len(c.released) != 0 {
		t.Errorf("released = %v, want none", c.released)
	}
}

func TestRun_TransientHandlerErrorReleases(t *testing.T) {
	c := runScript(t, [][]Delivery{{delivery("m1", validBody)}},
		func(ctx context.Context, msg *wire.ParsedMessage) error {
			return errors.New("db down")
		})

	if len(c.released) != 1 || c.released[0] != "m1" {
		t.Errorf("released = %v, want [m1]", c.released)
	}
	if len(c.deleted) != 0 {
		t.Errorf("deleted = %v, want none", c.deleted)
	}
}

func TestRun_PermanentHandlerErrorDeletes(t *testing.T) {
	c := runScript(t, [][]Delivery{{delivery("m1", validBody)}},
		func(ctx context.Context, msg *wire.ParsedMessage) error {
			return Permanent(errors.New("lead gone"))
		})

	if len(c.deleted) != 1 {
		t.Errorf("deleted = %v, want [m1]", c.deleted)
	}
	if len(c.released) != 0 {
		t.Errorf("released = %v, want none", c.released)
	}
}

func TestRun_PanicReleasesForRedelivery(t *testing.T) {
	c := runScript(t, [][]Delivery{{delivery("m1", validBody)}},
		func(ctx context.Context, msg *wire.ParsedMessage) error {
			panic("boom")
		})

	if len(c.released) != 1 {
		t.Errorf("released = %v, want [m1]", c.released)
	}
	if len(c.deleted) != 0 {
		t.Errorf("deleted = %v, want none", c.deleted)
	}
}

func TestRun_BatchProcessedInOrder(t *testing.T) {
	var order []string
	c := runScript(t, [][]Delivery{{
		delivery("m1", validBody),
		delivery("m2", validBody),
		delivery("m3", validBody),
	}}, func(ctx context.Context, msg *wire.ParsedMessage) error {
		return nil
	})
	order = c.deleted

	want := []string{"m1", "m2", "m3"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("delete order = %v, want %v", order, want)
		}
	}
}

// A released delivery must be followed by the idle pause so a failing
// dependency is probed at the poll cadence, not in a tight loop.
func TestRun_ReleasedDeliveryPausesBeforeNextReceive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &scriptedConsumer{
		batches: [][]Delivery{
			{delivery("m1", validBody)},
			{delivery("m2", validBody)},
		},
		cancel: cancel,
	}
	calls := 0
	r := NewRunner(c, func(ctx context.Context, msg *wire.ParsedMessage) error {
		calls++
		if calls == 1 {
			return errors.New("db down")
		}
		return nil
	}, nil)
	sleeps := 0
	r.sleep = func(context.Context, time.Duration) { sleeps++ }
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}

	if len(c.released) != 1 || c.released[0] != "m1" {
		t.Fatalf("released = %v, want [m1]", c.released)
	}
	if sleeps != 1 {
		t.Errorf("sleeps = %d, want 1 after the released batch", sleeps)
	}
}

func TestRun_CleanBatchDoesNotPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &scriptedConsumer{
		batches: [][]Delivery{{delivery("m1", validBody)}},
		cancel:  cancel,
	}
	r := NewRunner(c, func(ctx context.Context, msg *wire.ParsedMessage) error {
		return nil
	}, nil)
	sleeps := 0
	r.sleep = func(context.Context, time.Duration) { sleeps++ }
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if sleeps != 0 {
		t.Errorf("sleeps = %d, want 0 for a fully acked batch", sleeps)
	}
}

func TestIsPermanent(t *testing.T) {
	base := errors.New("x")
	if IsPermanent(base) {
		t.Error("plain error reported permanent")
	}
	if !IsPermanent(Permanent(base)) {
		t.Error("Permanent(err) not reported permanent")
	}
	wrapped := errors.Join(errors.New("outer"), Permanent(base))
	if !IsPermanent(wrapped) {
		t.Error("wrapped permanent error not detected")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
