package inmemory_test

import (
	"context"
	"testing"
	"time"

	"github.com/LuizFelipeDev/microrabbit-banking/adapters/inmemory"
	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
)

func receive(t *testing.T, ch <-chan cbus.Delivery) cbus.Delivery {
	t.Helper()

	select {
	case d, ok := <-ch:
		if !ok {
			t.Fatalf("stream closed")
		}
		return d
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery")
		return cbus.Delivery{}
	}
}

func TestBroker_RetainsUntilConsumed(t *testing.T) {
	b := inmemory.New()

	if err := b.EnsureTopology(context.Background(), "OrderPlaced", "OrderPlaced"); err != nil {
		t.Fatalf("topology: %v", err)
	}

	if err := b.Send(context.Background(), "OrderPlaced", []byte(`{"n":1}`), nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got := b.Depth("OrderPlaced"); got != 1 {
		t.Fatalf("depth=%d", got)
	}

	// Consumer attached strictly after publication still gets the message.
	ch, err := b.Consume(context.Background(), "OrderPlaced", "OrderPlaced")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	d := receive(t, ch)
	if string(d.Body) != `{"n":1}` || d.Redelivered {
		t.Fatalf("delivery: %q redelivered=%v", d.Body, d.Redelivered)
	}

	if err := d.Ack(); err != nil {
		t.Fatalf("ack: %v", err)
	}
}

func TestBroker_FanOutAcrossQueues(t *testing.T) {
	b := inmemory.New()

	_ = b.EnsureTopology(context.Background(), "OrderPlaced", "OrderPlaced")
	_ = b.EnsureTopology(context.Background(), "OrderPlaced", "OrderPlaced.audit")

	if err := b.Send(context.Background(), "OrderPlaced", []byte("x"), map[string]string{"k": "v"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, q := range []string{"OrderPlaced", "OrderPlaced.audit"} {
		ch, err := b.Consume(context.Background(), "OrderPlaced", q)
		if err != nil {
			t.Fatalf("consume %s: %v", q, err)
		}

		d := receive(t, ch)
		if string(d.Body) != "x" || d.Headers["k"] != "v" {
			t.Fatalf("queue %s delivery: %q %v", q, d.Body, d.Headers)
		}
	}
}

func TestBroker_NackRequeuesAsRedelivered(t *testing.T) {
	b := inmemory.New()

	_ = b.EnsureTopology(context.Background(), "OrderPlaced", "OrderPlaced")
	_ = b.Send(context.Background(), "OrderPlaced", []byte("x"), nil)

	ch, err := b.Consume(context.Background(), "OrderPlaced", "OrderPlaced")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	first := receive(t, ch)
	if err := first.Nack(true); err != nil {
		t.Fatalf("nack: %v", err)
	}

	second := receive(t, ch)
	if !second.Redelivered {
		t.Fatalf("expected redelivered flag")
	}

	if err := second.Nack(false); err != nil {
		t.Fatalf("nack drop: %v", err)
	}

	if got := b.Depth("OrderPlaced"); got != 0 {
		t.Fatalf("depth=%d after drop", got)
	}
}

func TestBroker_SendUnknownEvent(t *testing.T) {
	b := inmemory.New()
	if err := b.Send(context.Background(), "Nope", []byte("x"), nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBroker_ConsumeStopsOnCancel(t *testing.T) {
	b := inmemory.New()
	_ = b.EnsureTopology(context.Background(), "OrderPlaced", "OrderPlaced")

	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Consume(ctx, "OrderPlaced", "OrderPlaced")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("unexpected delivery")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not close")
	}
}
