// Package kafka implements bus.Transport over Kafka topics.
//
// Events map to topics named after the event type and queues map to consumer
// groups, so every group sees every event while members of one group split
// the partitions. Kafka has no per-message reject: Ack commits the record's
// offset, Nack(requeue=true) leaves it uncommitted so the group re-reads it
// after a rebalance or restart, and Nack(requeue=false) commits it anyway to
// skip past a record that can never be processed.
package kafka

import (
	"context"
	"errors"
	"fmt"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
)

// Writer is a minimal Kafka-like producer interface.
// Users can adapt franz-go or any other client to this.
type Writer interface {
	Write(topic string, key, value []byte, headers map[string]string) error
}

// Record is one consumed Kafka record. Offset identifies it to Commit.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
}

// Poller reads records for one consumer group and commits offsets.
type Poller interface {
	Poll(ctx context.Context) ([]Record, error)
	Commit(ctx context.Context, rec Record) error
	Close() error
}

// PollerFactory opens a group consumer on a topic. The Transport calls it
// once per Consume.
type PollerFactory func(topic, group string) (Poller, error)

// Transport implements bus.Transport using injected Writer and PollerFactory.
type Transport struct {
	writer  Writer
	pollers PollerFactory
}

var _ cbus.Transport = (*Transport)(nil)

// NewTransport builds a Transport. pollers may be nil for publish-only use,
// in which case Consume fails.
func NewTransport(w Writer, pollers PollerFactory) *Transport {
	return &Transport{writer: w, pollers: pollers}
}

// EnsureTopology is a no-op: topic creation is a broker concern
// (auto-creation or provisioning), not a client one.
func (t *Transport) EnsureTopology(ctx context.Context, _, _ string) error {
	return ctx.Err()
}

// Send produces body to the topic named after the event.
func (t *Transport) Send(ctx context.Context, event string, body []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if t.writer == nil {
		return fmt.Errorf("kafka send %s: %w", event, berr.ErrPublishUnavailable)
	}

	if err := t.writer.Write(event, nil, body, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("kafka send %s: %w", event, errors.Join(berr.ErrPublishUnavailable, err))
	}

	return nil
}

// Consume joins the consumer group named by queue on the event's topic and
// streams its records. The stream closes when ctx ends or polling fails.
func (t *Transport) Consume(ctx context.Context, event, queue string) (<-chan cbus.Delivery, error) {
	if t.pollers == nil {
		return nil, fmt.Errorf("kafka consume %s: %w", queue, berr.ErrPublishUnavailable)
	}

	p, err := t.pollers(event, queue)
	if err != nil {
		return nil, fmt.Errorf("kafka consume %s: %w", queue, errors.Join(berr.ErrPublishUnavailable, err))
	}

	out := make(chan cbus.Delivery)

	go func() {
		defer close(out)
		defer func() { _ = p.Close() }()

		for {
			recs, err := p.Poll(ctx)
			if err != nil {
				return
			}

			for _, rec := range recs {
				if !t.emit(ctx, out, p, rec) {
					return
				}
			}
		}
	}()

	return out, nil
}

func (t *Transport) emit(ctx context.Context, out chan<- cbus.Delivery, p Poller, rec Record) bool {
	// Kafka does not flag redelivery, so Redelivered stays false.
	d := cbus.Delivery{
		Body:    rec.Value,
		Headers: rec.Headers,
		Ack:     func() error { return p.Commit(ctx, rec) },
		Nack: func(requeue bool) error {
			if requeue {
				return nil
			}

			return p.Commit(ctx, rec)
		},
	}

	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}
