// Package nats implements bus.Transport over core NATS subjects.
//
// Events map to subjects named after the event type and queues map to NATS
// queue groups, so every group receives its own copy of each event while
// members of the same group share the load. Core NATS has no persistence or
// redelivery: messages published before a subscription exists are lost, and
// Ack/Nack on deliveries are no-ops. Use the rabbitmq transport when
// at-least-once semantics matter.
package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
)

// Client is a minimal NATS-like interface decoupled from any concrete
// library. Users can provide a wrapper around their NATS connection to
// satisfy this.
type Client interface {
	// Publish publishes a message to a subject with optional headers.
	Publish(subject string, data []byte, headers map[string]string) error
	// QueueSubscribe delivers every message on subject to one member of the
	// named queue group via fn.
	QueueSubscribe(subject, group string, fn func(data []byte, headers map[string]string)) (Subscription, error)
}

// Subscription is an active queue subscription.
type Subscription interface {
	Unsubscribe() error
}

// Transport implements bus.Transport using an injected NATS-like Client.
type Transport struct {
	client Client
}

var _ cbus.Transport = (*Transport)(nil)

// NewTransport builds a Transport over the given client.
func NewTransport(c Client) *Transport { return &Transport{client: c} }

// EnsureTopology is a no-op: NATS subjects exist implicitly and queue groups
// are formed by the subscribers themselves.
func (t *Transport) EnsureTopology(ctx context.Context, _, _ string) error {
	return ctx.Err()
}

// Send publishes body to the subject named after the event.
func (t *Transport) Send(ctx context.Context, event string, body []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if t.client == nil {
		return fmt.Errorf("nats send %s: %w", event, berr.ErrPublishUnavailable)
	}

	if err := t.client.Publish(event, body, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("nats send %s: %w", event, errors.Join(berr.ErrPublishUnavailable, err))
	}

	return nil
}

// Consume joins the queue group on the event's subject. Deliveries carry
// no-op Ack/Nack because core NATS acknowledges nothing; a failed handler
// does not cause redelivery. The stream closes when ctx ends.
func (t *Transport) Consume(ctx context.Context, event, queue string) (<-chan cbus.Delivery, error) {
	if t.client == nil {
		return nil, fmt.Errorf("nats consume %s: %w", queue, berr.ErrPublishUnavailable)
	}

	s := newStream()

	sub, err := t.client.QueueSubscribe(event, queue, func(data []byte, headers map[string]string) {
		s.deliver(ctx, cbus.Delivery{
			Body:    data,
			Headers: headers,
			Ack:     func() error { return nil },
			Nack:    func(bool) error { return nil },
		})
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume %s: %w", queue, errors.Join(berr.ErrPublishUnavailable, err))
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		s.close()
	}()

	return s.out, nil
}

// stream serializes handler callbacks against stream closure so a callback
// still in flight when the subscription ends cannot send on a closed channel.
type stream struct {
	out chan cbus.Delivery

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func newStream() *stream {
	return &stream{out: make(chan cbus.Delivery)}
}

func (s *stream) deliver(ctx context.Context, d cbus.Delivery) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	select {
	case s.out <- d:
	case <-ctx.Done():
	}
}

func (s *stream) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	close(s.out)
}
