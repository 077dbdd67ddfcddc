package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
	"github.com/LuizFelipeDev/microrabbit-banking/wire"
)

// Consume outcomes reported to the observer.
const (
	OutcomeHandled  = "handled"
	OutcomeRejected = "rejected"
	OutcomeRequeued = "requeued"
)

// ConsumeObserver is notified after each delivered message with the event
// name, the queue it came from, and the outcome.
type ConsumeObserver func(event, queue, outcome string)

// Subscriber drives one consume loop per event binding in the registry.
// Within a loop, messages are processed one at a time in delivery order;
// loops for different bindings run concurrently on independent channels.
type Subscriber struct {
	transport cbus.Transport
	reg       *Registry
	logger    *slog.Logger
	observer  ConsumeObserver
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithObserver registers a hook for per-message outcomes (metrics).
func WithObserver(obs ConsumeObserver) SubscriberOption {
	return func(s *Subscriber) { s.observer = obs }
}

// WithSubscriberLogger sets the subscriber's logger.
func WithSubscriberLogger(logger *slog.Logger) SubscriberOption {
	return func(s *Subscriber) { s.logger = logger }
}

// NewSubscriber constructs a Subscriber over a sealed registry.
func NewSubscriber(t cbus.Transport, reg *Registry, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{transport: t, reg: reg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run declares topology for every event binding, starts their consume
// loops, and blocks until ctx is canceled and every loop has returned.
// A message in flight when ctx ends either completes in its handler or
// stays unacknowledged for redelivery.
func (s *Subscriber) Run(ctx context.Context) error {
	bindings := s.reg.EventBindings()
	if len(bindings) == 0 {
		return errors.New("subscriber: no event bindings")
	}

	streams := make([]<-chan cbus.Delivery, len(bindings))

	for i, b := range bindings {
		if err := s.transport.EnsureTopology(ctx, b.Event, b.Queue); err != nil {
			return fmt.Errorf("subscribe %s: declare queue %s: %w", b.Event, b.Queue, err)
		}

		deliveries, err := s.transport.Consume(ctx, b.Event, b.Queue)
		if err != nil {
			return fmt.Errorf("subscribe %s: consume queue %s: %w", b.Event, b.Queue, err)
		}

		streams[i] = deliveries
	}

	var wg sync.WaitGroup

	for i, b := range bindings {
		wg.Add(1)

		go func(b EventBinding, deliveries <-chan cbus.Delivery) {
			defer wg.Done()
			s.consumeLoop(ctx, b, deliveries)
		}(b, streams[i])
	}

	wg.Wait()

	return nil
}

func (s *Subscriber) consumeLoop(ctx context.Context, b EventBinding, deliveries <-chan cbus.Delivery) {
	s.logger.InfoContext(ctx, "subscription started", "event", b.Event, "queue", b.Queue)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "subscription stopped", "event", b.Event, "queue", b.Queue)
			return
		case d, ok := <-deliveries:
			if !ok {
				s.logger.WarnContext(ctx, "delivery stream closed", "event", b.Event, "queue", b.Queue)
				return
			}

			s.handleDelivery(ctx, b, d)
		}
	}
}

// handleDelivery applies the acknowledgement policy: a payload that cannot
// decode will never decode, so it is rejected without requeue; a handler
// failure leaves the message for redelivery; success acknowledges it.
func (s *Subscriber) handleDelivery(ctx context.Context, b EventBinding, d cbus.Delivery) {
	e, err := b.decode(d.Body)
	if err != nil {
		name, _ := wire.PeekName(d.Body)
		s.logger.ErrorContext(ctx, "message rejected",
			"event", b.Event, "queue", b.Queue, "payload_type", name,
			"err", errors.Join(berr.ErrDecodingFailed, err))
		s.observe(b, OutcomeRejected)

		if d.Nack != nil {
			if err := d.Nack(false); err != nil {
				s.logger.WarnContext(ctx, "reject failed",
					"event", b.Event, "queue", b.Queue, "err", err)
			}
		}

		return
	}

	if err := b.handle(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "handler failed, message left for redelivery",
			"event", b.Event, "queue", b.Queue, "redelivered", d.Redelivered, "err", err)
		s.observe(b, OutcomeRequeued)

		if d.Nack != nil {
			if err := d.Nack(true); err != nil {
				s.logger.WarnContext(ctx, "requeue failed",
					"event", b.Event, "queue", b.Queue, "err", err)
			}
		}

		return
	}

	if d.Ack != nil {
		if err := d.Ack(); err != nil {
			s.logger.WarnContext(ctx, "ack failed, message will be redelivered",
				"event", b.Event, "queue", b.Queue, "err", err)
		}
	}

	s.observe(b, OutcomeHandled)
}

func (s *Subscriber) observe(b EventBinding, outcome string) {
	if s.observer != nil {
		s.observer(b.Event, b.Queue, outcome)
	}
}
