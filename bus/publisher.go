package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
	"github.com/LuizFelipeDev/microrabbit-banking/wire"
)

// Publisher serializes events and hands them to the queue named exactly
// after the event's declared message name. Once Publish returns nil the
// broker retains the message; the publisher neither retries nor confirms
// downstream consumption.
type Publisher struct {
	transport  cbus.Transport
	propagator cbus.HeaderPropagator
	logger     *slog.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPropagator injects request context into outgoing message headers.
func WithPropagator(p cbus.HeaderPropagator) PublisherOption {
	return func(pub *Publisher) { pub.propagator = p }
}

// WithPublisherLogger sets the publisher's logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(pub *Publisher) { pub.logger = logger }
}

// NewPublisher constructs a Publisher over the given transport.
func NewPublisher(t cbus.Transport, opts ...PublisherOption) *Publisher {
	p := &Publisher{transport: t, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

var _ cbus.EventPublisher = (*Publisher)(nil)

// Publish declares the event's topology idempotently, encodes the event,
// and sends it. It returns once the broker has accepted the message.
func (p *Publisher) Publish(ctx context.Context, e cbus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.transport == nil {
		return fmt.Errorf("publish %s: no transport: %w", e.MessageName(), berr.ErrPublishUnavailable)
	}

	body, err := wire.Encode(e)
	if err != nil {
		return err
	}

	name := e.MessageName()

	if err := p.transport.EnsureTopology(ctx, name, name); err != nil {
		return p.transportErr(ctx, name, "declare", err)
	}

	var headers map[string]string
	if p.propagator != nil {
		headers = make(map[string]string, 4)
		p.propagator.Inject(ctx, headers)
	}

	if err := p.transport.Send(ctx, name, body, headers); err != nil {
		return p.transportErr(ctx, name, "send", err)
	}

	p.logger.DebugContext(ctx, "event published", "event", name)

	return nil
}

func (p *Publisher) transportErr(ctx context.Context, event, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	p.logger.WarnContext(ctx, "publish failed", "event", event, "op", op, "err", err)

	return fmt.Errorf("publish %s %s: %w", event, op, errors.Join(berr.ErrPublishUnavailable, err))
}
