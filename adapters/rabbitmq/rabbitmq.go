package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
)

const contentTypeJSON = "application/json"

// Channel is the subset of *amqp091.Channel the transport uses. It exists
// so the transport can be exercised against a fake in tests.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// ChannelProvider hands out broker channels. The managed Conn implements it;
// tests provide fakes.
type ChannelProvider interface {
	Channel() (Channel, error)
}

// Transport implements bus.Transport over AMQP. Publishes share one channel
// serialized by a mutex (AMQP channels are not safe for unsynchronized
// concurrent use); every Consume opens its own channel so a slow handler
// cannot block delivery to other subscriptions.
type Transport struct {
	provider ChannelProvider
	durable  bool

	pubMu sync.Mutex
	pubCh Channel
}

var _ cbus.Transport = (*Transport)(nil)

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithDurable declares durable exchanges/queues and persistent messages.
// The default matches the observed system: non-durable, non-exclusive.
func WithDurable() TransportOption {
	return func(t *Transport) { t.durable = true }
}

// NewTransport builds a Transport over the given channel provider.
func NewTransport(p ChannelProvider, opts ...TransportOption) *Transport {
	t := &Transport{provider: p}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// EnsureTopology declares the event's fanout exchange and binds the named
// queue to it. AMQP declares are idempotent, so concurrent or repeated
// declarations are no-ops.
func (t *Transport) EnsureTopology(ctx context.Context, event, queue string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.pubMu.Lock()
	defer t.pubMu.Unlock()

	ch, err := t.channelLocked()
	if err != nil {
		return fmt.Errorf("rabbitmq declare %s: %w", event, errors.Join(berr.ErrPublishUnavailable, err))
	}

	if err := t.declare(ch, event, queue); err != nil {
		t.dropChannelLocked()
		return fmt.Errorf("rabbitmq declare %s: %w", event, errors.Join(berr.ErrPublishUnavailable, err))
	}

	return nil
}

func (t *Transport) declare(ch Channel, event, queue string) error {
	if err := ch.ExchangeDeclare(event, amqp.ExchangeFanout, t.durable, false, false, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(queue, t.durable, false, false, false, nil); err != nil {
		return err
	}

	return ch.QueueBind(queue, "", event, false, nil)
}

// Send publishes body to the event's exchange and returns once the broker
// has accepted it.
func (t *Transport) Send(ctx context.Context, event string, body []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var table amqp.Table
	if len(headers) > 0 {
		table = amqp.Table{}
		for k, v := range headers {
			table[k] = v
		}
	}

	mode := amqp.Transient
	if t.durable {
		mode = amqp.Persistent
	}

	t.pubMu.Lock()
	defer t.pubMu.Unlock()

	ch, err := t.channelLocked()
	if err != nil {
		return fmt.Errorf("rabbitmq send %s: %w", event, errors.Join(berr.ErrPublishUnavailable, err))
	}

	err = ch.PublishWithContext(ctx, event, "", false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: mode,
		Headers:      table,
		Body:         body,
	})
	if err != nil {
		t.dropChannelLocked()

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq send %s: %w", event, errors.Join(berr.ErrPublishUnavailable, err))
	}

	return nil
}

// Consume opens a dedicated channel and manual-ack consumer on the queue.
// The event name is carried in the queue's exchange binding, so only the
// queue matters here. The returned stream closes when ctx ends or the broker
// closes the channel; messages in flight at that point stay unacknowledged
// and are redelivered.
func (t *Transport) Consume(ctx context.Context, _, queue string) (<-chan cbus.Delivery, error) {
	ch, err := t.provider.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq consume %s: %w", queue, err)
	}

	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq consume %s: %w", queue, err)
	}

	out := make(chan cbus.Delivery)

	go func() {
		defer close(out)
		defer func() { _ = ch.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				d := cbus.Delivery{
					Body:        msg.Body,
					Headers:     stringHeaders(msg.Headers),
					Redelivered: msg.Redelivered,
					Ack:         func() error { return msg.Ack(false) },
					Nack:        func(requeue bool) error { return msg.Nack(false, requeue) },
				}

				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// channelLocked returns the shared publishing channel, opening one on
// demand. Callers hold pubMu.
func (t *Transport) channelLocked() (Channel, error) {
	if t.pubCh != nil {
		return t.pubCh, nil
	}

	ch, err := t.provider.Channel()
	if err != nil {
		return nil, err
	}

	t.pubCh = ch

	return ch, nil
}

// dropChannelLocked discards the cached channel after a failure so the next
// operation opens a fresh one. Callers hold pubMu.
func (t *Transport) dropChannelLocked() {
	if t.pubCh != nil {
		_ = t.pubCh.Close()
		t.pubCh = nil
	}
}

func stringHeaders(table amqp.Table) map[string]string {
	if len(table) == 0 {
		return nil
	}

	out := make(map[string]string, len(table))

	for k, v := range table {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}

	return out
}
