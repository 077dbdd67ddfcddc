package bus

import "context"

// Delivery is one encoded event received from a queue. Ack and Nack are
// bound to the originating broker channel by the transport that produced
// the delivery.
type Delivery struct {
	Body        []byte
	Headers     map[string]string
	Redelivered bool

	// Ack confirms the message was processed and may be discarded.
	Ack func() error
	// Nack returns the message to the broker; with requeue the broker
	// redelivers it later, without requeue it is dropped (or dead-lettered
	// if the transport declares a dead-letter target).
	Nack func(requeue bool) error
}

// Transport moves encoded event payloads to and from named broker queues.
// Library users provide an implementation backed by their broker
// (RabbitMQ, NATS, Kafka, in-memory, etc.).
type Transport interface {
	// EnsureTopology declares the fan-out point for the event and a queue
	// bound to it. Declaring topology that already exists is a no-op, so
	// publishers and subscribers may both call it in any order.
	EnsureTopology(ctx context.Context, event, queue string) error

	// Send publishes body to the event's fan-out point. It returns only
	// once the broker has accepted the message, or with an error.
	Send(ctx context.Context, event string, body []byte, headers map[string]string) error

	// Consume opens an independent delivery stream from the named queue of
	// the given event. Each call must use its own broker channel so that
	// one slow consumer cannot stall deliveries to another. The stream
	// closes when ctx is canceled or the underlying channel dies.
	Consume(ctx context.Context, event, queue string) (<-chan Delivery, error)
}
