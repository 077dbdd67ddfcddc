package bus

import "context"

// EventPublisher sends an event to the queue named after its declared
// message name. Implementations are safe for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// Dispatcher routes a command to its single registered handler and returns
// the handler's result. Typed access to the result is available through
// generic helpers in the bus package.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}
