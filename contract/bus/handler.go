package bus

import "context"

// CommandHandler handles commands of type C and produces a result of type R.
// Implementations must be safe for concurrent use by multiple goroutines.
type CommandHandler[C Command, R any] interface {
	Handle(ctx context.Context, c C) (R, error)
}

// EventHandler handles events of type E delivered from the handler's queue.
// A handler returning an error leaves the message unacknowledged, so the
// broker will redeliver it; implementations must therefore tolerate being
// re-invoked with the same event.
type EventHandler[E Event] interface {
	Handle(ctx context.Context, e E) error
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc[C Command, R any] func(ctx context.Context, c C) (R, error)

func (f CommandHandlerFunc[C, R]) Handle(ctx context.Context, c C) (R, error) { return f(ctx, c) }

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc[E Event] func(ctx context.Context, e E) error

func (f EventHandlerFunc[E]) Handle(ctx context.Context, e E) error { return f(ctx, e) }
