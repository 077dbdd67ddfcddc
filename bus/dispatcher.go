package bus

import (
	"context"
	"fmt"
	"log/slog"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
)

// CommandInvoker executes one command and returns the handler's result.
type CommandInvoker func(ctx context.Context, cmd any) (any, error)

// CommandMiddleware wraps command execution. Middlewares run in
// registration order around the bound handler.
type CommandMiddleware func(next CommandInvoker) CommandInvoker

// Dispatcher routes a command to its single registered handler. It executes
// on the caller's goroutine and has no side effects of its own; everything
// observable belongs to the invoked handler.
type Dispatcher struct {
	reg    *Registry
	mw     []CommandMiddleware
	logger *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMiddleware appends global command middleware.
func WithMiddleware(mw ...CommandMiddleware) DispatcherOption {
	return func(d *Dispatcher) { d.mw = append(d.mw, mw...) }
}

// WithDispatcherLogger sets the dispatcher's logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// NewDispatcher constructs a Dispatcher over a wired registry.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{reg: reg, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

var _ cbus.Dispatcher = (*Dispatcher)(nil)

// Dispatch resolves the command's handler, invokes it synchronously, and
// returns the handler's result. A command with no handler is an error,
// never a silent no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd cbus.Command) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	invoke, err := d.reg.ResolveCommand(cmd.MessageName())
	if err != nil {
		d.logger.WarnContext(ctx, "command not routable", "command", cmd.MessageName(), "err", err)
		return nil, err
	}

	// Build chain so the first registered middleware runs first.
	final := invoke
	for i := len(d.mw) - 1; i >= 0; i-- {
		final = d.mw[i](final)
	}

	return final(ctx, cmd)
}

// Dispatch is the typed helper around Dispatcher.Dispatch.
func Dispatch[C cbus.Command, R any](ctx context.Context, d *Dispatcher, cmd C) (R, error) {
	var zero R

	res, err := d.Dispatch(ctx, cmd)
	if err != nil {
		return zero, err
	}

	r, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("dispatch %s: result %T: %w", cmd.MessageName(), res, berr.ErrHandlerTypeMismatch)
	}

	return r, nil
}
