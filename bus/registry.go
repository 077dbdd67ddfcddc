package bus

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
	"github.com/LuizFelipeDev/microrabbit-banking/wire"
)

type commandEntry struct {
	invoke func(ctx context.Context, cmd any) (any, error)
	raw    any
}

// EventBinding is one handler bound to one event type. Each binding owns a
// distinct queue so every bound handler receives every published event.
type EventBinding struct {
	Event string
	Queue string

	decode func(data []byte) (any, error)
	handle func(ctx context.Context, e any) error
	raw    any
}

// Registry maps declared message names to the handlers responsible for
// them. Bindings are established during startup wiring and then sealed;
// binds after Seal fail by contract, so reads never contend with writes
// once the process is serving.
type Registry struct {
	mu     sync.RWMutex
	sealed bool

	commands map[string][]commandEntry
	events   map[string][]EventBinding
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string][]commandEntry),
		events:   make(map[string][]EventBinding),
	}
}

// Seal freezes the registry. Every later bind returns ErrRegistrySealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// BindCommand registers the single handler for command type C. A second
// binding for the same command name is a configuration error.
func BindCommand[C cbus.Command, R any](r *Registry, h cbus.CommandHandler[C, R]) error {
	var zero C
	name := zero.MessageName()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("bind command %s: %w", name, berr.ErrRegistrySealed)
	}

	if len(r.commands[name]) > 0 {
		return fmt.Errorf("bind command %s: %w", name, berr.ErrDuplicateCommandBinding)
	}

	entry := commandEntry{
		invoke: func(ctx context.Context, v any) (any, error) {
			c, ok := v.(C)
			if !ok {
				return nil, fmt.Errorf("dispatch %s: got %T: %w", name, v, berr.ErrHandlerTypeMismatch)
			}

			return h.Handle(ctx, c)
		},
		raw: h,
	}
	r.commands[name] = append(r.commands[name], entry)

	return nil
}

// BindEvent registers a handler for event type E. Multiple handlers are
// allowed; the first binding consumes the queue named exactly after the
// event, later bindings get their own queue derived from the handler name.
func BindEvent[E cbus.Event](r *Registry, h cbus.EventHandler[E]) error {
	var zero E
	return BindEventQueue[E](r, h, defaultQueueName(r, zero.MessageName(), h))
}

// BindEventQueue registers a handler for event type E consuming from an
// explicitly named queue. Use it when the derived queue name must stay
// stable independently of handler type names.
func BindEventQueue[E cbus.Event](r *Registry, h cbus.EventHandler[E], queue string) error {
	var zero E
	name := zero.MessageName()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("bind event %s: %w", name, berr.ErrRegistrySealed)
	}

	for _, existing := range r.events[name] {
		if existing.Queue == queue {
			return fmt.Errorf("bind event %s: queue %s already bound", name, queue)
		}
	}

	binding := EventBinding{
		Event: name,
		Queue: queue,
		decode: func(data []byte) (any, error) {
			return wire.Decode[E](data)
		},
		handle: func(ctx context.Context, v any) error {
			e, ok := v.(E)
			if !ok {
				return fmt.Errorf("consume %s: got %T: %w", name, v, berr.ErrHandlerTypeMismatch)
			}

			return h.Handle(ctx, e)
		},
		raw: h,
	}
	r.events[name] = append(r.events[name], binding)

	return nil
}

// ResolveCommand returns the single handler bound to the named command.
// Zero bindings is ErrUnroutableCommand; more than one should have been
// rejected at bind time but is still reported as ErrAmbiguousCommandBinding.
func (r *Registry) ResolveCommand(name string) (func(ctx context.Context, cmd any) (any, error), error) {
	r.mu.RLock()
	entries := r.commands[name]
	r.mu.RUnlock()

	switch len(entries) {
	case 0:
		return nil, fmt.Errorf("resolve command %s: %w", name, berr.ErrUnroutableCommand)
	case 1:
		return entries[0].invoke, nil
	default:
		return nil, fmt.Errorf("resolve command %s: %d handlers: %w", name, len(entries), berr.ErrAmbiguousCommandBinding)
	}
}

// ResolveEvents returns the bindings for the named event; the slice may be
// empty, since events with no observers are valid.
func (r *Registry) ResolveEvents(name string) []EventBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]EventBinding(nil), r.events[name]...)
}

// EventBindings returns every event binding, the subscriber's routing table.
func (r *Registry) EventBindings() []EventBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]EventBinding, 0, len(r.events))
	for _, bindings := range r.events {
		all = append(all, bindings...)
	}

	return all
}

// defaultQueueName picks the event name itself for the first binding and a
// handler-derived suffix for later ones, so independent handlers never
// compete for the same deliveries.
func defaultQueueName(r *Registry, event string, h any) string {
	r.mu.RLock()
	bound := len(r.events[event])
	r.mu.RUnlock()

	if bound == 0 {
		return event
	}

	return event + "." + handlerName(h)
}

func handlerName(h any) string {
	t := reflect.TypeOf(h)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := t.Name()
	if name == "" {
		name = t.String()
	}

	return strings.ReplaceAll(name, "/", ".")
}
