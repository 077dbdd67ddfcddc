// Package inmemory provides an in-process Transport with real queue
// semantics: published events are retained until consumed, and a
// negative-acknowledged delivery is requeued for redelivery. It backs
// tests and examples without a broker.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
)

type item struct {
	body        []byte
	headers     map[string]string
	redelivered bool
}

type queue struct {
	mu     sync.Mutex
	items  []item
	signal chan struct{}
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

func (q *queue) push(it item) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// next blocks until an item is available or ctx ends.
func (q *queue) next(ctx context.Context) (item, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()

			return it, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return item{}, false
		case <-q.signal:
		}
	}
}

func (q *queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

type exchange struct {
	queues map[string]*queue
}

// Broker is a thread-safe in-memory Transport. One fan-out point per event
// name; every queue bound to it receives every event sent after the bind.
type Broker struct {
	mu        sync.Mutex
	exchanges map[string]*exchange
}

var _ cbus.Transport = (*Broker)(nil)

// New creates an empty in-memory broker.
func New() *Broker {
	return &Broker{exchanges: make(map[string]*exchange)}
}

// EnsureTopology declares the event's fan-out point and binds the named
// queue to it. Re-declaring existing topology is a no-op.
func (b *Broker) EnsureTopology(ctx context.Context, event, queueName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ex, ok := b.exchanges[event]
	if !ok {
		ex = &exchange{queues: make(map[string]*queue)}
		b.exchanges[event] = ex
	}

	if _, ok := ex.queues[queueName]; !ok {
		ex.queues[queueName] = newQueue()
	}

	return nil
}

// Send fans body out to every queue bound to the event.
func (b *Broker) Send(ctx context.Context, event string, body []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	ex, ok := b.exchanges[event]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("inmemory send: unknown event %s", event)
	}

	queues := make([]*queue, 0, len(ex.queues))
	for _, q := range ex.queues {
		queues = append(queues, q)
	}
	b.mu.Unlock()

	for _, q := range queues {
		bodyCopy := append([]byte(nil), body...)
		q.push(item{body: bodyCopy, headers: cloneHeaders(headers)})
	}

	return nil
}

// Consume opens a delivery stream from the named queue. The stream closes
// when ctx ends; an unacknowledged in-flight item is requeued.
func (b *Broker) Consume(ctx context.Context, event, queueName string) (<-chan cbus.Delivery, error) {
	q, err := b.findQueue(event, queueName)
	if err != nil {
		return nil, err
	}

	out := make(chan cbus.Delivery)

	go func() {
		defer close(out)

		for {
			it, ok := q.next(ctx)
			if !ok {
				return
			}

			d := cbus.Delivery{
				Body:        it.body,
				Headers:     it.headers,
				Redelivered: it.redelivered,
				Ack:         func() error { return nil },
				Nack: func(requeue bool) error {
					if requeue {
						q.push(item{body: it.body, headers: it.headers, redelivered: true})
					}
					return nil
				},
			}

			select {
			case out <- d:
			case <-ctx.Done():
				// Never handed to the consumer; put it back.
				q.push(item{body: it.body, headers: it.headers, redelivered: it.redelivered})
				return
			}
		}
	}()

	return out, nil
}

// Queues reports the queue names currently bound to the event.
func (b *Broker) Queues(event string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ex, ok := b.exchanges[event]
	if !ok {
		return nil
	}

	names := make([]string, 0, len(ex.queues))
	for name := range ex.queues {
		names = append(names, name)
	}

	return names
}

// Depth reports the number of retained messages in the named queue.
func (b *Broker) Depth(queueName string) int {
	q, err := b.findQueue("", queueName)
	if err != nil {
		return 0
	}

	return q.depth()
}

// findQueue looks the queue up under the event's exchange when given, or
// across every exchange otherwise.
func (b *Broker) findQueue(event, queueName string) (*queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if event != "" {
		if ex, ok := b.exchanges[event]; ok {
			if q, ok := ex.queues[queueName]; ok {
				return q, nil
			}
		}

		return nil, fmt.Errorf("inmemory consume: unknown queue %s for event %s", queueName, event)
	}

	for _, ex := range b.exchanges {
		if q, ok := ex.queues[queueName]; ok {
			return q, nil
		}
	}

	return nil, fmt.Errorf("inmemory consume: unknown queue %s", queueName)
}

func cloneHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}

	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}

	return out
}
