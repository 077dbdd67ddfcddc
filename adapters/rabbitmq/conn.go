package rabbitmq

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
)

// Managed AMQP connection with auto-reconnect. A single Conn is shared by
// the publisher and every subscription; each caller opens its own channel.

// Config carries broker connection parameters.
type Config struct {
	URL         string
	ConnTimeout time.Duration
}

// Conn dials the broker and keeps the connection alive, reconnecting with
// exponential backoff and jitter when it drops.
type Conn struct {
	cfg    Config
	mu     sync.RWMutex
	conn   *amqp.Connection
	closed chan struct{}
	ready  chan struct{} // closed when a connection is ready
}

var _ ChannelProvider = (*Conn)(nil)

// Dial starts the managed connection and returns it with a cleanup func.
// Dial itself does not block on broker availability; the first Channel call
// waits for readiness.
func Dial(cfg Config) (*Conn, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: rabbitmq url required", berr.ErrPublishUnavailable)
	}

	c := &Conn{
		cfg:    cfg,
		closed: make(chan struct{}),
		ready:  make(chan struct{}),
	}
	go c.run()

	cleanup := func() { c.close() }

	return c, cleanup, nil
}

// Channel opens a fresh channel on the current connection, waiting for the
// first successful dial if necessary.
func (c *Conn) Channel() (Channel, error) {
	c.mu.RLock()
	conn := c.conn
	ready := c.ready
	c.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		select {
		case <-ready:
		case <-c.closed:
			return nil, fmt.Errorf("%w: rabbitmq connection closed", berr.ErrPublishUnavailable)
		}

		c.mu.RLock()
		conn = c.conn
		c.mu.RUnlock()

		if conn == nil {
			return nil, fmt.Errorf("%w: rabbitmq not connected", berr.ErrPublishUnavailable)
		}
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: open channel: %w", berr.ErrPublishUnavailable, err)
	}

	return ch, nil
}

func (c *Conn) run() {
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	// #nosec G404 -- non-crypto RNG is acceptable for backoff jitter
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // non-crypto RNG is acceptable for backoff jitter

	for {
		select {
		case <-c.closed:
			return
		default:
		}

		conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{
			Locale:     "en_US",
			Properties: amqp.Table{"product": "microrabbit-banking"},
			Dial:       amqp.DefaultDial(c.cfg.ConnTimeout),
		})
		if err != nil {
			jitter := time.Duration(rng.Int63n(int64(backoff / 2)))
			sleep := backoff + jitter/2
			if sleep > maxBackoff {
				sleep = maxBackoff
			}

			t := time.NewTimer(sleep)
			select {
			case <-c.closed:
				t.Stop()
				return
			case <-t.C:
			}

			if backoff < maxBackoff {
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}

			continue
		}

		backoff = time.Second

		c.mu.Lock()
		c.conn = conn
		oldReady := c.ready
		c.ready = make(chan struct{})
		close(oldReady)
		c.mu.Unlock()

		// Block on close notifications to trigger reconnect.
		notify := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-c.closed:
			_ = conn.Close()
			return
		case <-notify:
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			// loop to reconnect
		}
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return
	default:
		close(c.closed)
	}

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// NewWithConn dials RabbitMQ with auto-reconnect and returns a Transport
// backed by the managed connection plus its cleanup.
func NewWithConn(cfg Config, opts ...TransportOption) (*Transport, func(), error) {
	conn, cleanup, err := Dial(cfg)
	if err != nil {
		return nil, nil, err
	}

	return NewTransport(conn, opts...), cleanup, nil
}
