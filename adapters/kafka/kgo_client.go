//go:build franz

package kafka

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
)

// Concrete franz-go based constructor, writer, and poller.

type Config struct {
	Brokers     []string
	TLS         *tls.Config
	Acks        kgo.Acks
	Idempotent  bool
	ClientID    string
	Compression kgo.CompressionType
}

type kgoWriter struct{ cl *kgo.Client }

func (w kgoWriter) Write(topic string, key, value []byte, headers map[string]string) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	if len(headers) > 0 {
		rec.Headers = make([]kgo.RecordHeader, 0, len(headers))
		for k, v := range headers {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
	}

	return w.cl.ProduceSync(context.Background(), rec).FirstErr()
}

type kgoPoller struct{ cl *kgo.Client }

func (p kgoPoller) Poll(ctx context.Context) ([]Record, error) {
	fetches := p.cl.PollFetches(ctx)
	if err := fetches.Err0(); err != nil {
		return nil, err
	}

	var out []Record

	fetches.EachRecord(func(r *kgo.Record) {
		rec := Record{
			Topic:     r.Topic,
			Partition: r.Partition,
			Offset:    r.Offset,
			Key:       r.Key,
			Value:     r.Value,
		}

		if len(r.Headers) > 0 {
			rec.Headers = make(map[string]string, len(r.Headers))
			for _, h := range r.Headers {
				rec.Headers[h.Key] = string(h.Value)
			}
		}

		out = append(out, rec)
	})

	return out, nil
}

func (p kgoPoller) Commit(ctx context.Context, rec Record) error {
	return p.cl.CommitRecords(ctx, &kgo.Record{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
	})
}

func (p kgoPoller) Close() error {
	p.cl.Close()
	return nil
}

// NewWithKgo builds a franz-go backed Transport. The returned cleanup closes
// the producer client; consumer clients follow their Consume contexts.
func NewWithKgo(cfg Config) (*Transport, func(), error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil, fmt.Errorf("%w: kafka brokers required", berr.ErrPublishUnavailable)
	}

	opts := baseOpts(cfg)

	if cfg.Idempotent {
		opts = append(opts, kgo.IdempotentProducer())
		if cfg.Compression != 0 {
			opts = append(opts, kgo.ProducerBatchCompression(cfg.Compression))
		}
	}

	if cfg.Acks != 0 {
		opts = append(opts, kgo.RequiredAcks(cfg.Acks))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: kafka client init: %w", berr.ErrPublishUnavailable, err)
	}

	pollers := func(topic, group string) (Poller, error) {
		ccl, err := kgo.NewClient(append(baseOpts(cfg),
			kgo.ConsumeTopics(topic),
			kgo.ConsumerGroup(group),
			kgo.DisableAutoCommit(),
		)...)
		if err != nil {
			return nil, err
		}

		return kgoPoller{cl: ccl}, nil
	}

	tr := NewTransport(kgoWriter{cl: cl}, pollers)
	cleanup := func() { cl.Close() }

	return tr, cleanup, nil
}

func baseOpts(cfg Config) []kgo.Opt {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	if cfg.TLS != nil {
		opts = append(opts, kgo.DialTLSConfig(cfg.TLS))
	}

	return opts
}
