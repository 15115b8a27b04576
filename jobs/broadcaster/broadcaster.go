package broadcaster

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protojson"

	"sortlist/infra/logging"
	"sortlist/infra/results"
)

// Publisher delivers one keyed message to a broker.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// ------------------------------------------------
// SARAMA PUBLISHER
// ------------------------------------------------

type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSarama(brokers []string, topic string) (*SaramaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "sarama: new producer")
	}
	return NewSaramaWith(producer, topic), nil
}

// NewSaramaWith wraps an existing producer.
func NewSaramaWith(producer sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: producer, topic: topic}
}

func (p *SaramaPublisher) Publish(_ context.Context, key, value []byte) error {
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	return errors.Wrap(err, "sarama: send")
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}

// ------------------------------------------------
// BROADCASTER
// ------------------------------------------------

// Broadcaster drains the report outbox into a Publisher.
type Broadcaster struct {
	store      *results.Store
	pub        Publisher
	interval   time.Duration
	maxRetries uint32
}

func New(store *results.Store, pub Publisher, interval time.Duration) *Broadcaster {
	return &Broadcaster{
		store:      store,
		pub:        pub,
		interval:   interval,
		maxRetries: 5,
	}
}

// Run publishes pending reports every interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	logging.Info("broadcaster started", "interval", b.interval)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.RunOnce(ctx); err != nil {
				logging.Warn("broadcaster pass failed", "err", err)
			}
		}
	}
}

// RunOnce publishes every new report and every failed report that has
// retries left. It returns how many were acknowledged.
func (b *Broadcaster) RunOnce(ctx context.Context) (int, error) {
	var batch []results.Entry
	collect := func(e results.Entry) error {
		if e.State == results.StateFailed && e.Retries >= b.maxRetries {
			return nil
		}
		batch = append(batch, e)
		return nil
	}
	if err := b.store.ScanByState(results.StateNew, collect); err != nil {
		return 0, err
	}
	if err := b.store.ScanByState(results.StateFailed, collect); err != nil {
		return 0, err
	}

	acked := 0
	for _, e := range batch {
		if ctx.Err() != nil {
			return acked, ctx.Err()
		}
		ok, err := b.deliver(ctx, e)
		if err != nil {
			return acked, err
		}
		if ok {
			acked++
		}
	}
	return acked, nil
}

// deliver reports false on a broker failure; the run stays retriable.
// Store errors are returned.
func (b *Broadcaster) deliver(ctx context.Context, e results.Entry) (bool, error) {
	if err := b.store.UpdateState(e.RunID, results.StateSent, e.Retries); err != nil {
		return false, err
	}

	value, err := protojson.Marshal(e.Report)
	if err != nil {
		return false, errors.Wrapf(err, "broadcaster: encode run %d", e.RunID)
	}

	key := []byte(fmt.Sprintf("run/%d", e.RunID))
	if err := b.pub.Publish(ctx, key, value); err != nil {
		logging.Warn("publish failed", "run", e.RunID, "retries", e.Retries+1, "err", err)
		return false, b.store.UpdateState(e.RunID, results.StateFailed, e.Retries+1)
	}

	logging.Debug("published run", "run", e.RunID)
	return true, b.store.UpdateState(e.RunID, results.StateAcked, e.Retries)
}

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
