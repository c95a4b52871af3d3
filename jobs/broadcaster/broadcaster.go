// Package broadcaster drains the chunk journal into Kafka so out-of-process
// receivers can mirror books.
package broadcaster

import (
	"context"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"mbo/infra/chunklog"
	"mbo/infra/kafka"
)

type Broadcaster struct {
	journal  *chunklog.Log
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *slog.Logger
}

func New(journal *chunklog.Log, brokers []string, topic string, log *slog.Logger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Broadcaster{
		journal:  journal,
		producer: producer,
		topic:    topic,
		interval: 250 * time.Millisecond,
		log:      log,
	}, nil
}

// Start runs the replay loop until ctx is done.
func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("[broadcaster] started", "topic", b.topic)
	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.replayOnce()
			}
		}
	}()
}

// replayOnce walks undelivered chunks: mark sent (idempotent), publish,
// mark acked. A failed publish leaves the record sent; the next tick
// retries it.
func (b *Broadcaster) replayOnce() {
	err := b.journal.ScanPending(func(seq uint64, rec *chunklog.Record) error {
		if err := b.journal.MarkSent(seq); err != nil {
			return err
		}
		payload, err := kafka.EncodeFrame(rec.Frame[:])
		if err != nil {
			return err
		}
		// Key by token so per-instrument ordering survives partitioning.
		var key [4]byte
		copy(key[:], rec.Frame[:4])
		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.ByteEncoder(key[:]),
			Value: sarama.ByteEncoder(payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			return nil // retry later
		}
		return b.journal.MarkAcked(seq)
	})
	if err != nil {
		b.log.Warn("[broadcaster] replay failed", "err", err)
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
