// Package kafka carries chunk frames over a Kafka topic for the remote
// receiver deployment.
package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"mbo/codec"
)

// Reader consumes enveloped chunk frames from a topic.
type Reader struct {
	reader *kafka.Reader
}

func NewReader(brokers []string, topic, groupID string) *Reader {
	return &Reader{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
	}
}

// ReadChunk blocks for the next chunk frame.
func (r *Reader) ReadChunk(ctx context.Context, c *codec.Chunk) error {
	msg, err := r.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	frame, err := DecodeFrame(msg.Value)
	if err != nil {
		return err
	}
	return c.Unmarshal(frame)
}

func (r *Reader) Close() error {
	return r.reader.Close()
}
