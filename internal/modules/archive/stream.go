// README: Per-tick event stream published to Kafka, keyed by run id.
package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ridesim/internal/modules/engine"
)

// MessageWriter is the part of *kafka.Writer the stream needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Stream struct {
	w MessageWriter
}

func NewStream(w MessageWriter) *Stream {
	return &Stream{w: w}
}

// NewKafkaWriter builds a synchronous writer hashing messages by key, so all
// ticks of one run land on the same partition in order.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Async:        false,
	}
}

func (s *Stream) Publish(ctx context.Context, ev engine.TickEvent) error {
	raw, err := json.Marshal(TickMessage{RunID: ev.RunID, Report: ev.Report, Metrics: ev.Metrics})
	if err != nil {
		return err
	}
	return s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.RunID),
		Value: raw,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("tick")},
		},
	})
}

func (s *Stream) Close() error {
	return s.w.Close()
}
