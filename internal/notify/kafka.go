package notify

import (
	"context"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is implemented by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Kafka publishes reports as JSON messages keyed by the source name, so every
// report of one host lands on the same partition.
type Kafka struct {
	writer MessageWriter
	source string
}

func NewKafka(writer MessageWriter, source string) *Kafka {
	return &Kafka{writer: writer, source: source}
}

// NewKafkaWriter returns a writer configured the way the profiler publishes
// reports.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     kafka.CRC32Balancer{},
		BatchSize:    1,
		Compression:  kafka.Lz4,
		ReadTimeout:  3 * time.Second,
		Topic:        topic,
		WriteTimeout: 3 * time.Second,
	}
}

func (k *Kafka) Notify(ctx context.Context, text string) error {
	m := newMessage(k.source, text)
	m.Tick = tickFrom(ctx)
	b, err := gojson.Marshal(m)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(k.source),
		Value: b,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(m.ID)},
		},
	})
}
