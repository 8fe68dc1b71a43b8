// Package publisher streams engine events to Kafka for downstream consumers.
package publisher

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"MexcPulse/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event types written to the topic.
const (
	TypeActivated   = "activated"
	TypeUpdated     = "updated"
	TypeDeactivated = "deactivated"
	TypeReport      = "report"
)

// Envelope is the JSON value of every record. Symbol is also the record key,
// so one symbol's events stay ordered within a partition.
type Envelope struct {
	Type   string      `json:"type"`
	Symbol string      `json:"symbol,omitempty"`
	At     time.Time   `json:"at"`
	Data   interface{} `json:"data"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events. It never owns chat messages, so every
// handle it returns is zero.
type KafkaSink struct {
	writer messageWriter
	topic  string
	now    func() time.Time
	log    zerolog.Logger
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string, log zerolog.Logger) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newKafkaSink(w, topic, log), nil
}

func newKafkaSink(w messageWriter, topic string, log zerolog.Logger) *KafkaSink {
	return &KafkaSink{
		writer: w,
		topic:  topic,
		now:    time.Now,
		log:    log.With().Str("component", "kafka").Str("topic", topic).Logger(),
	}
}

func (k *KafkaSink) Activated(ctx context.Context, ev model.ActivatedEvent) (model.Handle, error) {
	return 0, k.publish(ctx, TypeActivated, ev.Symbol, ev.Snapshot)
}

func (k *KafkaSink) Updated(ctx context.Context, _ model.Handle, ev model.UpdatedEvent) error {
	return k.publish(ctx, TypeUpdated, ev.Symbol, ev.Snapshot)
}

func (k *KafkaSink) Deactivated(ctx context.Context, _ model.Handle, ev model.DeactivatedEvent) error {
	return k.publish(ctx, TypeDeactivated, ev.Symbol, ev)
}

func (k *KafkaSink) Report(ctx context.Context, _ model.Handle, ev model.ReportReady) (model.Handle, error) {
	return 0, k.publish(ctx, TypeReport, "", ev)
}

func (k *KafkaSink) Release(context.Context, model.Handle) error { return nil }

// Close flushes pending writes.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

func (k *KafkaSink) publish(ctx context.Context, typ, symbol string, data interface{}) error {
	v, err := json.Marshal(Envelope{Type: typ, Symbol: symbol, At: k.now(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", typ, err)
	}
	msg := kafka.Message{Key: []byte(symbol), Value: v, Time: k.now()}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", typ, err)
	}
	k.log.Debug().Str("type", typ).Str("symbol", symbol).Msg("event published")
	return nil
}
