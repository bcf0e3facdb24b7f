// Package telemetry forwards status and alert reports to Kafka.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sweeney/vent-controller/internal/report"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "ventilation.telemetry"

const writeTimeout = 5 * time.Second

// Message keys distinguishing report kinds on the shared topic.
const (
	KeyStatus = "status"
	KeyAlert  = "alert"
)

// messageWriter is the subset of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes reports as JSON messages keyed by report kind.
type KafkaSink struct {
	w      messageWriter
	fans   int
	device string
}

// NewKafkaSink creates a sink writing to topic on brokers. device is added
// as a message header so several controllers can share one topic.
func NewKafkaSink(brokers []string, topic, device string, fans int) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("telemetry: no kafka brokers configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		WriteTimeout: writeTimeout,
	}
	return newSink(w, device, fans), nil
}

func newSink(w messageWriter, device string, fans int) *KafkaSink {
	return &KafkaSink{w: w, fans: fans, device: device}
}

// PublishStatus writes a status message.
func (k *KafkaSink) PublishStatus(s report.Status) error {
	if s.Fans == 0 {
		s.Fans = k.fans
	}
	b, err := report.FormatStatus(s)
	if err != nil {
		return fmt.Errorf("format status: %w", err)
	}
	return k.write(KeyStatus, b, s.Timestamp)
}

// PublishAlert writes an alert message.
func (k *KafkaSink) PublishAlert(a report.Alert) error {
	b, err := report.FormatAlert(a)
	if err != nil {
		return fmt.Errorf("format alert: %w", err)
	}
	return k.write(KeyAlert, b, a.Timestamp)
}

func (k *KafkaSink) write(key string, value []byte, at time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  at,
	}
	if k.device != "" {
		msg.Headers = []kafka.Header{{Key: "device", Value: []byte(k.device)}}
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka %s: %w", key, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	return k.w.Close()
}
