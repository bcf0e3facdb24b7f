package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sweeney/vent-controller/internal/logic"
	"github.com/sweeney/vent-controller/internal/report"
)

var _ report.Sink = (*KafkaSink)(nil)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestPublishStatus(t *testing.T) {
	w := &fakeWriter{}
	k := newSink(w, "vent-01", 2)

	err := k.PublishStatus(report.Status{
		Snapshot:  logic.Snapshot{CO2: 950, Valid: true},
		Intents:   logic.Uniform(logic.IntentLow),
		Mode:      logic.ModeLocal,
		Lifecycle: logic.LifecycleRunning,
		Timestamp: t0,
	})
	if err != nil {
		t.Fatalf("PublishStatus: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}

	m := w.msgs[0]
	if string(m.Key) != KeyStatus {
		t.Errorf("key = %s", m.Key)
	}
	if !m.Time.Equal(t0) {
		t.Errorf("time = %v", m.Time)
	}
	if len(m.Headers) != 1 || string(m.Headers[0].Value) != "vent-01" {
		t.Errorf("headers = %v", m.Headers)
	}

	var body map[string]any
	if err := json.Unmarshal(m.Value, &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["fan_1"] != "LOW" {
		t.Errorf("sink fan count should fill in, got %v", body)
	}
	if _, ok := body["fan_2"]; ok {
		t.Error("two-fan sink must not emit fan_2")
	}
}

func TestPublishAlert(t *testing.T) {
	w := &fakeWriter{}
	k := newSink(w, "", 1)

	if err := k.PublishAlert(report.Alert{Message: "sensor fault", Timestamp: t0}); err != nil {
		t.Fatalf("PublishAlert: %v", err)
	}
	if string(w.msgs[0].Key) != KeyAlert {
		t.Errorf("key = %s", w.msgs[0].Key)
	}
	if len(w.msgs[0].Headers) != 0 {
		t.Error("no device header expected")
	}
}

func TestPublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	k := newSink(w, "", 1)

	if err := k.PublishAlert(report.Alert{Message: "x"}); err == nil {
		t.Error("expected error")
	}
}

func TestNewKafkaSinkRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaSink(nil, "", "", 1); err == nil {
		t.Error("expected error without brokers")
	}
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	k := newSink(w, "", 1)
	k.Close()
	if !w.closed {
		t.Error("Close should close the writer")
	}
}
