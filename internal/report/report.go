// Package report defines the status and alert reports shared by every
// outward transport, and their JSON encodings.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/vent-controller/internal/logic"
)

// AlertLevel is the level carried by every alert report.
const AlertLevel = "WARNING"

// Status is one periodic status report.
type Status struct {
	Snapshot  logic.Snapshot
	Intents   logic.Intents
	Fans      int
	Mode      logic.Mode
	Lifecycle logic.Lifecycle
	Timestamp time.Time
}

// Alert is a short alert message.
type Alert struct {
	Message   string
	Timestamp time.Time
}

// Sink receives status and alert reports. Implementations must not block
// for long; failures are reported, not retried by the caller.
type Sink interface {
	PublishStatus(s Status) error
	PublishAlert(a Alert) error
}

// FormatStatus encodes s as a flat JSON object:
// {"co2","temp","humi","fan_0".."fan_{N-1}","mode","lifecycle","timestamp"}.
func FormatStatus(s Status) ([]byte, error) {
	fans := s.Fans
	if fans <= 0 || fans > logic.FanCount {
		return nil, fmt.Errorf("report: invalid fan count %d", s.Fans)
	}

	m := map[string]any{
		"co2":       nil,
		"temp":      nil,
		"humi":      nil,
		"mode":      string(s.Mode),
		"lifecycle": s.Lifecycle.String(),
		"timestamp": s.Timestamp.Unix(),
	}
	// readings are null while the current snapshot is invalid
	if s.Snapshot.Valid {
		m["co2"] = s.Snapshot.CO2
		m["temp"] = s.Snapshot.Temperature
		m["humi"] = s.Snapshot.Humidity
	}
	intents := s.Intents.Normalize()
	for i := 0; i < fans; i++ {
		m[FanKey(i)] = string(intents[i])
	}
	return json.Marshal(m)
}

// alertPayload is the wire form of an Alert.
type alertPayload struct {
	Alert     string `json:"alert"`
	Level     string `json:"level"`
	Timestamp int64  `json:"timestamp"`
}

// FormatAlert encodes a as {"alert","level","timestamp"}.
func FormatAlert(a Alert) ([]byte, error) {
	return json.Marshal(alertPayload{
		Alert:     a.Message,
		Level:     AlertLevel,
		Timestamp: a.Timestamp.Unix(),
	})
}

// FanKey returns the JSON key for fan i.
func FanKey(i int) string {
	return fmt.Sprintf("fan_%d", i)
}

// Fanout forwards every report to each sink, joining their errors.
type Fanout []Sink

// PublishStatus publishes s to every sink.
func (f Fanout) PublishStatus(s Status) error {
	var errs []error
	for _, sink := range f {
		if err := sink.PublishStatus(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishAlert publishes a to every sink.
func (f Fanout) PublishAlert(a Alert) error {
	var errs []error
	for _, sink := range f {
		if err := sink.PublishAlert(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
