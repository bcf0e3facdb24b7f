package mqtt

import (
	"sync"

	"github.com/sweeney/vent-controller/internal/logic"
	"github.com/sweeney/vent-controller/internal/report"
)

// FakeClient records published reports for test assertions and lets tests
// deliver remote commands. Safe for concurrent use.
type FakeClient struct {
	mu sync.Mutex

	// Statuses contains all status reports that were published.
	Statuses []report.Status

	// StatusPayloads contains the JSON payloads for status reports.
	StatusPayloads [][]byte

	// Alerts contains all alert reports that were published.
	Alerts []report.Alert

	// AlertPayloads contains the JSON payloads for alert reports.
	AlertPayloads [][]byte

	// PublishError, if set, will be returned by PublishStatus and PublishAlert.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	commands *CommandState
}

// NewFakeClient creates a connected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{Connected: true, commands: NewCommandState()}
}

// PublishStatus records the status report.
func (f *FakeClient) PublishStatus(s report.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := report.FormatStatus(s)
	if err != nil {
		return err
	}
	f.Statuses = append(f.Statuses, s)
	f.StatusPayloads = append(f.StatusPayloads, payload)
	return nil
}

// PublishAlert records the alert report.
func (f *FakeClient) PublishAlert(a report.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := report.FormatAlert(a)
	if err != nil {
		return err
	}
	f.Alerts = append(f.Alerts, a)
	f.AlertPayloads = append(f.AlertPayloads, payload)
	return nil
}

// Deliver simulates a command message arriving from the broker.
func (f *FakeClient) Deliver(payload []byte) error {
	_, err := f.commands.Apply(payload)
	return err
}

// PollLatest returns the latest delivered command.
func (f *FakeClient) PollLatest() (logic.Intents, bool) {
	return f.commands.PollLatest()
}

// SetConnected changes the connectivity reported by IsConnected.
func (f *FakeClient) SetConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = v
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// StatusCount returns the number of status reports published.
func (f *FakeClient) StatusCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Statuses)
}

// AlertMessages returns a copy of the published alert messages.
func (f *FakeClient) AlertMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Alerts))
	for i, a := range f.Alerts {
		out[i] = a.Message
	}
	return out
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset clears recorded reports.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Statuses = nil
	f.StatusPayloads = nil
	f.Alerts = nil
	f.AlertPayloads = nil
	f.Closed = false
	f.PublishError = nil
}
