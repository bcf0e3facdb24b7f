// Package mqtt provides MQTT status/alert publishing and the remote command
// subscription, with abstraction for testing.
package mqtt

import (
	"github.com/sweeney/vent-controller/internal/logic"
	"github.com/sweeney/vent-controller/internal/report"
)

// Topics.
const (
	TopicStatus  = "home/ventilation/status"
	TopicAlert   = "home/ventilation/alert"
	TopicCommand = "home/ventilation/command/#"
)

// WillPayload is published by the broker on the status topic if the
// controller drops off without disconnecting.
const WillPayload = `{"online": false}`

// DefaultBufferSize is the number of messages kept while disconnected.
const DefaultBufferSize = 64

// QoS levels. Status is fire-and-forget; alerts are at-least-once.
const (
	qosStatus byte = 0
	qosAlert  byte = 1
)

// Publisher publishes reports to MQTT.
type Publisher interface {
	report.Sink

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandSource returns the latest remote fan command.
type CommandSource interface {
	// PollLatest returns the stored intent vector and whether any
	// command has been received yet.
	PollLatest() (logic.Intents, bool)
}
