package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sweeney/vent-controller/internal/logic"
	"github.com/sweeney/vent-controller/internal/report"
)

// ApplyCommand merges a command payload such as {"fan_0":"LOW","fan_2":"HIGH"}
// into prev. Only fan keys present as strings update the vector; unknown
// intent strings map to OFF. It reports whether any fan key was applied.
func ApplyCommand(prev logic.Intents, payload []byte) (logic.Intents, bool, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return prev, false, fmt.Errorf("parse command: %w", err)
	}

	next := prev
	applied := false
	for i := range next {
		v, ok := raw[report.FanKey(i)]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}
		next[i], _ = logic.ParseIntent(s)
		applied = true
	}
	return next, applied, nil
}

// CommandState holds the latest remote command vector.
type CommandState struct {
	mu       sync.Mutex
	intents  logic.Intents
	received bool
}

// NewCommandState starts with every fan OFF and nothing received.
func NewCommandState() *CommandState {
	return &CommandState{intents: logic.AllOff()}
}

// Apply merges payload into the stored vector.
func (c *CommandState) Apply(payload []byte) (logic.Intents, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, applied, err := ApplyCommand(c.intents, payload)
	if err != nil {
		return c.intents, err
	}
	if applied {
		c.intents = next
		c.received = true
	}
	return c.intents, nil
}

// PollLatest returns the stored vector and whether a command was received.
func (c *CommandState) PollLatest() (logic.Intents, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intents, c.received
}
