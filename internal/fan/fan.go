// Package fan maps logical fan intents to PWM duty values and drives the
// fan hardware through a Driver.
package fan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sweeney/vent-controller/internal/logic"
)

// ErrChannel is returned for a fan channel the actuator was not built with.
var ErrChannel = errors.New("fan: channel out of range")

// Duty values. A running fan never goes below MinDuty; 0 is fully off.
const (
	DutyOff       uint8 = 0
	DutyLowNight  uint8 = 150
	DutyLowDay    uint8 = 180
	DutyHighNight uint8 = 200
	DutyHighDay   uint8 = 255

	MinDuty uint8 = 150
	MaxDuty uint8 = 255
)

// Driver writes a duty cycle to one fan channel.
type Driver interface {
	SetDuty(channel int, duty uint8) error
	Close() error
}

// DutyFor maps an intent and the night flag to a duty value.
func DutyFor(intent logic.Intent, night bool) uint8 {
	switch intent {
	case logic.IntentLow:
		if night {
			return DutyLowNight
		}
		return DutyLowDay
	case logic.IntentHigh:
		if night {
			return DutyHighNight
		}
		return DutyHighDay
	default:
		return DutyOff
	}
}

// ClampDuty clamps a raw duty request into [MinDuty, MaxDuty]. Zero and
// negative requests stay at 0.
func ClampDuty(raw int) uint8 {
	switch {
	case raw <= 0:
		return DutyOff
	case raw < int(MinDuty):
		return MinDuty
	case raw > int(MaxDuty):
		return MaxDuty
	default:
		return uint8(raw)
	}
}

// Actuator applies intents to a fixed number of fan channels. Calls are
// serialized so the supervisor may force OFF while the decision loop owns
// regular actuation.
type Actuator struct {
	mu       sync.Mutex
	driver   Driver
	channels int
	duties   []uint8
}

// NewActuator creates an actuator for channels fans, 1..logic.FanCount.
func NewActuator(d Driver, channels int) (*Actuator, error) {
	if channels < 1 || channels > logic.FanCount {
		return nil, fmt.Errorf("fan: %d channels not supported (1..%d)", channels, logic.FanCount)
	}
	return &Actuator{
		driver:   d,
		channels: channels,
		duties:   make([]uint8, channels),
	}, nil
}

// Channels returns the number of fans driven.
func (a *Actuator) Channels() int {
	return a.channels
}

// Apply drives channel ch for intent and returns the duty written.
func (a *Actuator) Apply(ch int, intent logic.Intent, night bool) (uint8, error) {
	duty := DutyFor(intent, night)
	a.mu.Lock()
	defer a.mu.Unlock()
	return duty, a.writeLocked(ch, duty)
}

// ApplyAll applies intents to every channel. Every channel is attempted;
// the returned error joins the per-channel failures.
func (a *Actuator) ApplyAll(intents logic.Intents, night bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for ch := 0; ch < a.channels; ch++ {
		if err := a.writeLocked(ch, DutyFor(intents[ch], night)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetRaw writes a clamped raw duty to channel ch, bypassing the intent
// mapping. Used for calibration.
func (a *Actuator) SetRaw(ch int, raw int) (uint8, error) {
	duty := ClampDuty(raw)
	a.mu.Lock()
	defer a.mu.Unlock()
	return duty, a.writeLocked(ch, duty)
}

// Duties returns a copy of the last duty written to each channel.
func (a *Actuator) Duties() []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]uint8, len(a.duties))
	copy(out, a.duties)
	return out
}

func (a *Actuator) writeLocked(ch int, duty uint8) error {
	if ch < 0 || ch >= a.channels {
		return fmt.Errorf("%w: %d", ErrChannel, ch)
	}
	if err := a.driver.SetDuty(ch, duty); err != nil {
		return fmt.Errorf("fan %d duty %d: %w", ch, duty, err)
	}
	a.duties[ch] = duty
	return nil
}
