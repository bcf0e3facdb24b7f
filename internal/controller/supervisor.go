package controller

import (
	"fmt"
	"time"

	"github.com/sweeney/vent-controller/internal/eventlog"
	"github.com/sweeney/vent-controller/internal/events"
	"github.com/sweeney/vent-controller/internal/logic"
)

// Display and alert texts raised by the supervisor.
const (
	msgPreheating  = "Sensor warming up"
	msgStabilizing = "Readings stabilizing"
	msgFault       = "Sensor fault: fans stopped"
)

// superviseOnce runs one supervisor tick. It performs at most one regular
// transition plus, in ERROR, the reinitialization that the dwell asks for.
func (c *Controller) superviseOnce(now time.Time) {
	// Decisions idle outside RUNNING, so a failed force-off is retried here.
	if c.Lifecycle() != logic.LifecycleRunning && c.forceOffPending() {
		c.superLog.Infow("retrying fan force-off")
		c.forceOff()
	}

	if c.flags.IsSet(events.Fault) && c.sup.State() != logic.LifecycleError {
		c.superLog.Warnw("sensor bring-up failed, entering ERROR")
		c.apply(c.sup.Fail(now), now)
	}

	step := c.sup.Tick(logic.TickInput{
		Now:         now,
		SensorReady: c.flags.IsSet(events.SensorReady),
		Healthy:     c.deps.Health.Healthy(),
	})
	c.apply(step, now)

	if !step.ReinitDue {
		return
	}
	err := c.deps.Health.Reinit()
	if c.deps.Tracker != nil {
		c.deps.Tracker.CountReinit()
	}
	if err != nil {
		c.superLog.Warnw("sensor reinit failed, staying in ERROR", "retry_in", c.set.Lifecycle.ErrorDwell, "error", err)
	} else {
		c.superLog.Infow("sensor reinit succeeded")
		c.flags.Clear(events.Fault)
		c.flags.Set(events.SensorReady)
	}
	c.apply(c.sup.ReinitDone(now, err), now)
}

// apply publishes a lifecycle transition and runs its entry actions.
func (c *Controller) apply(step logic.Step, now time.Time) {
	if !step.Changed {
		return
	}
	c.lifecycle.Store(int32(step.To))

	c.superLog.Infow("lifecycle transition", "from", step.From, "to", step.To, "deadline", c.sup.Deadline())
	if c.deps.Tracker != nil {
		c.deps.Tracker.SetLifecycle(step.To)
	}
	if c.deps.Metrics != nil {
		c.deps.Metrics.SetLifecycle(step.To)
	}
	c.record(eventlog.KindLifecycle, now, fmt.Sprintf("%s -> %s", step.From, step.To))

	switch step.To {
	case logic.LifecyclePreheating:
		c.flags.Clear(events.PreheatDone)
		c.flags.Clear(events.Stabilized)
		c.notice(msgPreheating)
	case logic.LifecycleStabilizing:
		c.flags.Set(events.PreheatDone)
		c.notice(msgStabilizing)
	case logic.LifecycleRunning:
		c.flags.Set(events.Stabilized)
	case logic.LifecycleError:
		c.flags.Clear(events.PreheatDone)
		c.flags.Clear(events.Stabilized)
	}

	if step.EnteredError {
		c.forceOff()
		c.raiseAlert(msgFault, now)
	}
}

// forceOff switches every fan off. The OFF intents are published only once
// every channel accepted the write; until then the force-off stays pending.
func (c *Controller) forceOff() {
	off := logic.AllOff()

	c.actMu.Lock()
	err := c.deps.Actuator.ApplyAll(off, false)
	c.offPending = err != nil
	if err == nil {
		c.cell.SetIntents(off)
	}
	c.actMu.Unlock()

	if err != nil {
		c.superLog.Errorw("forcing fans off failed", "duties", c.deps.Actuator.Duties(), "error", err)
		if c.deps.Tracker != nil {
			c.deps.Tracker.CountActuatorError()
		}
		if c.deps.Metrics != nil {
			c.deps.Metrics.ActuatorErrors.Inc()
		}
	}
	if c.deps.Tracker != nil {
		c.deps.Tracker.SetFans(off, c.deps.Actuator.Duties(), false)
	}
	if c.deps.Metrics != nil {
		c.deps.Metrics.SetDuties(c.deps.Actuator.Duties())
	}
}

func (c *Controller) forceOffPending() bool {
	c.actMu.Lock()
	defer c.actMu.Unlock()
	return c.offPending
}
