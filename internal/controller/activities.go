package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/vent-controller/internal/display"
	"github.com/sweeney/vent-controller/internal/eventlog"
	"github.com/sweeney/vent-controller/internal/events"
	"github.com/sweeney/vent-controller/internal/logic"
	"github.com/sweeney/vent-controller/internal/report"
)

// weatherTimeout bounds one weather fetch.
const weatherTimeout = 15 * time.Second

// initSensors performs first-boot bring-up and signals the outcome to the
// supervisor.
func (c *Controller) initSensors() {
	if err := c.deps.Health.Init(); err != nil {
		c.acquireLog.Errorw("sensor bring-up failed", "error", err)
		c.flags.Set(events.Fault)
		return
	}
	c.acquireLog.Infow("sensors initialized")
	c.flags.Set(events.SensorReady)
}

// acquireOnce runs one acquisition cycle: read both sensors, publish the
// snapshot, and raise the high-CO2 alert on its edge.
func (c *Controller) acquireOnce(now time.Time) {
	snap, healthy := c.deps.Health.ReadCycle()
	failures := c.deps.Health.Failures()

	if c.deps.Metrics != nil {
		c.deps.Metrics.ObserveCycle(snap, snap.Valid, failures)
	}
	if c.deps.Tracker != nil {
		c.deps.Tracker.SetReading(snap, snap.Valid, failures)
	}

	if healthy != c.healthy {
		if healthy {
			c.acquireLog.Infow("sensor health restored")
		} else {
			c.acquireLog.Warnw("sensor unhealthy", "failures", failures, "degraded", snap.Degraded)
		}
		c.healthy = healthy
	}

	// Invalid snapshots are published too; they replace the last reading.
	c.cell.PublishSnapshot(snap)
	if !snap.Valid {
		c.acquireLog.Debugw("snapshot invalid", "co2", snap.CO2, "temp", snap.Temperature, "humi", snap.Humidity)
		return
	}

	if snap.CO2 <= c.set.AlertThreshold {
		c.alerting = false
		return
	}
	if c.alerting && now.Sub(c.lastAlertAt) < c.set.AlertRepeat {
		return
	}
	c.alerting = true
	c.lastAlertAt = now
	c.raiseAlert(fmt.Sprintf("CO2 high: %.0f ppm", snap.CO2), now)
}

// raiseAlert hands msg to the display and network queues without blocking
// for long. A full queue drops the message.
func (c *Controller) raiseAlert(msg string, now time.Time) {
	c.log.Warnw("alert", "message", msg)
	if !c.display.TryPush(msg, alertPushWait) {
		c.alertDropped("display", msg)
	}
	if !c.outbox.TryPush(msg, alertPushWait) {
		c.alertDropped("network", msg)
	}
	if c.deps.Tracker != nil {
		c.deps.Tracker.RecordAlert(msg, now)
	}
	if c.deps.Metrics != nil {
		c.deps.Metrics.AlertsRaised.Inc()
	}
	c.record(eventlog.KindAlert, now, msg)
}

func (c *Controller) alertDropped(queue, msg string) {
	c.log.Debugw("alert dropped", "queue", queue, "message", msg)
	if c.deps.Metrics != nil {
		c.deps.Metrics.AlertDropped(queue)
	}
}

// notice shows a message on the display only.
func (c *Controller) notice(msg string) {
	if !c.display.TryPush(msg, alertPushWait) {
		c.alertDropped("display", msg)
	}
}

// decideOnce runs one decision cycle. It does nothing before RUNNING. In
// ERROR the sensors count as unhealthy, which selects SAFE_STOP.
func (c *Controller) decideOnce(now time.Time) {
	lc := c.Lifecycle()
	if lc < logic.LifecycleRunning {
		return
	}
	start := time.Now()

	view := c.cell.Read()
	snap := view.Snapshot
	if !view.Published || now.Sub(snap.CapturedAt) > c.set.SnapshotMaxAge {
		snap.Valid = false
	}

	in := logic.ModeInputs{
		SensorOK:  lc == logic.LifecycleRunning && c.deps.Health.Healthy(),
		Connected: c.deps.Link != nil && c.deps.Link.IsConnected(),
	}
	var sig logic.Signal
	switch c.set.Profile {
	case logic.ProfileRemote:
		intents, received := c.deps.Commands.PollLatest()
		sig = logic.RemoteCommand{Intents: intents, Received: received}
	case logic.ProfileWeather:
		in.CacheFresh = !c.deps.Weather.IsCacheStale(now)
		sig = logic.WeatherSignal{Weather: c.deps.Weather.Cached()}
	}

	mode := logic.DetectMode(c.set.Profile, in)
	intents := logic.Decide(snap, mode, sig, c.set.Params)
	for i := c.set.Fans; i < logic.FanCount; i++ {
		intents[i] = logic.IntentOff
	}
	c.setMode(mode, now)

	night := c.set.Night.Contains(now)
	defer func() {
		if c.deps.Metrics != nil {
			c.deps.Metrics.ObserveDecision(time.Since(start))
		}
	}()
	if c.hasApplied && intents == view.Intents && night == c.appliedNight && !c.forceOffPending() {
		return
	}

	applied, err := c.actuate(lc, intents, night)
	if err != nil {
		c.decideLog.Errorw("fan actuation failed", "intents", intents, "night", night, "error", err)
		if c.deps.Tracker != nil {
			c.deps.Tracker.CountActuatorError()
		}
		if c.deps.Metrics != nil {
			c.deps.Metrics.ActuatorErrors.Inc()
		}
		return
	}
	if !applied {
		c.decideLog.Debugw("lifecycle changed during decision, not applied", "was", lc, "now", c.Lifecycle())
		return
	}

	c.hasApplied = true
	c.appliedNight = night

	duties := c.deps.Actuator.Duties()
	c.decideLog.Infow("fans applied", "mode", mode, "intents", c.describe(intents), "night", night, "duties", duties)
	if c.deps.Tracker != nil {
		c.deps.Tracker.SetFans(intents, duties, night)
	}
	if c.deps.Metrics != nil {
		c.deps.Metrics.SetDuties(duties)
	}
	c.record(eventlog.KindFan, now, c.describe(intents))
}

// actuate writes intents and publishes them, unless the lifecycle has moved
// on from lc since the cycle started. Failed writes publish nothing so the
// next cycle retries.
func (c *Controller) actuate(lc logic.Lifecycle, intents logic.Intents, night bool) (bool, error) {
	c.actMu.Lock()
	defer c.actMu.Unlock()
	if c.Lifecycle() != lc {
		return false, nil
	}
	if err := c.deps.Actuator.ApplyAll(intents, night); err != nil {
		return false, err
	}
	c.cell.SetIntents(intents)
	c.offPending = false
	return true, nil
}

func (c *Controller) setMode(m logic.Mode, now time.Time) {
	prev := c.Mode()
	if m == prev {
		return
	}
	c.mode.Store(m)
	c.decideLog.Infow("mode changed", "from", prev, "to", m)
	if c.deps.Tracker != nil {
		c.deps.Tracker.SetMode(m)
	}
	if c.deps.Metrics != nil {
		c.deps.Metrics.SetMode(m)
	}
	c.record(eventlog.KindMode, now, fmt.Sprintf("%s -> %s", prev, m))
}

// describe renders the active fans' intents as "fan_0=LOW fan_1=OFF".
func (c *Controller) describe(v logic.Intents) string {
	parts := make([]string, c.set.Fans)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s=%s", report.FanKey(i), v[i])
	}
	return strings.Join(parts, " ")
}

// networkOnce runs one network cycle: forward queued alerts, refresh the
// weather cache when due, and publish a status report if the shared state
// can be read promptly.
func (c *Controller) networkOnce(ctx context.Context, now time.Time) {
	for {
		msg, ok := c.outbox.Poll()
		if !ok {
			break
		}
		c.publishAlert(msg, now)
	}

	connected := c.deps.Link != nil && c.deps.Link.IsConnected()
	if c.deps.Tracker != nil {
		c.deps.Tracker.SetMQTTConnected(connected)
	}

	if c.set.Profile == logic.ProfileWeather && connected && c.weatherDue(now) {
		c.fetchWeather(ctx, now)
	}

	view, ok := c.cell.TryRead(c.set.LockWait)
	if !ok {
		c.skipped("network")
		return
	}
	if c.deps.Reporter == nil {
		return
	}
	err := c.deps.Reporter.PublishStatus(report.Status{
		Snapshot:  view.Snapshot,
		Intents:   view.Intents,
		Fans:      c.set.Fans,
		Mode:      c.Mode(),
		Lifecycle: c.Lifecycle(),
		Timestamp: now,
	})
	if err != nil {
		c.networkLog.Warnw("status publish failed", "error", err)
		if c.deps.Metrics != nil {
			c.deps.Metrics.PublishFailed("status")
		}
	}
}

func (c *Controller) publishAlert(msg string, now time.Time) {
	if c.deps.Reporter == nil {
		return
	}
	if err := c.deps.Reporter.PublishAlert(report.Alert{Message: msg, Timestamp: now}); err != nil {
		c.networkLog.Warnw("alert publish failed", "message", msg, "error", err)
		if c.deps.Metrics != nil {
			c.deps.Metrics.PublishFailed("alert")
		}
	}
}

func (c *Controller) weatherDue(now time.Time) bool {
	return c.lastFetch.IsZero() || now.Sub(c.lastFetch) >= c.set.WeatherFetch
}

func (c *Controller) fetchWeather(ctx context.Context, now time.Time) {
	c.lastFetch = now
	ctx, cancel := context.WithTimeout(ctx, weatherTimeout)
	defer cancel()

	w, err := c.deps.Weather.Fetch(ctx)
	if c.deps.Metrics != nil {
		c.deps.Metrics.WeatherFetched(err == nil)
	}
	if err != nil {
		c.networkLog.Warnw("weather fetch failed", "error", err)
		return
	}
	c.networkLog.Debugw("weather updated", "pm25", w.PM25, "outdoor_temp", w.OutdoorTemp, "wind", w.WindSpeed)
	if c.deps.Tracker != nil {
		c.deps.Tracker.SetWeather(w)
	}
}

func (c *Controller) skipped(activity string) {
	c.log.Debugw("cycle skipped on lock contention", "activity", activity)
	if c.deps.Tracker != nil {
		c.deps.Tracker.CountSkipped()
	}
	if c.deps.Metrics != nil {
		c.deps.Metrics.Skipped(activity)
	}
}

// presentOnce runs one presentation cycle. A queued alert is shown for
// AlertHold; otherwise the main page is rendered from the shared state.
func (c *Controller) presentOnce(now time.Time) {
	if c.deps.Display == nil {
		for {
			if _, ok := c.display.Poll(); !ok {
				return
			}
		}
	}
	if now.Before(c.holdUntil) {
		return
	}

	if msg, ok := c.display.Poll(); ok {
		if err := c.deps.Display.ShowAlert(msg); err != nil {
			c.presentLog.Warnw("show alert failed", "error", err)
			return
		}
		c.holdUntil = now.Add(c.set.AlertHold)
		return
	}

	view, ok := c.cell.TryRead(c.set.LockWait)
	if !ok {
		c.skipped("present")
		return
	}
	err := c.deps.Display.ShowMain(display.Frame{
		Snapshot:  view.Snapshot,
		Intents:   view.Intents,
		Fans:      c.set.Fans,
		Mode:      c.Mode(),
		Lifecycle: c.Lifecycle(),
	})
	if err != nil {
		c.presentLog.Warnw("show main failed", "error", err)
	}
}
