// Package controller wires the sensor, decision, network and presentation
// activities together under the lifecycle supervisor.
//
// Activities exchange data only through the shared state cell, the event
// group and the two alert queues. The supervisor is the only writer of the
// lifecycle state; the decision activity is the only regular writer of fan
// intents.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/vent-controller/internal/alert"
	"github.com/sweeney/vent-controller/internal/display"
	"github.com/sweeney/vent-controller/internal/eventlog"
	"github.com/sweeney/vent-controller/internal/events"
	"github.com/sweeney/vent-controller/internal/fan"
	"github.com/sweeney/vent-controller/internal/logic"
	"github.com/sweeney/vent-controller/internal/metrics"
	"github.com/sweeney/vent-controller/internal/mqtt"
	"github.com/sweeney/vent-controller/internal/report"
	"github.com/sweeney/vent-controller/internal/sensor"
	"github.com/sweeney/vent-controller/internal/state"
	"github.com/sweeney/vent-controller/internal/status"
	"github.com/sweeney/vent-controller/internal/weather"
)

// alertPushWait bounds how long a producer waits for queue space.
const alertPushWait = 10 * time.Millisecond

// recordTimeout bounds a single event log write.
const recordTimeout = 2 * time.Second

// Settings are the controller's policy and timing parameters.
type Settings struct {
	Profile   logic.Profile
	Fans      int
	Lifecycle logic.LifecycleConfig
	Params    logic.Params
	Night     logic.NightWindow

	// AlertThreshold is the CO2 level (ppm) above which a high-CO2 alert
	// is raised. It is independent of the decision thresholds.
	AlertThreshold float64

	Acquire   time.Duration
	Decide    time.Duration
	Report    time.Duration
	Present   time.Duration
	Supervise time.Duration

	WeatherFetch   time.Duration
	SnapshotMaxAge time.Duration
	AlertHold      time.Duration
	AlertRepeat    time.Duration
	LockWait       time.Duration
}

// DefaultSettings returns the factory settings for profile p with n fans.
func DefaultSettings(p logic.Profile, n int) Settings {
	return Settings{
		Profile:        p,
		Fans:           n,
		Lifecycle:      logic.DefaultLifecycleConfig(),
		Params:         logic.DefaultParams(),
		Night:          logic.NightWindow{StartHour: 22, EndHour: 8},
		AlertThreshold: 1500,
		Acquire:        time.Second,
		Decide:         time.Second,
		Report:         30 * time.Second,
		Present:        2 * time.Second,
		Supervise:      time.Second,
		WeatherFetch:   600 * time.Second,
		SnapshotMaxAge: 5 * time.Second,
		AlertHold:      4 * time.Second,
		AlertRepeat:    60 * time.Second,
		LockWait:       100 * time.Millisecond,
	}
}

// Deps are the collaborators. Health and Actuator are required, as is
// Commands for the remote profile and Weather for the weather profile.
// Everything else may be nil.
type Deps struct {
	Health   *sensor.HealthTracker
	Actuator *fan.Actuator

	Link     mqtt.ConnectionStatus
	Commands mqtt.CommandSource
	Weather  weather.Source

	Reporter report.Sink
	Display  display.Sink

	Tracker *status.Tracker
	Metrics *metrics.Collector
	Events  eventlog.Recorder

	Log *zap.SugaredLogger
	Now func() time.Time
}

// Controller runs the control nucleus.
type Controller struct {
	set  Settings
	deps Deps
	now  func() time.Time

	cell    *state.Cell
	flags   *events.Group
	display *alert.Queue
	outbox  *alert.Queue

	lifecycle atomic.Int32
	mode      atomic.Value // logic.Mode

	// actMu orders fan writes between the decision activity and the
	// supervisor's force-off, and guards offPending.
	actMu      sync.Mutex
	offPending bool

	log        *zap.SugaredLogger
	acquireLog *zap.SugaredLogger
	decideLog  *zap.SugaredLogger
	networkLog *zap.SugaredLogger
	presentLog *zap.SugaredLogger
	superLog   *zap.SugaredLogger

	// owned by the acquisition activity
	healthy     bool
	alerting    bool
	lastAlertAt time.Time

	// owned by the decision activity
	hasApplied   bool
	appliedNight bool

	// owned by the network activity
	lastFetch time.Time

	// owned by the presentation activity
	holdUntil time.Time

	// owned by the supervisor
	sup *logic.Supervisor
}

// New validates the settings and collaborators and creates a controller
// in INIT with every fan OFF.
func New(set Settings, deps Deps) (*Controller, error) {
	if err := set.validate(deps); err != nil {
		return nil, err
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	c := &Controller{
		set:        set,
		deps:       deps,
		now:        deps.Now,
		cell:       state.NewCell(),
		flags:      events.NewGroup(),
		display:    alert.NewQueue(alert.DefaultCapacity),
		outbox:     alert.NewQueue(alert.DefaultCapacity),
		log:        deps.Log,
		acquireLog: deps.Log.Named("acquire"),
		decideLog:  deps.Log.Named("decide"),
		networkLog: deps.Log.Named("network"),
		presentLog: deps.Log.Named("present"),
		superLog:   deps.Log.Named("supervisor"),
		healthy:    true,
		sup:        logic.NewSupervisor(set.Lifecycle),
	}
	c.lifecycle.Store(int32(logic.LifecycleInit))
	c.mode.Store(logic.ModeSafeStop)
	return c, nil
}

func (s Settings) validate(d Deps) error {
	var errs []error
	if d.Health == nil {
		errs = append(errs, errors.New("controller: health tracker required"))
	}
	if d.Actuator == nil {
		errs = append(errs, errors.New("controller: fan actuator required"))
	} else if d.Actuator.Channels() != s.Fans {
		errs = append(errs, fmt.Errorf("controller: actuator drives %d fans, settings say %d", d.Actuator.Channels(), s.Fans))
	}
	switch s.Profile {
	case logic.ProfileRemote:
		if d.Commands == nil {
			errs = append(errs, errors.New("controller: remote profile needs a command source"))
		}
	case logic.ProfileWeather:
		if d.Weather == nil {
			errs = append(errs, errors.New("controller: weather profile needs a weather source"))
		}
	default:
		errs = append(errs, fmt.Errorf("controller: unknown profile %q", s.Profile))
	}
	for name, period := range map[string]time.Duration{
		"acquire": s.Acquire, "decide": s.Decide, "report": s.Report,
		"present": s.Present, "supervise": s.Supervise,
	} {
		if period <= 0 {
			errs = append(errs, fmt.Errorf("controller: %s period must be positive", name))
		}
	}
	return errors.Join(errs...)
}

// Lifecycle returns the current lifecycle state.
func (c *Controller) Lifecycle() logic.Lifecycle {
	return logic.Lifecycle(c.lifecycle.Load())
}

// Mode returns the mode selected by the last decision.
func (c *Controller) Mode() logic.Mode {
	return c.mode.Load().(logic.Mode)
}

// View returns a copy of the shared state.
func (c *Controller) View() state.View {
	return c.cell.Read()
}

// WaitRunning blocks until stabilization completes, timeout elapses or ctx
// is done. It reports whether the controller reached RUNNING.
func (c *Controller) WaitRunning(ctx context.Context, timeout time.Duration) bool {
	return c.flags.Wait(ctx, events.Stabilized, timeout)
}

// Run starts every activity and blocks until ctx is cancelled. Fans are
// switched off before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Infow("controller starting",
		"profile", c.set.Profile,
		"fans", c.set.Fans,
		"preheat", c.set.Lifecycle.Preheat,
		"stabilize", c.set.Lifecycle.Stabilize,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.acquireLoop(gctx) })
	g.Go(func() error { return c.decideLoop(gctx) })
	g.Go(func() error { return c.networkLoop(gctx) })
	g.Go(func() error { return c.presentLoop(gctx) })
	g.Go(func() error { return c.superviseLoop(gctx) })
	err := g.Wait()

	if ferr := c.deps.Actuator.ApplyAll(logic.AllOff(), false); ferr != nil {
		c.log.Warnw("fans off on shutdown failed", "error", ferr)
	}
	c.log.Infow("controller stopped")
	return err
}

func (c *Controller) acquireLoop(ctx context.Context) error {
	c.initSensors()

	t := time.NewTicker(c.set.Acquire)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			c.acquireOnce(c.now())
		}
	}
}

func (c *Controller) decideLoop(ctx context.Context) error {
	t := time.NewTicker(c.set.Decide)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		// idle until stabilization completes
		if c.Lifecycle() < logic.LifecycleRunning && !c.flags.Wait(ctx, events.Stabilized, c.set.Decide) {
			continue
		}
		c.decideOnce(c.now())
	}
}

func (c *Controller) networkLoop(ctx context.Context) error {
	t := time.NewTicker(c.set.Report)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.outbox.C():
			c.publishAlert(msg, c.now())
		case <-t.C:
			c.networkOnce(ctx, c.now())
		}
	}
}

func (c *Controller) presentLoop(ctx context.Context) error {
	t := time.NewTicker(c.set.Present)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			c.presentOnce(c.now())
		}
	}
}

func (c *Controller) superviseLoop(ctx context.Context) error {
	t := time.NewTicker(c.set.Supervise)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			c.superviseOnce(c.now())
		}
	}
}

// record appends an event to the history, if one is configured.
func (c *Controller) record(kind eventlog.Kind, at time.Time, msg string) {
	if c.deps.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := c.deps.Events.Record(ctx, eventlog.Event{OccurredAt: at, Kind: kind, Message: msg}); err != nil {
		c.log.Warnw("event log write failed", "kind", kind, "error", err)
	}
}
