// Package thermostat wires sensors, the control state machine, and the
// transport into scheduled tasks. A Thermostat is the environment every
// task runs with; all of its state belongs to the control thread.
package thermostat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sweeney/goldilocks/internal/clock"
	"github.com/sweeney/goldilocks/internal/config"
	"github.com/sweeney/goldilocks/internal/control"
	"github.com/sweeney/goldilocks/internal/heatpump"
	"github.com/sweeney/goldilocks/internal/journal"
	"github.com/sweeney/goldilocks/internal/metrics"
	"github.com/sweeney/goldilocks/internal/mqtt"
	"github.com/sweeney/goldilocks/internal/sched"
	"github.com/sweeney/goldilocks/internal/sensor"
	"github.com/sweeney/goldilocks/internal/settings"
	"github.com/sweeney/goldilocks/internal/status"
	"github.com/sweeney/goldilocks/internal/telemetry"
	"github.com/sweeney/goldilocks/internal/web"
)

// journalShown is how many recent entries the status page lists.
const journalShown = 10

// Journal records control history.
type Journal interface {
	RecordTransition(at time.Time, from, to string, temp, target float64) error
	RecordRange(at time.Time, low, high float64, cause string) error
	Recent(n int) ([]journal.Entry, error)
}

// Watcher reports external edits to the settings file.
type Watcher interface {
	Changed() (bool, error)
}

// Deps are the collaborators of a Thermostat. Optional fields may be nil.
type Deps struct {
	Clock    clock.Clock
	Wall     *clock.Wall
	Syncer   clock.Syncer // optional
	Settings *settings.Store
	Watcher  Watcher // optional
	Table    *sensor.Table
	Local    sensor.Reader // optional
	Actuator heatpump.Actuator
	Link     *mqtt.Link
	Presets  control.Presets
	Schedule *control.Schedule
	Tracker  *status.Tracker
	Journal  Journal        // optional
	Sink     telemetry.Sink // optional
	Metrics  *metrics.Metrics
	Events   <-chan web.Event // optional
	Periods  config.Periods

	// Network, if set, is re-read before each status publish.
	Network func() *status.NetworkInfo
}

// Thermostat is the control thread's state.
type Thermostat struct {
	clock    clock.Clock
	wall     *clock.Wall
	syncer   clock.Syncer
	store    *settings.Store
	watcher  Watcher
	table    *sensor.Table
	local    sensor.Reader
	act      heatpump.Actuator
	ctrl     *control.Controller
	link     *mqtt.Link
	presets  control.Presets
	schedule *control.Schedule
	tracker  *status.Tracker
	journal  Journal
	sink     telemetry.Sink
	metrics  *metrics.Metrics
	events   <-chan web.Event
	periods  config.Periods
	network  func() *status.NetworkInfo

	sched   *sched.Scheduler[*Thermostat]
	connect *backoff.ExponentialBackOff
	fused   float64
}

// New creates a Thermostat. Call Start to queue its tasks.
func New(d Deps) *Thermostat {
	t := &Thermostat{
		clock:    d.Clock,
		wall:     d.Wall,
		syncer:   d.Syncer,
		store:    d.Settings,
		watcher:  d.Watcher,
		table:    d.Table,
		local:    d.Local,
		act:      d.Actuator,
		ctrl:     control.NewController(d.Actuator),
		link:     d.Link,
		presets:  d.Presets,
		schedule: d.Schedule,
		tracker:  d.Tracker,
		journal:  d.Journal,
		sink:     d.Sink,
		metrics:  d.Metrics,
		events:   d.Events,
		periods:  d.Periods,
		network:  d.Network,
	}
	if t.wall == nil {
		t.wall = clock.NewWall(d.Clock)
	}
	if t.sink == nil {
		t.sink = telemetry.Nop{}
	}

	t.connect = backoff.NewExponentialBackOff()
	t.connect.InitialInterval = d.Periods.ConnectRetry
	t.connect.MaxInterval = d.Periods.Connect
	t.connect.Multiplier = 2
	t.connect.RandomizationFactor = 0.1
	t.connect.MaxElapsedTime = 0
	t.connect.Clock = d.Clock
	t.connect.Reset()

	t.link.OnReset = func(op string, err error) {
		t.metrics.MQTTRecovery()
		t.metrics.MQTTConnected(false)
		t.tracker.SetMQTT(false, t.link.Recoveries())
		t.sched.Add(connectTask{}, t.periods.ConnectRetry)
	}

	t.sched = sched.New(d.Clock, t)
	if d.Metrics != nil {
		t.sched.SetObserver(d.Metrics)
	}
	return t
}

// Scheduler returns the task scheduler driven by the outer loop.
func (t *Thermostat) Scheduler() *sched.Scheduler[*Thermostat] {
	return t.sched
}

// Controller returns the control state machine.
func (t *Thermostat) Controller() *control.Controller {
	return t.ctrl
}

// Start queues the periodic tasks with their first-run delays.
func (t *Thermostat) Start() {
	p := t.periods
	s := t.sched
	s.Add(timeUpdateTask{}, 0)
	if t.syncer != nil {
		s.Add(timeSyncTask{}, 10*time.Second)
	}
	if t.local != nil {
		s.Add(localTempTask{}, 0)
	}
	if t.schedule != nil {
		s.Add(scheduleTask{}, 0)
	}
	s.Add(connectTask{}, 5*time.Second)
	s.Add(pollTask{}, 6*time.Second)
	s.Add(advertiseTask{}, 6*time.Second)
	s.Add(heatPumpTask{}, 6*time.Second)
	if t.events != nil {
		s.Add(uiTask{}, 0)
	}
	if t.watcher != nil {
		s.Add(settingsWatchTask{}, p.SettingsWatch)
	}
	s.Add(telemetryTask{}, p.Telemetry)
	if p.Heartbeat > 0 {
		s.Add(&statusTask{}, 30*time.Second)
	}
	if err := t.Setpoints().Validate(); err != nil {
		t.restoreDefaults(err)
	}
	if t.store.Dirty() {
		t.scheduleSave()
	}

	t.refreshJournal()
	t.refresh()
}

// Setpoints returns the current comfort range.
func (t *Thermostat) Setpoints() control.Setpoints {
	return control.Setpoints{
		Low:  t.store.Get(settings.TempLow),
		High: t.store.Get(settings.TempHigh),
	}
}

// Preset returns the name of the preset matching the current range, or "".
func (t *Thermostat) Preset() string {
	return t.presets.Match(t.Setpoints())
}

// TemperatureUpdated re-fuses the readings and runs the controller.
func (t *Thermostat) TemperatureUpdated() {
	t.fused = t.table.Fuse()
	if tr, ok := t.ctrl.Update(t.fused, t.Setpoints()); ok {
		t.recordTransition(tr)
	}
	t.refresh()
}

// SetRange replaces the comfort range. An inverted range is rejected and
// leaves the current one in place. A change clears the active goal,
// re-evaluates, and schedules a debounced save.
func (t *Thermostat) SetRange(sp control.Setpoints, cause string) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	lowChanged := t.store.Set(settings.TempLow, sp.Low)
	highChanged := t.store.Set(settings.TempHigh, sp.High)
	if !lowChanged && !highChanged {
		return nil
	}
	t.rangeChanged(cause)
	return nil
}

// SelectPreset applies a named preset.
func (t *Thermostat) SelectPreset(name, cause string) error {
	sp, err := t.presets.Lookup(name)
	if err != nil {
		return err
	}
	log.Printf("thermostat: preset %s (%.0f-%.0f) by %s", name, sp.Low, sp.High, cause)
	return t.SetRange(sp, cause)
}

// AdjustLow moves the low bound by delta, keeping the minimum band.
func (t *Thermostat) AdjustLow(delta float64) error {
	return t.SetRange(t.Setpoints().AdjustLow(delta), "ui")
}

// AdjustHigh moves the high bound by delta, keeping the minimum band.
func (t *Thermostat) AdjustHigh(delta float64) error {
	return t.SetRange(t.Setpoints().AdjustHigh(delta), "ui")
}

// HandleEvent applies a UI action.
func (t *Thermostat) HandleEvent(ev web.Event) {
	var err error
	switch ev.Kind {
	case web.EventPreset:
		err = t.SelectPreset(ev.Preset, "ui")
	case web.EventAdjust:
		if ev.Bound == "low" {
			err = t.AdjustLow(ev.Delta)
		} else {
			err = t.AdjustHigh(ev.Delta)
		}
	default:
		err = fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if err != nil {
		log.Printf("thermostat: ui event %+v: %v", ev, err)
	}
}

// Shutdown saves pending settings and publishes a final status.
func (t *Thermostat) Shutdown(reason string) {
	if err := t.store.Save(); err != nil {
		log.Printf("thermostat: save on shutdown: %v", err)
	}
	t.link.PublishStatus(status.FormatStatusEvent(t.tracker.Snapshot(), "SHUTDOWN", reason))
	t.link.Close()
	t.sink.Close()
}

func (t *Thermostat) rangeChanged(cause string) {
	sp := t.Setpoints()
	log.Printf("thermostat: range %.1f-%.1f by %s", sp.Low, sp.High, cause)
	if t.journal != nil {
		if err := t.journal.RecordRange(t.wall.Now(), sp.Low, sp.High, cause); err != nil {
			log.Printf("thermostat: journal range: %v", err)
		}
		t.refreshJournal()
	}
	t.ctrl.Reset()
	if t.store.Dirty() {
		t.scheduleSave()
	}
	t.TemperatureUpdated()
}

// restoreDefaults replaces an unusable stored range with the built-in one.
func (t *Thermostat) restoreDefaults(cause error) {
	sp := control.Setpoints{
		Low:  settings.Default(settings.TempLow),
		High: settings.Default(settings.TempHigh),
	}
	log.Printf("thermostat: stored range unusable (%v), restoring %.1f-%.1f", cause, sp.Low, sp.High)
	t.store.Set(settings.TempLow, sp.Low)
	t.store.Set(settings.TempHigh, sp.High)
	if t.journal != nil {
		if err := t.journal.RecordRange(t.wall.Now(), sp.Low, sp.High, "restore"); err != nil {
			log.Printf("thermostat: journal range: %v", err)
		}
		t.refreshJournal()
	}
	t.ctrl.Reset()
	if t.store.Dirty() {
		t.scheduleSave()
	}
}

func (t *Thermostat) scheduleSave() {
	t.sched.Add(saveTask{}, t.periods.SettingsSave)
}

func (t *Thermostat) recordTransition(tr control.Transition) {
	if t.journal == nil {
		return
	}
	err := t.journal.RecordTransition(t.wall.Now(), string(tr.From), string(tr.To), tr.Temperature, tr.Target)
	if err != nil {
		log.Printf("thermostat: journal transition: %v", err)
	}
	t.refreshJournal()
}

func (t *Thermostat) refreshJournal() {
	if t.journal == nil {
		return
	}
	entries, err := t.journal.Recent(journalShown)
	if err != nil {
		log.Printf("thermostat: read journal: %v", err)
		return
	}
	t.tracker.SetJournal(entries)
}

// refresh pushes the control thread's view to the tracker and metrics.
func (t *Thermostat) refresh() {
	sp := t.Setpoints()
	target, hasTarget := t.ctrl.Target()
	t.tracker.Update(status.Control{
		Fused:     t.fused,
		Live:      t.table.Live(),
		Sources:   t.table.Snapshot(),
		Setpoints: sp,
		Preset:    t.presets.Match(sp),
		State:     t.ctrl.State(),
		Target:    target,
		HasTarget: hasTarget,
		HeatPump:  t.act.Status(),
	})
	t.metrics.Temperature(t.fused, t.table.Live())
	t.metrics.ControlState(string(t.ctrl.State()))
	t.metrics.Setpoints(sp.Low, sp.High)
}

// sample builds a telemetry sample from the current state.
func (t *Thermostat) sample() telemetry.Sample {
	sp := t.Setpoints()
	target, _ := t.ctrl.Target()
	s := telemetry.Sample{
		At:      t.wall.Now(),
		Fused:   t.fused,
		Live:    t.table.Live(),
		Sources: make(map[string]float64),
		State:   string(t.ctrl.State()),
		Low:     sp.Low,
		High:    sp.High,
		Target:  target,
		Preset:  t.presets.Match(sp),
	}
	for _, r := range t.table.Snapshot() {
		if !r.Stale {
			s.Sources[r.Source] = r.Value
		}
	}
	return s
}

func (t *Thermostat) writeTelemetry() {
	timeout := 2 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := t.sink.Write(ctx, t.sample()); err != nil {
		log.Printf("thermostat: telemetry: %v", err)
	}
}
