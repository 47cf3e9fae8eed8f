package thermostat

import (
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sweeney/goldilocks/internal/sensor"
	"github.com/sweeney/goldilocks/internal/status"
)

// Task names.
const (
	TaskTimeUpdate    = "time update"
	TaskTimeSync      = "time sync"
	TaskLocalTemp     = "local temp"
	TaskSchedule      = "schedule"
	TaskConnect       = "mqtt connect"
	TaskPoll          = "mqtt poll"
	TaskAdvertise     = "mqtt advertise"
	TaskHeatPump      = "heatpump poll"
	TaskUI            = "ui poll"
	TaskSettingsWatch = "settings watch"
	TaskSettingsSave  = "settings save"
	TaskTelemetry     = "telemetry"
	TaskStatus        = "status publish"
)

type timeUpdateTask struct{}

func (timeUpdateTask) Name() string { return TaskTimeUpdate }

func (timeUpdateTask) Run(t *Thermostat) (time.Duration, bool) {
	_, synced := t.wall.Offset()
	t.tracker.SetWallTime(t.wall.Now(), !synced.IsZero())
	return t.periods.TimeUpdate, true
}

type timeSyncTask struct{}

func (timeSyncTask) Name() string { return TaskTimeSync }

func (timeSyncTask) Run(t *Thermostat) (time.Duration, bool) {
	if err := t.syncer.Sync(); err != nil {
		log.Printf("thermostat: time sync: %v", err)
	}
	return t.periods.TimeSync, true
}

type localTempTask struct{}

func (localTempTask) Name() string { return TaskLocalTemp }

func (localTempTask) Run(t *Thermostat) (time.Duration, bool) {
	v, err := t.local.Read()
	if err != nil {
		log.Printf("thermostat: local sensor: %v", err)
		return t.periods.LocalTemp, true
	}
	if !t.table.Record(sensor.LocalSource, v) {
		return t.periods.LocalTemp, true
	}
	t.metrics.SourceReading(sensor.LocalSource, v)
	t.TemperatureUpdated()
	return t.periods.LocalTemp, true
}

type scheduleTask struct{}

func (scheduleTask) Name() string { return TaskSchedule }

func (scheduleTask) Run(t *Thermostat) (time.Duration, bool) {
	if name, ok := t.schedule.Poll(t.wall.Now()); ok {
		if err := t.SelectPreset(name, "schedule"); err != nil {
			log.Printf("thermostat: scheduled preset %s: %v", name, err)
		}
	}
	return t.periods.Schedule, true
}

// connectTask dials the broker when disconnected, retrying with
// exponential backoff until a session is up.
type connectTask struct{}

func (connectTask) Name() string { return TaskConnect }

func (connectTask) Run(t *Thermostat) (time.Duration, bool) {
	connected := t.link.Connect()
	t.metrics.MQTTConnected(connected)
	t.tracker.SetMQTT(connected, t.link.Recoveries())
	if connected {
		t.connect.Reset()
		return t.periods.Connect, true
	}
	next := t.connect.NextBackOff()
	if next == backoff.Stop {
		next = t.periods.Connect
	}
	log.Printf("thermostat: mqtt connect retry in %v", next)
	return next, true
}

type pollTask struct{}

func (pollTask) Name() string { return TaskPoll }

func (pollTask) Run(t *Thermostat) (time.Duration, bool) {
	if !t.link.Connected() {
		return t.periods.Poll, true
	}
	temps := t.link.Poll()
	for _, temp := range temps {
		if t.table.Record(temp.Source, temp.Value) {
			t.metrics.SourceReading(temp.Source, temp.Value)
		}
	}
	if len(temps) > 0 {
		t.TemperatureUpdated()
	}
	return t.periods.Poll, true
}

type advertiseTask struct{}

func (advertiseTask) Name() string { return TaskAdvertise }

func (advertiseTask) Run(t *Thermostat) (time.Duration, bool) {
	if t.link.Connected() {
		t.link.Advertise()
	}
	return t.periods.Advertise, true
}

type heatPumpTask struct{}

func (heatPumpTask) Name() string { return TaskHeatPump }

func (heatPumpTask) Run(t *Thermostat) (time.Duration, bool) {
	if err := t.act.Poll(); err != nil {
		log.Printf("thermostat: heat pump: %v", err)
	}
	return t.periods.HeatPump, true
}

// uiTask drains events queued by the web handlers.
type uiTask struct{}

func (uiTask) Name() string { return TaskUI }

func (uiTask) Run(t *Thermostat) (time.Duration, bool) {
	for {
		select {
		case ev := <-t.events:
			t.HandleEvent(ev)
		default:
			return t.periods.UI, true
		}
	}
}

type settingsWatchTask struct{}

func (settingsWatchTask) Name() string { return TaskSettingsWatch }

func (settingsWatchTask) Run(t *Thermostat) (time.Duration, bool) {
	changed, err := t.watcher.Changed()
	if err != nil {
		log.Printf("thermostat: settings watch: %v", err)
	}
	if !changed || t.store.Dirty() {
		return t.periods.SettingsWatch, true
	}

	before := t.Setpoints()
	reloaded, err := t.store.Reload()
	if err != nil {
		log.Printf("thermostat: reload settings: %v", err)
		return t.periods.SettingsWatch, true
	}
	if !reloaded {
		return t.periods.SettingsWatch, true
	}
	if err := t.Setpoints().Validate(); err != nil {
		log.Printf("thermostat: settings file has bad range, restoring %.1f-%.1f: %v", before.Low, before.High, err)
		if err := t.SetRange(before, "restore"); err != nil {
			log.Printf("thermostat: restore range: %v", err)
			t.restoreDefaults(err)
			t.TemperatureUpdated()
		}
		return t.periods.SettingsWatch, true
	}
	t.rangeChanged("file")
	return t.periods.SettingsWatch, true
}

// saveTask writes dirty settings. It is re-added on every range change, so
// the write happens once the range has been stable for the save delay.
type saveTask struct{}

func (saveTask) Name() string { return TaskSettingsSave }

func (saveTask) Run(t *Thermostat) (time.Duration, bool) {
	err := t.store.Save()
	t.metrics.SettingsSave(err)
	if err != nil {
		log.Printf("thermostat: save settings: %v", err)
		return t.periods.SettingsSave, true
	}
	return 0, false
}

type telemetryTask struct{}

func (telemetryTask) Name() string { return TaskTelemetry }

func (telemetryTask) Run(t *Thermostat) (time.Duration, bool) {
	t.writeTelemetry()
	return t.periods.Telemetry, true
}

// statusTask publishes the retained status snapshot, STARTUP first and
// HEARTBEAT after.
type statusTask struct {
	started bool
}

func (*statusTask) Name() string { return TaskStatus }

func (s *statusTask) Run(t *Thermostat) (time.Duration, bool) {
	if !t.link.Connected() {
		if !s.started {
			return 30 * time.Second, true
		}
		return t.periods.Heartbeat, true
	}
	event := "HEARTBEAT"
	if !s.started {
		event = "STARTUP"
	}
	if t.network != nil {
		if info := t.network(); info != nil {
			t.tracker.SetNetwork(info)
		}
	}
	t.link.PublishStatus(status.FormatStatusEvent(t.tracker.Snapshot(), event, ""))
	if t.link.Connected() {
		s.started = true
	}
	return t.periods.Heartbeat, true
}
