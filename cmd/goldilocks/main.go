// Command goldilocks keeps a room between two setpoints by driving a heat
// pump from local and MQTT temperature readings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/goldilocks/internal/clock"
	"github.com/sweeney/goldilocks/internal/config"
	"github.com/sweeney/goldilocks/internal/control"
	"github.com/sweeney/goldilocks/internal/gpio"
	"github.com/sweeney/goldilocks/internal/heatpump"
	"github.com/sweeney/goldilocks/internal/journal"
	"github.com/sweeney/goldilocks/internal/metrics"
	"github.com/sweeney/goldilocks/internal/mqtt"
	"github.com/sweeney/goldilocks/internal/sensor"
	"github.com/sweeney/goldilocks/internal/settings"
	"github.com/sweeney/goldilocks/internal/status"
	"github.com/sweeney/goldilocks/internal/telemetry"
	"github.com/sweeney/goldilocks/internal/thermostat"
	"github.com/sweeney/goldilocks/internal/watchdog"
	"github.com/sweeney/goldilocks/internal/web"
)

// maxIdle bounds how long the control loop sleeps between scheduler checks.
const maxIdle = 100 * time.Millisecond

// options are command line values. Only flags given explicitly override
// the config file.
type options struct {
	configPath   string
	broker       string
	httpAddr     string
	settingsPath string
	logUDP       string
	heartbeat    time.Duration
	printState   bool

	set map[string]bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("goldilocks", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", config.DefaultPath, "YAML config file")
	fs.StringVar(&o.broker, "broker", "", "MQTT broker address")
	fs.StringVar(&o.httpAddr, "http", "", "HTTP status address (empty string disables)")
	fs.StringVar(&o.settingsPath, "settings", "", "Settings file path")
	fs.StringVar(&o.logUDP, "log-udp", "", "Also send log lines to this UDP host:port")
	fs.DurationVar(&o.heartbeat, "heartbeat", 0, "Status heartbeat interval (0 to disable)")
	fs.BoolVar(&o.printState, "print-state", false, "Print the local sensor reading and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply overrides cfg with the flags that were given.
func (o options) apply(cfg *config.Config) {
	if o.set["broker"] {
		cfg.MQTT.Broker = o.broker
	}
	if o.set["http"] {
		cfg.HTTPAddr = o.httpAddr
	}
	if o.set["settings"] {
		cfg.SettingsPath = o.settingsPath
	}
	if o.set["log-udp"] {
		cfg.LogUDP = o.logUDP
	}
	if o.set["heartbeat"] {
		cfg.Periods.Heartbeat = o.heartbeat
	}
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	o.apply(&cfg)

	if cfg.LogUDP != "" {
		closer, err := teeLog(cfg.LogUDP)
		if err != nil {
			log.Printf("log-udp: %v", err)
		} else {
			defer closer.Close()
		}
	}

	if err := run(cfg, o.printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// teeLog copies log output to a UDP collector.
func teeLog(addr string) (io.Closer, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, conn))
	return conn, nil
}

func run(cfg config.Config, printState bool) error {
	clk := clock.System{}
	wall := clock.NewWall(clk)

	var local sensor.Reader
	if r, err := sensor.NewW1Reader(cfg.Sensor.W1Root, cfg.Sensor.W1ID); err != nil {
		log.Printf("local sensor unavailable: %v", err)
	} else {
		local = r
		defer r.Close()
	}

	if printState {
		if local == nil {
			return errors.New("no local sensor")
		}
		v, err := local.Read()
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Printf("temperature: %.1fF\n", v)
		return nil
	}

	store := settings.Open(cfg.SettingsPath)
	name := store.Name()

	outputs, err := gpio.NewRealOutputs(cfg.Relay.Chip, cfg.Relay.Power, cfg.Relay.Mode)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer outputs.Close()
	act := heatpump.NewRelay(outputs, cfg.Relay.Power.Number, cfg.Relay.Mode.Number)

	m := metrics.New()

	table := sensor.NewTable(clk)
	table.SetStaleAfter(cfg.Sensor.StaleAfter)
	table.SetFallback(cfg.Sensor.Fallback)
	for source, w := range cfg.Sensor.Weights {
		table.SetWeight(source, w)
	}

	deps := thermostat.Deps{
		Clock:    clk,
		Wall:     wall,
		Settings: store,
		Table:    table,
		Local:    local,
		Actuator: act,
		Presets:  cfg.Presets,
		Schedule: control.NewSchedule(cfg.Schedule, wall.Now()),
		Metrics:  m,
		Periods:  cfg.Periods,
		Network:  readNetworkInfo,
	}

	if cfg.NTP.Server != "" {
		syncer := clock.NewNTPSyncer(cfg.NTP.Server, wall)
		syncer.Timeout = cfg.NTP.Timeout
		deps.Syncer = syncer
	}

	if w, err := settings.NewWatcher(cfg.SettingsPath); err != nil {
		log.Printf("settings watch disabled: %v", err)
	} else {
		deps.Watcher = w
		defer w.Close()
	}

	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			log.Printf("journal disabled: %v", err)
		} else {
			deps.Journal = j
			defer j.Close()
		}
	}

	if cfg.Influx.URL != "" {
		cfg.Influx.Device = name
		influx := telemetry.NewInflux(cfg.Influx)
		influx.OnStateChange = func(s gobreaker.State) {
			m.SetCircuitBreakerState("influx", float64(s))
		}
		deps.Sink = influx
	}

	var wd watchdog.Feeder = watchdog.Nop{}
	if cfg.Watchdog.Device != "" {
		d, err := watchdog.Open(cfg.Watchdog.Device, cfg.Watchdog.Timeout)
		if err != nil {
			return fmt.Errorf("open watchdog: %w", err)
		}
		wd = d
	}
	defer wd.Close()

	mqttCfg := mqtt.Config{
		Broker:    cfg.MQTT.Broker,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		ClientID:  "goldilocks-" + name,
		Timeout:   cfg.MQTT.Timeout,
		InboxSize: cfg.MQTT.InboxSize,
	}
	deps.Link = mqtt.NewLink(func() mqtt.Session { return mqtt.NewRealSession(mqttCfg) }, name, clk)

	tracker := status.NewTracker(name, time.Now(), status.Config{
		Broker:       cfg.MQTT.Broker,
		HTTPPort:     cfg.HTTPAddr,
		HeartbeatMs:  cfg.Periods.Heartbeat.Milliseconds(),
		StaleAfterMs: cfg.Sensor.StaleAfter.Milliseconds(),
		Fallback:     cfg.Sensor.Fallback,
		Influx:       cfg.Influx.URL != "",
		SettingsPath: cfg.SettingsPath,
	})
	if info := readNetworkInfo(); info != nil {
		tracker.SetNetwork(info)
	}
	deps.Tracker = tracker

	events := make(chan web.Event, 16)
	deps.Events = events

	th := thermostat.New(deps)
	th.Start()

	presets := make([]string, 0, len(cfg.Presets))
	for _, p := range cfg.Presets {
		presets = append(presets, p.Name)
	}
	srv := web.New(cfg.HTTPAddr, tracker, web.Options{
		Events:  events,
		Presets: presets,
		Metrics: m.Handler(),
		Wrap:    m.WrapHandler,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("started: name=%s broker=%s http=%s heartbeat=%v", name, cfg.MQTT.Broker, cfg.HTTPAddr, cfg.Periods.Heartbeat)

	g, ctx := errgroup.WithContext(context.Background())
	if cfg.HTTPAddr != "" {
		g.Go(func() error {
			log.Printf("http status server listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		return runLoop(ctx, th, wd, clk, sigCh)
	})
	return g.Wait()
}

// runLoop is the control thread. It feeds the watchdog, runs due tasks,
// and sleeps until the next one is due or a signal arrives.
func runLoop(ctx context.Context, th *thermostat.Thermostat, wd watchdog.Feeder, c clock.Clock, sig <-chan os.Signal) error {
	s := th.Scheduler()
	for {
		if err := wd.Feed(); err != nil {
			log.Printf("watchdog feed error: %v", err)
		}

		wait := time.Duration(0)
		if !s.RunOnce() {
			wait = maxIdle
			if due, ok := s.NextDue(); ok {
				wait = min(max(due.Sub(c.Now()), 0), maxIdle)
			}
		}

		select {
		case sg := <-sig:
			name := signalName(sg)
			log.Printf("received %s, shutting down", name)
			th.Shutdown(name)
			return nil
		case <-ctx.Done():
			log.Printf("shutting down: %v", context.Cause(ctx))
			th.Shutdown("ERROR")
			return nil
		case <-time.After(wait):
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
