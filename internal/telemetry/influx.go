package telemetry

import (
	"context"
	"fmt"
	"log"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"
)

// InfluxConfig holds InfluxDB v2 connection settings.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
	Device string `yaml:"-"`

	// Timeout bounds a single write.
	Timeout time.Duration `yaml:"timeout"`

	// Failures is the number of consecutive failed writes that opens the
	// breaker; OpenFor is how long it stays open.
	Failures uint32        `yaml:"failures"`
	OpenFor  time.Duration `yaml:"open_for"`
}

// Influx writes samples through a circuit breaker so that an unreachable
// server costs one fast failure per flush instead of a full timeout.
type Influx struct {
	cfg    InfluxConfig
	client influxdb2.Client
	write  api.WriteAPIBlocking
	cb     *gobreaker.CircuitBreaker

	// OnStateChange, if set, is called when the breaker changes state.
	OnStateChange func(state gobreaker.State)
}

// NewInflux creates a sink. No connection is made until the first write.
func NewInflux(cfg InfluxConfig) *Influx {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Failures == 0 {
		cfg.Failures = 3
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 5 * time.Minute
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds()+1)))
	i := &Influx{
		cfg:    cfg,
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
	failures := cfg.Failures
	i.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "influx",
		Timeout: cfg.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("telemetry: %s breaker %s -> %s", name, from, to)
			if i.OnStateChange != nil {
				i.OnStateChange(to)
			}
		},
	})
	return i
}

// Write sends one sample.
func (i *Influx) Write(ctx context.Context, s Sample) error {
	points := Points(i.cfg.Device, s)
	_, err := i.cb.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
		defer cancel()
		return nil, i.write.WritePoint(ctx, points...)
	})
	if err != nil {
		return fmt.Errorf("write influx: %w", err)
	}
	return nil
}

// State returns the breaker state.
func (i *Influx) State() gobreaker.State {
	return i.cb.State()
}

// Close releases the HTTP client.
func (i *Influx) Close() {
	i.client.Close()
}

// Points converts a sample into line-protocol points: one thermostat point
// and one point per source.
func Points(device string, s Sample) []*write.Point {
	points := make([]*write.Point, 0, 1+len(s.Sources))
	fields := map[string]interface{}{
		"fused": s.Fused,
		"live":  s.Live,
		"low":   s.Low,
		"high":  s.High,
	}
	if s.Target != 0 {
		fields["target"] = s.Target
	}
	points = append(points, influxdb2.NewPoint("thermostat",
		map[string]string{"device": device, "state": s.State, "preset": s.Preset},
		fields, s.At))

	for source, v := range s.Sources {
		points = append(points, influxdb2.NewPoint("temperature",
			map[string]string{"device": device, "source": source},
			map[string]interface{}{"fahrenheit": v}, s.At))
	}
	return points
}
