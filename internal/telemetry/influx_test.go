package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"
)

var at = time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)

type influxServer struct {
	mu     sync.Mutex
	status int
	hits   int
	bodies []string
}

func (s *influxServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.hits++
	s.bodies = append(s.bodies, string(body))
	status := s.status
	s.mu.Unlock()
	w.WriteHeader(status)
}

func (s *influxServer) requests() (int, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, append([]string(nil), s.bodies...)
}

func sample() Sample {
	return Sample{
		At:      at,
		Fused:   71.5,
		Live:    2,
		Sources: map[string]float64{"head": 71, "kitchen": 72},
		State:   "HEATING",
		Low:     68,
		High:    75,
		Target:  69,
		Preset:  "Home",
	}
}

func TestPoints(t *testing.T) {
	points := Points("abc123", sample())
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}

	line := write.PointToLineProtocol(points[0], time.Second)
	for _, want := range []string{"thermostat,", "device=abc123", "state=HEATING", "fused=71.5", "target=69"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestPointsOmitsIdleTarget(t *testing.T) {
	s := sample()
	s.Target = 0
	line := write.PointToLineProtocol(Points("abc123", s)[0], time.Second)
	if strings.Contains(line, "target=") {
		t.Errorf("idle sample should not carry target: %q", line)
	}
}

func TestInfluxWrite(t *testing.T) {
	srv := &influxServer{status: http.StatusNoContent}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	sink := NewInflux(InfluxConfig{URL: ts.URL, Token: "t", Org: "home", Bucket: "hvac", Device: "abc123"})
	defer sink.Close()

	if err := sink.Write(context.Background(), sample()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hits, bodies := srv.requests()
	if hits != 1 {
		t.Fatalf("expected 1 request, got %d", hits)
	}
	if !strings.Contains(bodies[0], "temperature,device=abc123,source=kitchen fahrenheit=72") {
		t.Errorf("unexpected body:\n%s", bodies[0])
	}
}

func TestInfluxBreakerOpens(t *testing.T) {
	srv := &influxServer{status: http.StatusInternalServerError}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	sink := NewInflux(InfluxConfig{URL: ts.URL, Token: "t", Org: "home", Bucket: "hvac", Failures: 2})
	defer sink.Close()
	var states []gobreaker.State
	sink.OnStateChange = func(s gobreaker.State) { states = append(states, s) }

	for i := 0; i < 2; i++ {
		if err := sink.Write(context.Background(), sample()); err == nil {
			t.Fatalf("write %d: expected error", i)
		}
	}
	if sink.State() != gobreaker.StateOpen {
		t.Fatalf("expected breaker open, got %s", sink.State())
	}

	err := sink.Write(context.Background(), sample())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if hits, _ := srv.requests(); hits != 2 {
		t.Errorf("expected no request while open, got %d hits", hits)
	}
	if len(states) != 1 || states[0] != gobreaker.StateOpen {
		t.Errorf("state changes: got %v", states)
	}
}

func TestFake(t *testing.T) {
	f := &Fake{}
	if err := f.Write(context.Background(), sample()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.WriteError = errors.New("down")
	if err := f.Write(context.Background(), sample()); err == nil {
		t.Error("expected error")
	}
	if len(f.Samples) != 1 {
		t.Errorf("expected 1 sample, got %d", len(f.Samples))
	}
	f.Close()
	if !f.Closed {
		t.Error("expected closed")
	}
}
