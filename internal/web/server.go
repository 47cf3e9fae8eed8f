// Package web provides the HTTP status page for the goldilocks daemon. The
// page doubles as the thermostat display: its buttons post UI events that
// the control thread drains.
package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/sweeney/goldilocks/internal/status"
)

// EventKind identifies a UI action.
type EventKind string

const (
	EventPreset EventKind = "preset"
	EventAdjust EventKind = "adjust"
)

// Event is a UI action for the control thread.
type Event struct {
	Kind   EventKind
	Preset string  // EventPreset
	Bound  string  // EventAdjust: "low" or "high"
	Delta  float64 // EventAdjust
}

// Options configures optional server features.
type Options struct {
	// Events receives UI actions. Nil makes the page read-only.
	Events chan<- Event

	// Presets are offered as buttons.
	Presets []string

	// Metrics, if set, is served on /metrics.
	Metrics http.Handler

	// Wrap, if set, wraps each route's handler (request metrics).
	Wrap func(route string, h http.Handler) http.Handler
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	opts       Options
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	s := &Server{tracker: tracker, opts: opts}

	r := mux.NewRouter()
	s.handle(r, "index", "/", s.handleIndex).Methods(http.MethodGet)
	s.handle(r, "index", "/index.html", s.handleIndex).Methods(http.MethodGet)
	s.handle(r, "json", "/index.json", s.handleJSON).Methods(http.MethodGet)
	s.handle(r, "preset", "/api/preset/{name}", s.handlePreset).Methods(http.MethodPost)
	s.handle(r, "adjust", "/api/adjust/{bound:low|high}/{delta:-?[0-9]+}", s.handleAdjust).Methods(http.MethodPost)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

func (s *Server) handle(r *mux.Router, route, path string, fn http.HandlerFunc) *mux.Route {
	var h http.Handler = fn
	if s.opts.Wrap != nil {
		h = s.opts.Wrap(route, h)
	}
	return r.Handle(path, h)
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.opts.Presets, s.opts.Events != nil)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.knownPreset(name) {
		http.Error(w, "unknown preset", http.StatusNotFound)
		return
	}
	s.send(w, r, Event{Kind: EventPreset, Preset: name})
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	delta, err := strconv.Atoi(vars["delta"])
	if err != nil || delta == 0 || delta < -10 || delta > 10 {
		http.Error(w, "delta must be a non-zero step between -10 and 10", http.StatusBadRequest)
		return
	}
	s.send(w, r, Event{Kind: EventAdjust, Bound: vars["bound"], Delta: float64(delta)})
}

func (s *Server) knownPreset(name string) bool {
	for _, p := range s.opts.Presets {
		if p == name {
			return true
		}
	}
	return false
}

// send queues ev without blocking the HTTP goroutine and sends the browser
// back to the page.
func (s *Server) send(w http.ResponseWriter, r *http.Request, ev Event) {
	if s.opts.Events == nil {
		http.Error(w, "read-only", http.StatusForbidden)
		return
	}
	select {
	case s.opts.Events <- ev:
	default:
		log.Printf("web: event queue full, dropping %s", ev.Kind)
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
