package mqtt

import (
	"log"
	"strconv"
	"time"

	"github.com/sweeney/goldilocks/internal/clock"
)

// Link owns at most one Session and applies the recovery policy: any
// transport failure discards the session, and the next Connect dials a new
// one. Link methods never return transport errors to the caller.
type Link struct {
	dial    func() Session
	name    string
	clock   clock.Clock
	started time.Time

	session    Session
	recoveries int

	// OnReset, if set, is called after a failed session is discarded.
	OnReset func(op string, err error)
}

// NewLink creates a disconnected link. dial must return a fresh, unconnected
// session on every call.
func NewLink(dial func() Session, name string, c clock.Clock) *Link {
	return &Link{
		dial:    dial,
		name:    name,
		clock:   c,
		started: c.Now(),
	}
}

// Connected reports whether a session is held.
func (l *Link) Connected() bool {
	return l.session != nil
}

// Recoveries returns how many sessions have been discarded after a failure.
func (l *Link) Recoveries() int {
	return l.recoveries
}

// Connect dials and subscribes if no session is held. It reports whether
// the link is connected afterwards.
func (l *Link) Connect() bool {
	if l.session != nil {
		return true
	}

	s := l.dial()
	if err := s.Connect(); err != nil {
		log.Printf("mqtt: connect failed: %v", err)
		return false
	}
	if err := s.Subscribe(TemperaturePrefix + "#"); err != nil {
		log.Printf("mqtt: subscribe failed: %v", err)
		if derr := s.Disconnect(); derr != nil {
			log.Printf("mqtt: disconnect after failed subscribe: %v", derr)
		}
		return false
	}

	l.session = s
	log.Printf("mqtt: connected as %s", l.name)
	return true
}

// Poll drains received temperatures and publishes uptime. Malformed
// messages are logged and skipped. On any transport failure the session is
// discarded and Poll returns nil.
func (l *Link) Poll() []Temperature {
	if l.session == nil {
		return nil
	}

	msgs, err := l.session.Poll(0)
	if err != nil {
		l.reset("poll", err)
		return nil
	}

	var temps []Temperature
	for _, msg := range msgs {
		t, err := ParseTemperature(msg)
		if err != nil {
			log.Printf("mqtt: ignoring message: %v", err)
			continue
		}
		temps = append(temps, t)
	}

	uptime := l.clock.Now().Sub(l.started).Seconds()
	payload := []byte(strconv.FormatFloat(uptime, 'f', 0, 64))
	if err := l.session.Publish(StatusPrefix(l.name)+"uptime", payload, false); err != nil {
		l.reset("publish uptime", err)
		return nil
	}
	return temps
}

// Advertise publishes Home Assistant discovery documents.
func (l *Link) Advertise() {
	if l.session == nil {
		return
	}
	docs, err := FormatDiscovery(l.name)
	if err != nil {
		log.Printf("mqtt: %v", err)
		return
	}
	for topic, payload := range docs {
		if err := l.session.Publish(topic, payload, true); err != nil {
			l.reset("advertise", err)
			return
		}
	}
}

// PublishStatus publishes a retained status snapshot.
func (l *Link) PublishStatus(payload []byte) {
	if l.session == nil {
		return
	}
	if err := l.session.Publish(StatusPrefix(l.name)+"state", payload, true); err != nil {
		l.reset("publish status", err)
	}
}

// Close disconnects the held session, if any.
func (l *Link) Close() {
	if l.session == nil {
		return
	}
	if err := l.session.Disconnect(); err != nil {
		log.Printf("mqtt: disconnect: %v", err)
	}
	l.session = nil
}

func (l *Link) reset(op string, err error) {
	log.Printf("mqtt: %s failed, dropping session: %v", op, err)
	if derr := l.session.Disconnect(); derr != nil {
		log.Printf("mqtt: disconnect: %v", derr)
	}
	l.session = nil
	l.recoveries++
	if l.OnReset != nil {
		l.OnReset(op, err)
	}
}
