package mqtt

import (
	"time"
)

// PublishedMessage records a call to FakeSession.Publish.
type PublishedMessage struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakeSession is a scripted Session for tests.
type FakeSession struct {
	ConnectError    error
	SubscribeError  error
	PollError       error
	PublishError    error
	DisconnectError error

	// Inbox is delivered, then cleared, by the next successful Poll.
	Inbox []Message

	Connected     bool
	Subscriptions []string
	Published     []PublishedMessage
	Polls         int
	Disconnects   int
}

// Connect implements Session.
func (f *FakeSession) Connect() error {
	if f.ConnectError != nil {
		return f.ConnectError
	}
	f.Connected = true
	return nil
}

// Subscribe implements Session.
func (f *FakeSession) Subscribe(topic string) error {
	if !f.Connected {
		return ErrNotConnected
	}
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.Subscriptions = append(f.Subscriptions, topic)
	return nil
}

// Poll implements Session.
func (f *FakeSession) Poll(timeout time.Duration) ([]Message, error) {
	f.Polls++
	if !f.Connected {
		return nil, ErrNotConnected
	}
	if f.PollError != nil {
		return nil, f.PollError
	}
	msgs := f.Inbox
	f.Inbox = nil
	return msgs, nil
}

// Publish implements Session.
func (f *FakeSession) Publish(topic string, payload []byte, retained bool) error {
	if !f.Connected {
		return ErrNotConnected
	}
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Published = append(f.Published, PublishedMessage{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

// Disconnect implements Session.
func (f *FakeSession) Disconnect() error {
	f.Disconnects++
	f.Connected = false
	return f.DisconnectError
}

// Deliver queues a temperature message for the next Poll.
func (f *FakeSession) Deliver(source, payload string) {
	f.Inbox = append(f.Inbox, Message{Topic: TemperaturePrefix + source, Payload: []byte(payload)})
}

// PublishedTo returns the messages published to topic.
func (f *FakeSession) PublishedTo(topic string) []PublishedMessage {
	var out []PublishedMessage
	for _, m := range f.Published {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// FakeDialer hands out FakeSessions and remembers them.
type FakeDialer struct {
	// Setup, if set, configures each new session before it is returned.
	Setup func(n int, s *FakeSession)

	Sessions []*FakeSession
}

// Dial returns a new FakeSession.
func (d *FakeDialer) Dial() Session {
	s := &FakeSession{}
	if d.Setup != nil {
		d.Setup(len(d.Sessions), s)
	}
	d.Sessions = append(d.Sessions, s)
	return s
}

// Last returns the most recently dialed session, or nil.
func (d *FakeDialer) Last() *FakeSession {
	if len(d.Sessions) == 0 {
		return nil
	}
	return d.Sessions[len(d.Sessions)-1]
}
