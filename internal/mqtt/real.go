package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Config holds broker connection settings.
type Config struct {
	Broker   string
	Username string
	Password string
	ClientID string

	// Timeout bounds connect, subscribe, and publish round trips.
	Timeout time.Duration

	// InboxSize is the number of distinct topics queued between polls.
	InboxSize int
}

// RealSession talks to an actual MQTT broker. Paho delivers messages on its
// own goroutines; they are queued here until the control thread polls.
// Paho's auto-reconnect is off: reconnection belongs to the Link.
type RealSession struct {
	cfg    Config
	client paho.Client

	mu     sync.Mutex
	inbox  *inbox
	lost   error
	notify chan struct{}
}

// NewRealSession creates an unconnected session.
func NewRealSession(cfg Config) *RealSession {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	return &RealSession{
		cfg:    cfg,
		inbox:  newInbox(cfg.InboxSize),
		notify: make(chan struct{}, 1),
	}
}

// Connect opens the connection.
func (s *RealSession) Connect() error {
	if s.client != nil {
		return nil
	}
	opts := paho.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetUsername(s.cfg.Username).
		SetPassword(s.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(s.cfg.Timeout).
		SetWriteTimeout(s.cfg.Timeout).
		SetConnectionLostHandler(s.onConnectionLost)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(s.cfg.Timeout) {
		client.Disconnect(0)
		return fmt.Errorf("connect to %s: timeout", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", s.cfg.Broker, err)
	}
	s.client = client
	return nil
}

// Subscribe adds a QoS 0 subscription.
func (s *RealSession) Subscribe(topic string) error {
	if s.client == nil {
		return ErrNotConnected
	}
	token := s.client.Subscribe(topic, 0, s.onMessage)
	if !token.WaitTimeout(s.cfg.Timeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Poll returns queued messages, waiting at most timeout for the first one.
func (s *RealSession) Poll(timeout time.Duration) ([]Message, error) {
	if s.client == nil {
		return nil, ErrNotConnected
	}
	msgs, err := s.drain()
	if err != nil || len(msgs) > 0 || timeout <= 0 {
		return msgs, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.notify:
	case <-timer.C:
	}
	return s.drain()
}

func (s *RealSession) drain() ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lost != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, s.lost)
	}
	msgs, dropped := s.inbox.drain()
	if dropped > 0 {
		log.Printf("mqtt: dropped %d topics while the inbox was full", dropped)
	}
	return msgs, nil
}

// Publish sends a QoS 0 message.
func (s *RealSession) Publish(topic string, payload []byte, retained bool) error {
	if s.client == nil {
		return ErrNotConnected
	}
	token := s.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(s.cfg.Timeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the connection.
func (s *RealSession) Disconnect() error {
	if s.client == nil {
		return ErrNotConnected
	}
	s.client.Disconnect(250)
	s.client = nil
	return nil
}

func (s *RealSession) onMessage(_ paho.Client, m paho.Message) {
	payload := append([]byte(nil), m.Payload()...)
	s.mu.Lock()
	s.inbox.push(Message{Topic: m.Topic(), Payload: payload})
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *RealSession) onConnectionLost(_ paho.Client, err error) {
	s.mu.Lock()
	s.lost = err
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
