package clock

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// Syncer corrects a Wall clock from a time server.
type Syncer interface {
	Sync() error
}

// NTPSyncer queries an NTP server and stores the clock offset in a Wall.
type NTPSyncer struct {
	Server  string
	Timeout time.Duration
	Wall    *Wall

	// query is replaced in tests.
	query func(host string, opt ntp.QueryOptions) (*ntp.Response, error)
}

// NewNTPSyncer creates a syncer for the given server.
func NewNTPSyncer(server string, wall *Wall) *NTPSyncer {
	return &NTPSyncer{
		Server:  server,
		Timeout: 2 * time.Second,
		Wall:    wall,
		query:   ntp.QueryWithOptions,
	}
}

// Sync performs one bounded NTP query and applies the offset.
func (s *NTPSyncer) Sync() error {
	resp, err := s.query(s.Server, ntp.QueryOptions{Timeout: s.Timeout})
	if err != nil {
		return fmt.Errorf("ntp query %s: %w", s.Server, err)
	}
	if err := resp.Validate(); err != nil {
		return fmt.Errorf("ntp response from %s: %w", s.Server, err)
	}
	s.Wall.SetOffset(resp.ClockOffset, s.Wall.base.Now())
	return nil
}
