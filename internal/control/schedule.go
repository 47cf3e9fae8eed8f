package control

import (
	"fmt"
	"sort"
	"time"
)

// Block starts a preset at a time of day.
type Block struct {
	Hour   int    `yaml:"hour"`
	Minute int    `yaml:"minute"`
	Preset string `yaml:"preset"`
}

func (b Block) minutes() int { return b.Hour*60 + b.Minute }

// DefaultBlocks is the built-in daily schedule.
var DefaultBlocks = []Block{
	{Hour: 8, Minute: 0, Preset: "Away"},
	{Hour: 22, Minute: 0, Preset: "Sleep"},
}

// Schedule selects a preset when the wall clock enters a new daily block.
type Schedule struct {
	blocks []Block
	index  int
}

// NewSchedule creates a schedule positioned at now, so the block already in
// effect at startup is not re-applied.
func NewSchedule(blocks []Block, now time.Time) *Schedule {
	sorted := append([]Block(nil), blocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].minutes() < sorted[j].minutes() })
	s := &Schedule{blocks: sorted}
	s.index = s.find(now)
	return s
}

// Validate checks block times and that every preset exists.
func (s *Schedule) Validate(presets Presets) error {
	for _, b := range s.blocks {
		if b.Hour < 0 || b.Hour > 23 || b.Minute < 0 || b.Minute > 59 {
			return fmt.Errorf("schedule block %02d:%02d: bad time", b.Hour, b.Minute)
		}
		if _, err := presets.Lookup(b.Preset); err != nil {
			return fmt.Errorf("schedule block %02d:%02d: %w", b.Hour, b.Minute, err)
		}
	}
	return nil
}

// find returns the block in effect at t. Before the first block of the day
// the last block of the previous day still applies.
func (s *Schedule) find(t time.Time) int {
	m := t.Hour()*60 + t.Minute()
	idx := len(s.blocks) - 1
	for i, b := range s.blocks {
		if b.minutes() > m {
			break
		}
		idx = i
	}
	return idx
}

// Poll returns the preset to apply if now is in a different block than the
// last poll.
func (s *Schedule) Poll(now time.Time) (string, bool) {
	if len(s.blocks) == 0 {
		return "", false
	}
	idx := s.find(now)
	if idx == s.index {
		return "", false
	}
	s.index = idx
	return s.blocks[idx].Preset, true
}

// Current returns the preset of the block in effect.
func (s *Schedule) Current() string {
	if len(s.blocks) == 0 {
		return ""
	}
	return s.blocks[s.index].Preset
}
