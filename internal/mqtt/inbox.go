package mqtt

import "log"

// inbox holds received messages until the next Poll, in arrival order of
// their topics. A newer message replaces a queued one on the same topic:
// only the latest reading of a sensor matters, and a chatty sensor costs a
// single slot. Callers synchronize.
type inbox struct {
	msgs    []Message
	index   map[string]int
	limit   int
	dropped int
}

func newInbox(limit int) *inbox {
	return &inbox{
		index: make(map[string]int),
		limit: limit,
	}
}

func (b *inbox) push(msg Message) {
	if i, ok := b.index[msg.Topic]; ok {
		b.msgs[i] = msg
		return
	}
	if len(b.msgs) == b.limit {
		if b.dropped == 0 {
			log.Printf("mqtt: inbox full (%d topics), dropping oldest", b.limit)
		}
		b.dropped++
		b.msgs = append(b.msgs[:0], b.msgs[1:]...)
		clear(b.index)
		for i, m := range b.msgs {
			b.index[m.Topic] = i
		}
	}
	b.index[msg.Topic] = len(b.msgs)
	b.msgs = append(b.msgs, msg)
}

// drain returns the queued messages and how many topics were dropped since
// the last drain.
func (b *inbox) drain() ([]Message, int) {
	msgs, dropped := b.msgs, b.dropped
	b.msgs = nil
	b.dropped = 0
	clear(b.index)
	return msgs, dropped
}

func (b *inbox) len() int {
	return len(b.msgs)
}
