package service

import "github.com/sweeney/lightning-sensor/internal/as3935"

// eventLog is a fixed-capacity FIFO of recent detector events. Once full,
// new events overwrite the oldest.
// Not safe for concurrent use; caller must synchronize.
type eventLog struct {
	buf      []as3935.Event
	capacity int
	head     int // next write position
	count    int
}

func newEventLog(capacity int) *eventLog {
	return &eventLog{
		buf:      make([]as3935.Event, capacity),
		capacity: capacity,
	}
}

func (l *eventLog) push(ev as3935.Event) {
	l.buf[l.head] = ev
	l.head = (l.head + 1) % l.capacity
	if l.count < l.capacity {
		l.count++
	}
}

// tail returns up to n of the most recent events, oldest first. n <= 0 or
// n > len returns everything retained.
func (l *eventLog) tail(n int) []as3935.Event {
	if n <= 0 || n > l.count {
		n = l.count
	}
	if n == 0 {
		return nil
	}

	result := make([]as3935.Event, n)
	// Oldest requested item is at (head - n) mod capacity
	start := (l.head - n + l.capacity) % l.capacity
	for i := 0; i < n; i++ {
		result[i] = l.buf[(start+i)%l.capacity]
	}
	return result
}

func (l *eventLog) len() int {
	return l.count
}
