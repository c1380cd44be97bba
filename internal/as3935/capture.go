package as3935

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultDebounce suppresses repeat IRQ edges within this window.
	DefaultDebounce = 3 * time.Millisecond

	// DefaultDwell is how long after the last edge the interrupt register
	// is left alone before draining. The sensor updates it asynchronously.
	DefaultDwell = 2 * time.Millisecond

	// DefaultIRQSettle is the wait between an edge and the first register
	// read of the resulting interrupt.
	DefaultIRQSettle = 2 * time.Millisecond
)

// CaptureConfig tunes edge capture. Zero fields take the defaults above.
type CaptureConfig struct {
	Debounce time.Duration
	Dwell    time.Duration
	Settle   time.Duration
}

// Capture connects the sensor's IRQ line to the driver. OnEdge runs on
// the GPIO callback goroutine and touches no I2C; Drain runs on the
// service loop and does all bus work. The pending flag and the last edge
// timestamp are the only state the two sides share.
type Capture struct {
	drv   *Driver
	clock clockwork.Clock

	debounce time.Duration
	dwell    time.Duration
	settle   time.Duration

	pending  atomic.Bool
	lastEdge atomic.Int64 // unix nanos of the last accepted edge
}

// NewCapture wires cap state around drv. A nil clock means the real one.
func NewCapture(drv *Driver, clock clockwork.Clock, cfg CaptureConfig) *Capture {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Capture{
		drv:      drv,
		clock:    clock,
		debounce: cfg.Debounce,
		dwell:    cfg.Dwell,
		settle:   cfg.Settle,
	}
	if c.debounce <= 0 {
		c.debounce = DefaultDebounce
	}
	if c.dwell <= 0 {
		c.dwell = DefaultDwell
	}
	if c.settle <= 0 {
		c.settle = DefaultIRQSettle
	}
	return c
}

// OnEdge records a rising edge on the IRQ line. Edges arriving within
// the debounce window of the last accepted one are dropped while an
// interrupt is already pending.
func (c *Capture) OnEdge() {
	now := c.clock.Now().UnixNano()
	if c.pending.Load() && now-c.lastEdge.Load() <= int64(c.debounce) {
		return
	}
	c.lastEdge.Store(now)
	c.pending.Store(true)
}

// Pending reports whether an edge is waiting to be drained.
func (c *Capture) Pending() bool {
	return c.pending.Load()
}

// Drain reads pending interrupts, at most max per call. An edge inside
// the dwell window defers to the next call so the sensor has finished
// updating its registers; the pending flag is cleared before each read
// so an edge arriving mid-read re-arms capture instead of being lost.
// On a bus error the events drained so far are returned with it.
func (c *Capture) Drain(max int) ([]Event, error) {
	var events []Event
	for i := 0; i < max; i++ {
		if !c.pending.Load() {
			break
		}
		last := time.Unix(0, c.lastEdge.Load())
		if c.clock.Now().Sub(last) < c.dwell {
			break
		}
		c.pending.Store(false)
		ev, err := c.drv.ReadEvent(c.settle)
		if err != nil {
			return events, err
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events, nil
}

// Poll reads the interrupt register directly, for setups without the IRQ
// line wired. Returns nil when nothing is pending.
func (c *Capture) Poll() (*Event, error) {
	return c.drv.ReadEvent(0)
}
