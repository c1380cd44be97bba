// Package gpio watches the sensor's IRQ line with hardware abstraction.
// The real implementation uses Linux GPIO character device edge events.
// The fake implementation allows testing without hardware.
package gpio

// Watcher owns a requested GPIO line and delivers rising-edge callbacks
// until closed. The callback is handed over at construction; there is
// nothing to poll.
type Watcher interface {
	// Close releases GPIO resources and stops callbacks.
	Close() error
}

// DefaultIRQPin is the BCM pin the sensor's IRQ output is wired to.
const DefaultIRQPin = 24
