//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// EdgeWatcher watches the IRQ line on actual hardware using the Linux
// GPIO character device.
type EdgeWatcher struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewEdgeWatcher requests pin as a pulled-down input and calls onEdge on
// every rising edge. onEdge runs on the kernel event goroutine and must
// not block or touch the I2C bus.
func NewEdgeWatcher(pin int, onEdge func()) (*EdgeWatcher, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Pull-down matches the Pi boot default and the sensor's
	// active-high IRQ output.
	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			if evt.Type == gpiocdev.LineEventRisingEdge {
				onEdge()
			}
		}))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request IRQ pin %d: %w", pin, err)
	}

	return &EdgeWatcher{
		chip: chip,
		line: line,
	}, nil
}

// Close releases GPIO resources.
// Reconfigures the pin to input with pull-down (matching Pi boot
// defaults) before closing to ensure clean state for system
// shutdown/reboot.
func (w *EdgeWatcher) Close() error {
	var errs []error

	if w.line != nil {
		if err := w.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure IRQ pin: %w", err))
		}
		if err := w.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close IRQ pin: %w", err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
