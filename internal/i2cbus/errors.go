package i2cbus

import "fmt"

// BusError reports a transaction that failed after exhausting its retry
// budget. Err holds the last underlying transport error.
type BusError struct {
	Op       string
	Addr     uint16
	Reg      uint8
	Attempts int
	Err      error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("i2c %s addr 0x%02x reg 0x%02x failed after %d attempt(s): %v",
		e.Op, e.Addr, e.Reg, e.Attempts, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}
