// Package i2cbus provides register-oriented I2C transactions with a retry
// policy. The real bus is any periph.io i2c.Bus; the fake implementation
// allows testing without hardware.
package i2cbus

import (
	"sync"
	"time"
)

// Bus is the raw transport a Conn runs on. periph.io's i2c.Bus satisfies it.
type Bus interface {
	// Tx performs a single write-then-read transaction at addr.
	Tx(addr uint16, w, r []byte) error
}

// Policy controls how failed transactions are retried.
type Policy struct {
	// Retries is the number of additional attempts after the first failure.
	Retries int

	// Backoff is the pause between attempts. No pause after the last one.
	Backoff time.Duration
}

// Conn wraps a Bus with a retry policy and register-level operations.
// All operations are safe for concurrent use; a read-modify-write holds the
// connection for the whole read+write sequence.
type Conn struct {
	mu     sync.Mutex
	bus    Bus
	policy Policy

	// sleep is swapped out in tests to observe backoff behavior.
	sleep func(time.Duration)
}

// New creates a Conn over bus with the given retry policy.
func New(bus Bus, policy Policy) *Conn {
	return &Conn{
		bus:    bus,
		policy: policy,
		sleep:  time.Sleep,
	}
}

// do runs fn up to Retries+1 times, pausing Backoff between attempts.
// If every attempt fails the last error is wrapped in a *BusError.
func (c *Conn) do(op string, addr uint16, reg uint8, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	attempts := c.policy.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for k := 0; k < attempts; k++ {
		if err := fn(); err != nil {
			last = err
			if k < attempts-1 && c.policy.Backoff > 0 {
				c.sleep(c.policy.Backoff)
			}
			continue
		}
		return nil
	}
	return &BusError{Op: op, Addr: addr, Reg: reg, Attempts: attempts, Err: last}
}

// ReadReg reads a single register.
func (c *Conn) ReadReg(addr uint16, reg uint8) (uint8, error) {
	var buf [1]byte
	err := c.do("read", addr, reg, func() error {
		return c.bus.Tx(addr, []byte{reg}, buf[:])
	})
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadRegs reads n consecutive registers starting at reg.
func (c *Conn) ReadRegs(addr uint16, reg uint8, n int) ([]byte, error) {
	buf := make([]byte, n)
	err := c.do("read", addr, reg, func() error {
		return c.bus.Tx(addr, []byte{reg}, buf)
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteReg writes a single register.
func (c *Conn) WriteReg(addr uint16, reg uint8, val uint8) error {
	return c.do("write", addr, reg, func() error {
		return c.bus.Tx(addr, []byte{reg, val}, nil)
	})
}

// WriteRegs writes len(data) consecutive registers starting at reg.
func (c *Conn) WriteRegs(addr uint16, reg uint8, data []byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	return c.do("write", addr, reg, func() error {
		return c.bus.Tx(addr, w, nil)
	})
}

// ReadModifyWrite replaces the masked field of reg with value<<shift and
// returns the byte that was written. The read and write are retried as one
// unit, so a partially applied update is never left behind on retry.
func (c *Conn) ReadModifyWrite(addr uint16, reg, mask, shift, value uint8) (uint8, error) {
	var out uint8
	err := c.do("read-modify-write", addr, reg, func() error {
		var buf [1]byte
		if err := c.bus.Tx(addr, []byte{reg}, buf[:]); err != nil {
			return err
		}
		v := (buf[0] &^ mask) | (value << shift & mask)
		if err := c.bus.Tx(addr, []byte{reg, v}, nil); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return 0, err
	}
	return out, nil
}

// FieldGet reads reg and extracts the masked field shifted down to bit 0.
func (c *Conn) FieldGet(addr uint16, reg, mask, shift uint8) (uint8, error) {
	v, err := c.ReadReg(addr, reg)
	if err != nil {
		return 0, err
	}
	return (v & mask) >> shift, nil
}
