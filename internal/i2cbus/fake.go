package i2cbus

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInjected is returned by a FakeBus transaction forced to fail.
var ErrInjected = errors.New("i2cbus: injected bus fault")

// Op records one register access performed through a FakeBus. Multi-byte
// transactions produce one Op per register touched.
type Op struct {
	Addr  uint16
	Reg   uint8
	Write bool
	Val   uint8
}

// FakeBus is an in-memory register file implementing Bus, for tests.
type FakeBus struct {
	mu sync.Mutex

	regs map[uint16]map[uint8]uint8

	// Ops is the ordered log of register accesses.
	Ops []Op

	// FailNext makes the next n transactions fail with ErrInjected.
	FailNext int

	// TxCount counts transactions, including failed ones.
	TxCount int
}

func NewFakeBus() *FakeBus {
	return &FakeBus{regs: make(map[uint16]map[uint8]uint8)}
}

// Tx implements Bus. A one-byte write followed by a read is a register
// read starting at w[0]; a longer write with no read stores w[1:] at w[0].
func (b *FakeBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.TxCount++
	if b.FailNext > 0 {
		b.FailNext--
		return ErrInjected
	}

	switch {
	case len(w) == 1 && len(r) > 0:
		for i := range r {
			reg := w[0] + uint8(i)
			v := b.regs[addr][reg]
			r[i] = v
			b.Ops = append(b.Ops, Op{Addr: addr, Reg: reg, Val: v})
		}
		return nil
	case len(w) > 1 && len(r) == 0:
		for i, v := range w[1:] {
			reg := w[0] + uint8(i)
			b.set(addr, reg, v)
			b.Ops = append(b.Ops, Op{Addr: addr, Reg: reg, Write: true, Val: v})
		}
		return nil
	case len(w) == 1 && len(r) == 0:
		return nil
	default:
		return fmt.Errorf("i2cbus: unsupported transaction shape (w=%d r=%d)", len(w), len(r))
	}
}

func (b *FakeBus) set(addr uint16, reg, val uint8) {
	if b.regs[addr] == nil {
		b.regs[addr] = make(map[uint8]uint8)
	}
	b.regs[addr][reg] = val
}

// Seed sets a register value directly, without logging an Op.
func (b *FakeBus) Seed(addr uint16, reg, val uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(addr, reg, val)
}

// Get returns the current value of a register.
func (b *FakeBus) Get(addr uint16, reg uint8) uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regs[addr][reg]
}

// Writes returns the sequence of values written to one register, in order.
func (b *FakeBus) Writes(addr uint16, reg uint8) []uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var vals []uint8
	for _, op := range b.Ops {
		if op.Write && op.Addr == addr && op.Reg == reg {
			vals = append(vals, op.Val)
		}
	}
	return vals
}

// Reset clears the register file and all recorded state.
func (b *FakeBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs = make(map[uint16]map[uint8]uint8)
	b.Ops = nil
	b.FailNext = 0
	b.TxCount = 0
}
