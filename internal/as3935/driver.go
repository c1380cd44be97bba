// Package as3935 drives the AS3935 franklin lightning sensor over I2C:
// configuration, interrupt decoding and edge-triggered event capture.
package as3935

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/lightning-sensor/internal/i2cbus"
)

// DefaultAddr is the sensor's I2C address with both address pins low.
const DefaultAddr = 0x03

// calibrationSettle is how long the oscillators need after an RCO
// calibration command.
const calibrationSettle = 3 * time.Millisecond

var (
	// ErrNotResponding means the confirmatory read in Begin failed.
	ErrNotResponding = errors.New("as3935: sensor not responding")

	// ErrNotInitialized means an operation ran before a successful Begin.
	ErrNotInitialized = errors.New("as3935: sensor not initialized (call Begin first)")
)

// ValidationError reports a config value outside the sensor's documented
// range. Nothing is written to the bus when one is returned.
type ValidationError struct {
	Field   string
	Value   int
	Allowed string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("as3935: %s %d out of range (allowed %s)", e.Field, e.Value, e.Allowed)
}

// Config is the full tunable state of the sensor. The zero value is not
// useful; start from DefaultConfig.
type Config struct {
	Indoor           bool
	NoiseFloor       int
	Watchdog         int
	SpikeRejection   int
	MinStrikes       int
	TuningCapPF      int
	ReportDisturbers bool
}

// DefaultConfig returns the settings for an indoor sensor with a 96 pF
// tuned antenna.
func DefaultConfig() Config {
	return Config{
		Indoor:           true,
		NoiseFloor:       2,
		Watchdog:         2,
		SpikeRejection:   2,
		MinStrikes:       1,
		TuningCapPF:      96,
		ReportDisturbers: true,
	}
}

// Validate checks every field against the sensor's accepted ranges.
// TuningCapPF is exempt: it is clamped to the nearest valid step on write.
func (c Config) Validate() error {
	if c.NoiseFloor < 0 || c.NoiseFloor > 7 {
		return &ValidationError{Field: "noise floor", Value: c.NoiseFloor, Allowed: "0..7"}
	}
	if c.Watchdog < 0 || c.Watchdog > 15 {
		return &ValidationError{Field: "watchdog threshold", Value: c.Watchdog, Allowed: "0..15"}
	}
	if c.SpikeRejection < 0 || c.SpikeRejection > 15 {
		return &ValidationError{Field: "spike rejection", Value: c.SpikeRejection, Allowed: "0..15"}
	}
	if _, ok := minStrikesCode(c.MinStrikes); !ok {
		return &ValidationError{Field: "minimum strikes", Value: c.MinStrikes, Allowed: "1, 5, 9 or 16"}
	}
	return nil
}

// IRQSource selects which internal oscillator, if any, is routed to the
// IRQ pin instead of interrupt signalling.
type IRQSource uint8

const (
	IRQSourceNone IRQSource = 0b000
	IRQSourceTRCO IRQSource = 0b001
	IRQSourceSRCO IRQSource = 0b010
	IRQSourceLCO  IRQSource = 0b100
)

// Driver is one AS3935 on one bus. It is not safe for concurrent use by
// itself; the service loop is the only writer after startup, and Status
// reads go through the connection's own locking.
type Driver struct {
	conn  *i2cbus.Conn
	addr  uint16
	began bool

	sleep func(time.Duration)
	now   func() time.Time
}

// New returns a Driver for the sensor at addr on conn. Call Begin before
// anything else.
func New(conn *i2cbus.Conn, addr uint16) *Driver {
	return &Driver{
		conn:  conn,
		addr:  addr,
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// Addr returns the sensor's I2C address.
func (d *Driver) Addr() uint16 {
	return d.addr
}

// SetAddress re-addresses the driver, for sensors strapped to one of the
// alternate bus addresses. Subsequent operations use the new address.
func (d *Driver) SetAddress(addr uint16) {
	d.addr = addr
}

func (d *Driver) ready() error {
	if !d.began {
		return ErrNotInitialized
	}
	return nil
}

// Begin confirms the sensor answers on the bus. Every other operation
// fails with ErrNotInitialized until this succeeds.
func (d *Driver) Begin() error {
	if _, err := d.conn.ReadReg(d.addr, regDistance); err != nil {
		return fmt.Errorf("%w: %w", ErrNotResponding, err)
	}
	d.began = true
	return nil
}

// Reset restores the sensor's register defaults, recalibrates the RCOs
// and routes the IRQ pin back to interrupt signalling.
func (d *Driver) Reset() error {
	if err := d.ready(); err != nil {
		return err
	}
	if err := d.conn.WriteReg(d.addr, regPresetDefault, directCommand); err != nil {
		return err
	}
	if err := d.conn.WriteReg(d.addr, regCalibRCO, directCommand); err != nil {
		return err
	}
	d.sleep(calibrationSettle)
	return d.SetIRQOutputSource(IRQSourceNone)
}

// Calibrate reruns the internal RCO calibration.
func (d *Driver) Calibrate() error {
	if err := d.ready(); err != nil {
		return err
	}
	if err := d.conn.WriteReg(d.addr, regCalibRCO, directCommand); err != nil {
		return err
	}
	d.sleep(calibrationSettle)
	return nil
}

// Configure validates cfg in full, then resets the sensor and applies
// every field. An invalid config leaves the bus untouched.
func (d *Driver) Configure(cfg Config) error {
	if err := d.ready(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := d.Reset(); err != nil {
		return err
	}
	if err := d.PowerUp(); err != nil {
		return err
	}
	if cfg.Indoor {
		if err := d.SetIndoor(); err != nil {
			return err
		}
	} else {
		if err := d.SetOutdoor(); err != nil {
			return err
		}
	}
	if err := d.SetIRQOutputSource(IRQSourceNone); err != nil {
		return err
	}
	if err := d.SetTuningCaps(cfg.TuningCapPF); err != nil {
		return err
	}
	if err := d.SetNoiseFloor(cfg.NoiseFloor); err != nil {
		return err
	}
	if err := d.SetWatchdogThreshold(cfg.Watchdog); err != nil {
		return err
	}
	if err := d.SetSpikeRejection(cfg.SpikeRejection); err != nil {
		return err
	}
	if err := d.SetMinStrikes(cfg.MinStrikes); err != nil {
		return err
	}
	return d.SetDisturberMask(!cfg.ReportDisturbers)
}

// PowerUp clears the power-down bit.
func (d *Driver) PowerUp() error {
	if err := d.ready(); err != nil {
		return err
	}
	_, err := d.conn.ReadModifyWrite(d.addr, regAFEGain, maskPowerDown, 0, 0)
	return err
}

// PowerDown puts the analog front end to sleep.
func (d *Driver) PowerDown() error {
	if err := d.ready(); err != nil {
		return err
	}
	_, err := d.conn.ReadModifyWrite(d.addr, regAFEGain, maskPowerDown, 0, 1)
	return err
}

// SetIndoor selects the indoor AFE gain preset.
func (d *Driver) SetIndoor() error {
	if err := d.ready(); err != nil {
		return err
	}
	_, err := d.conn.ReadModifyWrite(d.addr, regAFEGain, maskAFEGain, shiftAFEGain, afeGainIndoor)
	return err
}

// SetOutdoor selects the outdoor AFE gain preset.
func (d *Driver) SetOutdoor() error {
	if err := d.ready(); err != nil {
		return err
	}
	_, err := d.conn.ReadModifyWrite(d.addr, regAFEGain, maskAFEGain, shiftAFEGain, afeGainOutdoor)
	return err
}

// SetNoiseFloor sets the noise floor level, 0..7.
func (d *Driver) SetNoiseFloor(level int) error {
	if err := d.ready(); err != nil {
		return err
	}
	if level < 0 || level > 7 {
		return &ValidationError{Field: "noise floor", Value: level, Allowed: "0..7"}
	}
	_, err := d.conn.ReadModifyWrite(d.addr, regThresholds, maskNoiseFloor, shiftNoiseFloor, uint8(level))
	return err
}

// SetWatchdogThreshold sets the watchdog threshold, 0..15.
func (d *Driver) SetWatchdogThreshold(v int) error {
	if err := d.ready(); err != nil {
		return err
	}
	if v < 0 || v > 15 {
		return &ValidationError{Field: "watchdog threshold", Value: v, Allowed: "0..15"}
	}
	_, err := d.conn.ReadModifyWrite(d.addr, regThresholds, maskWatchdog, 0, uint8(v))
	return err
}

// SetSpikeRejection sets the spike rejection level, 0..15.
func (d *Driver) SetSpikeRejection(v int) error {
	if err := d.ready(); err != nil {
		return err
	}
	if v < 0 || v > 15 {
		return &ValidationError{Field: "spike rejection", Value: v, Allowed: "0..15"}
	}
	_, err := d.conn.ReadModifyWrite(d.addr, regStatistics, maskSpikeRej, 0, uint8(v))
	return err
}

// SetMinStrikes sets how many strikes must accumulate before the sensor
// raises a lightning interrupt. Accepted values: 1, 5, 9, 16.
func (d *Driver) SetMinStrikes(n int) error {
	if err := d.ready(); err != nil {
		return err
	}
	code, ok := minStrikesCode(n)
	if !ok {
		return &ValidationError{Field: "minimum strikes", Value: n, Allowed: "1, 5, 9 or 16"}
	}
	_, err := d.conn.ReadModifyWrite(d.addr, regStatistics, maskMinStrikes, shiftMinStrikes, code)
	return err
}

// SetDisturberMask suppresses disturber interrupts when masked is true.
func (d *Driver) SetDisturberMask(masked bool) error {
	if err := d.ready(); err != nil {
		return err
	}
	var v uint8
	if masked {
		v = 1
	}
	_, err := d.conn.ReadModifyWrite(d.addr, regInterrupt, maskDisturber, shiftDisturber, v)
	return err
}

// SetAntennaDivider sets the LCO frequency division ratio for antenna
// tuning. Accepted values: 16, 32, 64, 128.
func (d *Driver) SetAntennaDivider(div int) error {
	if err := d.ready(); err != nil {
		return err
	}
	code, ok := dividerCode(div)
	if !ok {
		return &ValidationError{Field: "antenna divider", Value: div, Allowed: "16, 32, 64 or 128"}
	}
	_, err := d.conn.ReadModifyWrite(d.addr, regInterrupt, maskDivider, shiftDivider, code)
	return err
}

// SetTuningCaps sets the antenna tuning capacitance. pf is clamped to
// the hardware's 0..120 pF range in 8 pF steps, not validated.
func (d *Driver) SetTuningCaps(pf int) error {
	if err := d.ready(); err != nil {
		return err
	}
	_, err := d.conn.ReadModifyWrite(d.addr, regDisplayTuning, maskTuningCaps, 0, tuningSteps(pf))
	return err
}

// SetIRQOutputSource routes one oscillator to the IRQ pin, or none to
// restore interrupt signalling. The field is written whole, so selecting
// one source clears the others.
func (d *Driver) SetIRQOutputSource(src IRQSource) error {
	if err := d.ready(); err != nil {
		return err
	}
	_, err := d.conn.ReadModifyWrite(d.addr, regDisplayTuning, maskOscDisplay, shiftOscDisplay, uint8(src))
	return err
}

// ClearStatistics resets the accumulated strike statistics by pulsing the
// clear bit high, low, high.
func (d *Driver) ClearStatistics() error {
	if err := d.ready(); err != nil {
		return err
	}
	for _, v := range []uint8{1, 0, 1} {
		if _, err := d.conn.ReadModifyWrite(d.addr, regStatistics, maskClearStat, shiftClearStat, v); err != nil {
			return err
		}
	}
	return nil
}

// ReadInterruptSource reads and classifies the pending interrupt. The
// register needs roughly 2 ms after the IRQ edge before it is valid;
// settle > 0 waits that long first. Reading clears the interrupt.
func (d *Driver) ReadInterruptSource(settle time.Duration) (EventKind, uint8, error) {
	if err := d.ready(); err != nil {
		return KindNone, 0, err
	}
	if settle > 0 {
		d.sleep(settle)
	}
	code, err := d.conn.FieldGet(d.addr, regInterrupt, maskIntSource, 0)
	if err != nil {
		return KindNone, 0, err
	}
	return classifyInterrupt(code), code, nil
}

// ReadDistanceKm reads the estimated storm front distance. 63 means out
// of range, 1 means overhead.
func (d *Driver) ReadDistanceKm() (int, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	v, err := d.conn.FieldGet(d.addr, regDistance, 0x3F, 0)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// ReadEnergyRaw reads the 21-bit single-event energy value. It has no
// physical unit.
func (d *Driver) ReadEnergyRaw() (uint32, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	b, err := d.conn.ReadRegs(d.addr, regEnergyLSB, 3)
	if err != nil {
		return 0, err
	}
	return energyFromBytes(b[0], b[1], b[2]), nil
}

// ReadEvent reads the pending interrupt and, for lightning, the distance
// and energy that go with it. Returns nil when no interrupt is pending.
func (d *Driver) ReadEvent(settle time.Duration) (*Event, error) {
	kind, code, err := d.ReadInterruptSource(settle)
	if err != nil {
		return nil, err
	}
	if kind == KindNone {
		return nil, nil
	}
	ev := &Event{Timestamp: d.now(), Kind: kind, SrcCode: code}
	if kind == KindLightning {
		dist, err := d.ReadDistanceKm()
		if err != nil {
			return nil, err
		}
		energy, err := d.ReadEnergyRaw()
		if err != nil {
			return nil, err
		}
		ev.DistanceKm = dist
		ev.Energy = energy
	}
	return ev, nil
}

// Status is a decoded snapshot of the sensor's configuration registers.
// MinStrikes is 0 if the register holds a code outside the documented
// mapping.
type Status struct {
	PowerDown        bool
	Indoor           bool
	AFEGain          uint8
	NoiseFloor       int
	Watchdog         int
	SpikeRejection   int
	MinStrikes       int
	DisturbersMasked bool
	Divider          int
	TuningSteps      int
	TuningCapPF      int
}

// ReadStatus reads back the configuration registers and decodes them.
func (d *Driver) ReadStatus() (Status, error) {
	if err := d.ready(); err != nil {
		return Status{}, err
	}
	regs, err := d.conn.ReadRegs(d.addr, regAFEGain, 4)
	if err != nil {
		return Status{}, err
	}
	disp, err := d.conn.ReadReg(d.addr, regDisplayTuning)
	if err != nil {
		return Status{}, err
	}

	gain := (regs[0] & maskAFEGain) >> shiftAFEGain
	steps := int(disp & maskTuningCaps)
	minStrikes, _ := minStrikesFromCode((regs[2] & maskMinStrikes) >> shiftMinStrikes)
	return Status{
		PowerDown:        regs[0]&maskPowerDown != 0,
		Indoor:           gain == afeGainIndoor,
		AFEGain:          gain,
		NoiseFloor:       int((regs[1] & maskNoiseFloor) >> shiftNoiseFloor),
		Watchdog:         int(regs[1] & maskWatchdog),
		SpikeRejection:   int(regs[2] & maskSpikeRej),
		MinStrikes:       minStrikes,
		DisturbersMasked: regs[3]&maskDisturber != 0,
		Divider:          dividerFromCode((regs[3] & maskDivider) >> shiftDivider),
		TuningSteps:      steps,
		TuningCapPF:      steps * 8,
	}, nil
}
