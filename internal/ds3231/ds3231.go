// Package ds3231 reads and sets the DS3231 real-time clock that shares
// the I2C bus with the lightning sensor. Times are handled in UTC.
package ds3231

import (
	"fmt"
	"time"

	"github.com/sweeney/lightning-sensor/internal/i2cbus"
)

// DefaultAddr is the DS3231's fixed I2C address.
const DefaultAddr = 0x68

const (
	regSeconds = 0x00
	regControl = 0x0E
	regStatus  = 0x0F
	regTempMSB = 0x11

	// Oscillator-stop flag in the status register. Set while the clock
	// was unpowered, meaning the stored time is suspect.
	statusOSF = 0x80

	hour12Mode = 0x40
	hour12PM   = 0x20
)

// Device is one DS3231 on one bus.
type Device struct {
	conn *i2cbus.Conn
	addr uint16
}

func New(conn *i2cbus.Conn, addr uint16) *Device {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &Device{conn: conn, addr: addr}
}

// ReadTime returns the clock's current time. Both 12- and 24-hour
// register modes are decoded; the two-digit year counts from 2000.
func (d *Device) ReadTime() (time.Time, error) {
	b, err := d.conn.ReadRegs(d.addr, regSeconds, 7)
	if err != nil {
		return time.Time{}, fmt.Errorf("read clock: %w", err)
	}

	sec := bcdToDec(b[0] & 0x7F)
	min := bcdToDec(b[1] & 0x7F)

	var hour int
	if b[2]&hour12Mode != 0 {
		hour = bcdToDec(b[2]&0x1F) % 12
		if b[2]&hour12PM != 0 {
			hour += 12
		}
	} else {
		hour = bcdToDec(b[2] & 0x3F)
	}

	day := bcdToDec(b[4] & 0x3F)
	month := bcdToDec(b[5] & 0x1F)
	year := 2000 + bcdToDec(b[6])

	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC), nil
}

// SetTime writes t to the clock in 24-hour mode and clears the
// lost-power flag. Sub-second precision is dropped.
func (d *Device) SetTime(t time.Time) error {
	t = t.UTC()
	b := []byte{
		decToBcd(t.Second()),
		decToBcd(t.Minute()),
		decToBcd(t.Hour()),
		uint8(t.Weekday()) + 1,
		decToBcd(t.Day()),
		decToBcd(int(t.Month())),
		decToBcd(t.Year() % 100),
	}
	if err := d.conn.WriteRegs(d.addr, regSeconds, b); err != nil {
		return fmt.Errorf("set clock: %w", err)
	}
	return d.ClearLostPower()
}

// LostPower reports whether the oscillator stopped since the flag was
// last cleared.
func (d *Device) LostPower() (bool, error) {
	st, err := d.conn.ReadReg(d.addr, regStatus)
	if err != nil {
		return false, fmt.Errorf("read status: %w", err)
	}
	return st&statusOSF != 0, nil
}

// ClearLostPower resets the oscillator-stop flag, keeping the other
// status bits.
func (d *Device) ClearLostPower() error {
	st, err := d.conn.ReadReg(d.addr, regStatus)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if err := d.conn.WriteReg(d.addr, regStatus, st&^statusOSF); err != nil {
		return fmt.Errorf("clear lost-power flag: %w", err)
	}
	return nil
}

// TemperatureC returns the die temperature in 0.25 degree steps. The
// sensor updates it every 64 seconds.
func (d *Device) TemperatureC() (float64, error) {
	b, err := d.conn.ReadRegs(d.addr, regTempMSB, 2)
	if err != nil {
		return 0, fmt.Errorf("read temperature: %w", err)
	}
	return float64(int8(b[0])) + float64(b[1]>>6)*0.25, nil
}

func bcdToDec(v uint8) int {
	return int(v>>4)*10 + int(v&0x0F)
}

func decToBcd(v int) uint8 {
	return uint8(v/10<<4 | v%10)
}
