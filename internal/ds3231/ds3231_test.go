package ds3231

import (
	"testing"
	"time"

	"github.com/sweeney/lightning-sensor/internal/i2cbus"
)

func newTestDevice(t *testing.T) (*Device, *i2cbus.FakeBus) {
	t.Helper()
	bus := i2cbus.NewFakeBus()
	return New(i2cbus.New(bus, i2cbus.Policy{Retries: 2}), DefaultAddr), bus
}

func seedClock(bus *i2cbus.FakeBus, b ...uint8) {
	for i, v := range b {
		bus.Seed(DefaultAddr, uint8(i), v)
	}
}

func TestReadTime24Hour(t *testing.T) {
	d, bus := newTestDevice(t)
	seedClock(bus, 0x45, 0x30, 0x14, 0x06, 0x21, 0x06, 0x24)

	got, err := d.ReadTime()
	if err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	want := time.Date(2024, 6, 21, 14, 30, 45, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ReadTime = %v, want %v", got, want)
	}
}

func TestReadTime12Hour(t *testing.T) {
	tests := []struct {
		name    string
		hourReg uint8
		want    int
	}{
		{"2:00 AM", hour12Mode | 0x02, 2},
		{"2:00 PM", hour12Mode | hour12PM | 0x02, 14},
		{"12:00 AM", hour12Mode | 0x12, 0},
		{"12:00 PM", hour12Mode | hour12PM | 0x12, 12},
		{"11:00 PM", hour12Mode | hour12PM | 0x11, 23},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, bus := newTestDevice(t)
			seedClock(bus, 0x00, 0x00, tt.hourReg, 0x01, 0x01, 0x01, 0x24)

			got, err := d.ReadTime()
			if err != nil {
				t.Fatalf("ReadTime: %v", err)
			}
			if got.Hour() != tt.want {
				t.Errorf("hour = %d, want %d", got.Hour(), tt.want)
			}
		})
	}
}

func TestSetTimeWritesBCDAndClearsFlag(t *testing.T) {
	d, bus := newTestDevice(t)
	bus.Seed(DefaultAddr, regStatus, statusOSF|0x08)

	if err := d.SetTime(time.Date(2024, 6, 21, 14, 30, 45, 0, time.UTC)); err != nil {
		t.Fatalf("SetTime: %v", err)
	}

	want := []uint8{0x45, 0x30, 0x14, 0x06, 0x21, 0x06, 0x24}
	for reg, v := range want {
		if got := bus.Get(DefaultAddr, uint8(reg)); got != v {
			t.Errorf("reg 0x%02x = 0x%02x, want 0x%02x", reg, got, v)
		}
	}
	if got := bus.Get(DefaultAddr, regStatus); got != 0x08 {
		t.Errorf("status = 0x%02x, want lost-power flag cleared and bit 3 kept", got)
	}
}

func TestSetTimeConvertsToUTC(t *testing.T) {
	d, bus := newTestDevice(t)
	loc := time.FixedZone("CEST", 2*60*60)

	if err := d.SetTime(time.Date(2024, 6, 21, 16, 0, 0, 0, loc)); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	if got := bus.Get(DefaultAddr, 0x02); got != 0x14 {
		t.Errorf("hour reg = 0x%02x, want 0x14 (14:00 UTC)", got)
	}
}

func TestReadTimeRoundTrip(t *testing.T) {
	d, _ := newTestDevice(t)
	want := time.Date(2031, 12, 31, 23, 59, 59, 0, time.UTC)

	if err := d.SetTime(want); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	got, err := d.ReadTime()
	if err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}

func TestLostPower(t *testing.T) {
	d, bus := newTestDevice(t)

	lost, err := d.LostPower()
	if err != nil {
		t.Fatalf("LostPower: %v", err)
	}
	if lost {
		t.Error("LostPower = true with clear status register")
	}

	bus.Seed(DefaultAddr, regStatus, statusOSF)
	lost, err = d.LostPower()
	if err != nil {
		t.Fatalf("LostPower: %v", err)
	}
	if !lost {
		t.Error("LostPower = false with the flag set")
	}

	if err := d.ClearLostPower(); err != nil {
		t.Fatalf("ClearLostPower: %v", err)
	}
	lost, err = d.LostPower()
	if err != nil {
		t.Fatalf("LostPower: %v", err)
	}
	if lost {
		t.Error("flag survived ClearLostPower")
	}
}

func TestTemperatureC(t *testing.T) {
	tests := []struct {
		msb, lsb uint8
		want     float64
	}{
		{0x19, 0x00, 25.0},
		{0x19, 0xC0, 25.75},
		{0x19, 0x40, 25.25},
		{0x00, 0x00, 0.0},
		// Negative temperatures are two's complement across the whole
		// 10-bit value, so the positive fraction still adds up right.
		{0xFF, 0xC0, -0.25},
		{0xE7, 0x40, -24.75},
	}
	for _, tt := range tests {
		d, bus := newTestDevice(t)
		bus.Seed(DefaultAddr, regTempMSB, tt.msb)
		bus.Seed(DefaultAddr, regTempMSB+1, tt.lsb)

		got, err := d.TemperatureC()
		if err != nil {
			t.Fatalf("TemperatureC: %v", err)
		}
		if got != tt.want {
			t.Errorf("TemperatureC(0x%02x, 0x%02x) = %v, want %v", tt.msb, tt.lsb, got, tt.want)
		}
	}
}

func TestBCDHelpers(t *testing.T) {
	for v := 0; v < 100; v++ {
		if got := bcdToDec(decToBcd(v)); got != v {
			t.Fatalf("bcd round trip of %d = %d", v, got)
		}
	}
}
