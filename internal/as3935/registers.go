package as3935

import "time"

// Register map. All config fields are sub-byte bitfields, written through
// read-modify-write so neighboring fields survive.
const (
	regAFEGain       = 0x00 // gain preset bits 5:1, power-down bit 0
	regThresholds    = 0x01 // noise floor bits 6:4, watchdog bits 3:0
	regStatistics    = 0x02 // clear-stat bit 6, min strikes bits 5:4, spike rejection bits 3:0
	regInterrupt     = 0x03 // divider bits 7:6, disturber mask bit 5, source bits 3:0
	regEnergyLSB     = 0x04
	regEnergyMID     = 0x05
	regEnergyMSB     = 0x06 // only bits 4:0 carry energy
	regDistance      = 0x07 // bits 5:0
	regDisplayTuning = 0x08 // oscillator display bits 7:5, tuning caps bits 3:0
	regPresetDefault = 0x3C
	regCalibRCO      = 0x3D

	// directCommand written to regPresetDefault or regCalibRCO triggers
	// the respective action.
	directCommand = 0x96
)

const (
	maskPowerDown = 0x01

	maskAFEGain  = 0x3E
	shiftAFEGain = 1

	maskNoiseFloor  = 0x70
	shiftNoiseFloor = 4
	maskWatchdog    = 0x0F

	maskClearStat   = 0x40
	shiftClearStat  = 6
	maskMinStrikes  = 0x30
	shiftMinStrikes = 4
	maskSpikeRej    = 0x0F

	maskDivider    = 0xC0
	shiftDivider   = 6
	maskDisturber  = 0x20
	shiftDisturber = 5
	maskIntSource  = 0x0F

	maskOscDisplay  = 0xE0
	shiftOscDisplay = 5
	maskTuningCaps  = 0x0F
)

// AFE gain presets from the datasheet.
const (
	afeGainIndoor  = 0b10010
	afeGainOutdoor = 0b01110
)

// Interrupt source bits of regInterrupt.
const (
	srcNoise     = 0x01
	srcDisturber = 0x04
	srcLightning = 0x08
)

// EventKind identifies what the sensor reported an interrupt for.
type EventKind string

const (
	KindNone      EventKind = ""
	KindLightning EventKind = "lightning"
	KindDisturber EventKind = "disturber"
	KindNoise     EventKind = "noise"
)

// Event is one decoded sensor interrupt. DistanceKm and Energy are only
// populated for lightning; a distance of 63 means out of range.
type Event struct {
	Timestamp  time.Time
	Kind       EventKind
	DistanceKm int
	Energy     uint32
	SrcCode    uint8
}

// classifyInterrupt maps a raw interrupt source code to an event kind.
// If multiple bits are set, lightning wins over disturber over noise.
func classifyInterrupt(code uint8) EventKind {
	switch {
	case code&srcLightning != 0:
		return KindLightning
	case code&srcDisturber != 0:
		return KindDisturber
	case code&srcNoise != 0:
		return KindNoise
	}
	return KindNone
}

func minStrikesCode(n int) (uint8, bool) {
	switch n {
	case 1:
		return 0b00, true
	case 5:
		return 0b01, true
	case 9:
		return 0b10, true
	case 16:
		return 0b11, true
	}
	return 0, false
}

// minStrikesFromCode is the inverse mapping. ok is false for anything
// that is not one of the four codes; unmapped values are never guessed.
func minStrikesFromCode(code uint8) (int, bool) {
	switch code {
	case 0b00:
		return 1, true
	case 0b01:
		return 5, true
	case 0b10:
		return 9, true
	case 0b11:
		return 16, true
	}
	return 0, false
}

func dividerCode(div int) (uint8, bool) {
	switch div {
	case 16:
		return 0b00, true
	case 32:
		return 0b01, true
	case 64:
		return 0b10, true
	case 128:
		return 0b11, true
	}
	return 0, false
}

func dividerFromCode(code uint8) int {
	return [4]int{16, 32, 64, 128}[code&0b11]
}

// tuningSteps converts a capacitance in pF to register steps of 8 pF,
// clamped to the 0..15 the hardware offers.
func tuningSteps(pf int) uint8 {
	steps := pf / 8
	if steps < 0 {
		steps = 0
	}
	if steps > 15 {
		steps = 15
	}
	return uint8(steps)
}

// energyFromBytes assembles the 21-bit lightning energy value.
func energyFromBytes(lsb, mid, msb uint8) uint32 {
	return uint32(msb&0x1F)<<16 | uint32(mid)<<8 | uint32(lsb)
}
