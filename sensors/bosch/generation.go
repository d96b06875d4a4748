package bosch

import (
	"fmt"
	"time"
)

type family int

const (
	family388 family = iota
	family280
)

// Generation selects the register map, calibration layout and compensation
// formulas of a sensor family. The values are BMP388, BMP280 and BME280.
type Generation interface {
	fmt.Stringer
	params() *generation
}

type generation struct {
	name     string
	family   family
	idReg    byte
	ids      []byte
	resetReg byte
	layout   layout
	humidity bool
	settle   time.Duration // after soft reset
}

func (g *generation) String() string { return g.name }
func (g *generation) params() *generation { return g }
func (g *generation) identifies(id byte) bool {
	for _, v := range g.ids {
		if v == id {
			return true
		}
	}
	return false
}

var (
	// BMP388 covers the BMP388 and the register compatible BMP390.
	BMP388 Generation = &generation{
		name:     "BMP388",
		family:   family388,
		idReg:    reg388ChipID,
		ids:      []byte{ChipID388, ChipID390},
		resetReg: reg388Cmd,
		layout:   layout388,
		settle:   2 * time.Millisecond,
	}

	// BMP280 accepts the engineering sample ids 0x56 and 0x57 as well.
	BMP280 Generation = &generation{
		name:     "BMP280",
		family:   family280,
		idReg:    reg280ChipID,
		ids:      []byte{0x56, 0x57, ChipID280},
		resetReg: reg280Reset,
		layout:   layout280,
		settle:   2 * time.Millisecond,
	}

	BME280 Generation = &generation{
		name:     "BME280",
		family:   family280,
		idReg:    reg280ChipID,
		ids:      []byte{ChipIDBME},
		resetReg: reg280Reset,
		layout:   layoutBME,
		humidity: true,
		settle:   2 * time.Millisecond,
	}
)

// Both families use the same two bit power mode field. 0b01 and 0b10 both
// mean forced.
func encodePower(m PowerMode) byte {
	switch m {
	case Forced:
		return 0x01
	case Normal:
		return 0x03
	}
	return 0x00
}

func decodePower(bits byte) PowerMode {
	switch bits & 0x03 {
	case 0x01, 0x02:
		return Forced
	case 0x03:
		return Normal
	}
	return Sleep
}

// osr280 maps an oversampling setting onto the BMP280 field, where 0 skips the
// measurement and 1..5 are x1..x16.
func osr280(o Oversampling, enabled bool) byte {
	if !enabled {
		return 0
	}
	v := byte(o) + 1
	if v > osr280Max {
		v = osr280Max
	}
	return v
}

func filter280(c FilterCoefficient) byte {
	v := byte(c)
	if v > filter280Max {
		v = filter280Max
	}
	return v
}
