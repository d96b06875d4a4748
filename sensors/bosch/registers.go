// Package bosch provides a driver for Bosch's BMP280/BME280 and BMP388/BMP390 digital pressure & temperature sensors.
// The datasheets can be found here:
// https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bmp388-ds001.pdf
// https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bme280-ds002.pdf
package bosch

import "fmt"

const (
	AddressPrimary   byte = 0x77 // default I2C address
	AddressSecondary byte = 0x76 // SDO pulled to GND
)

// BMP388 / BMP390 registers
const (
	reg388ChipID   byte = 0x00 // useful for checking the connection
	reg388Err      byte = 0x02 // error status register
	reg388Stat     byte = 0x03 // sensor status register
	reg388Press    byte = 0x04 // start of pressure data registers, temperature follows at 0x07
	reg388Temp     byte = 0x07
	reg388IntStat  byte = 0x11
	reg388FifoLen  byte = 0x12 // 2 bytes, little endian
	reg388FifoData byte = 0x14
	reg388FifoWtm  byte = 0x15 // 2 bytes, little endian
	reg388FifoCfg1 byte = 0x17
	reg388FifoCfg2 byte = 0x18
	reg388IntCtrl  byte = 0x19
	reg388PwrCtrl  byte = 0x1B // measurement mode & pressure/temperature sensor power register
	reg388OSR      byte = 0x1C // oversampling settings register
	reg388ODR      byte = 0x1D
	reg388Config   byte = 0x1F // iir filter coefficient, bits 3:1
	reg388Cali     byte = 0x31 // pressure & temperature compensation calibration coefficients
	reg388Cmd      byte = 0x7E // miscellaneous command register
)

// BMP280 / BME280 registers
const (
	reg280Cali     byte = 0x88 // temperature & pressure coefficients, H1 at 0xA1
	reg280ChipID   byte = 0xD0
	reg280Reset    byte = 0xE0
	reg280CaliHum  byte = 0xE1 // humidity coefficients H2..H6
	reg280CtrlHum  byte = 0xF2
	reg280Stat     byte = 0xF3
	reg280CtrlMeas byte = 0xF4 // osrs_t 7:5, osrs_p 4:2, mode 1:0
	reg280Config   byte = 0xF5 // t_sb 7:5, filter 4:2
	reg280Data     byte = 0xF7 // press msb/lsb/xlsb, temp msb/lsb/xlsb, hum msb/lsb
)

const (
	ChipID388 byte = 0x50 // correct response if reading from chip id register
	ChipID390 byte = 0x60
	ChipID280 byte = 0x58
	ChipIDBME byte = 0x60

	cmdSoftReset byte = 0xB6 // command to reset all user configuration
	cmdFifoFlush byte = 0xB0
)

// BMP388 bit positions
const (
	pwrPress      byte = 0x01 // power on pressure sensor
	pwrTemp       byte = 0x02 // power on temperature sensor
	pwrModeShift       = 4
	statCmdReady  byte = 0x10
	statDRDYPress byte = 0x20 // for checking if pressure data is ready
	statDRDYTemp  byte = 0x40 // for checking if temperature data is ready
	intStatFwm    byte = 0x01
	intStatFull   byte = 0x02
	intStatDRDY   byte = 0x08
	errFatal      byte = 0x01
	errCmd        byte = 0x02
	errConf       byte = 0x04
	intOpenDrain  byte = 0x01
	intActiveHigh byte = 0x02
	intLatch      byte = 0x04
	intFwtmEn     byte = 0x08
	intFfullEn    byte = 0x10
	intDRDYEn     byte = 0x40
)

// BMP280 bit positions
const (
	stat280Measuring byte = 0x08
	stat280ImUpdate  byte = 0x01
	meas280ModeMask  byte = 0x03
	meas280PressMask byte = 0x1C
	meas280TempMask  byte = 0xE0
	meas280PressPos       = 2
	meas280TempPos        = 5
	hum280Mask       byte = 0x07
	osr280Max        byte = 0x05 // x16
	filter280Max     byte = 0x04
)

// FIFO configuration and frame header bits
const (
	fifoEnable     byte = 0x01
	fifoStopOnFull byte = 0x02
	fifoTimeEn     byte = 0x04
	fifoPressEn    byte = 0x08
	fifoTempEn     byte = 0x10
	fifoDataSelect      = 3

	fifoSensorFrame  byte = 0x80
	fifoControlFrame byte = 0x40
	fifoCfgError     byte = 0x04
	fifoCfgChange    byte = 0x08
	fifoHdrTime      byte = 0x20
	fifoHdrTemp      byte = 0x10
	fifoHdrPress     byte = 0x04
)

// The difference between forced and normal mode is the sensor goes to sleep after taking a measurement in forced mode.
// Set it to forced if you intend to take measurements sporadically and want to save power.
const (
	Sleep PowerMode = iota
	Forced
	Normal
)

// Increasing sampling rate increases precision but also the wait time for measurements. The datasheet has a table of
// suggested values for oversampling, output data rates, and iir filter coefficients by use case.
// The BMP280 family tops out at 16X.
const (
	Sampling1X Oversampling = iota
	Sampling2X
	Sampling4X
	Sampling8X
	Sampling16X
	Sampling32X
)

// Output data rates in Hz (BMP388 only). If increasing the sampling rates you need to decrease the output data rates,
// else the bmp388 flags a configuration error. In that case keep decreasing the data rate until the bmp is happy.
const (
	Odr200 OutputDataRate = iota
	Odr100
	Odr50
	Odr25
	Odr12p5
	Odr6p25
	Odr3p1
	Odr1p5
	Odr0p78
	Odr0p39
	Odr0p2
	Odr0p1
	Odr0p05
	Odr0p02
	Odr0p01
	Odr0p006
	Odr0p003
	Odr0p0015
)

// IIR filter coefficients, higher values means steadier measurements but slower reaction times.
// The BMP280 family maps register values 0..4 onto off, 2, 4, 8 and 16.
const (
	Coeff0 FilterCoefficient = iota
	Coeff1
	Coeff3
	Coeff7
	Coeff15
	Coeff31
	Coeff63
	Coeff127
)

// Inactive time between measurements in normal mode (BMP280 family only).
const (
	Standby0p5ms StandbyTime = iota
	Standby62p5ms
	Standby125ms
	Standby250ms
	Standby500ms
	Standby1000ms
	Standby10ms
	Standby20ms
)

type PowerMode byte
type Oversampling byte
type OutputDataRate byte
type FilterCoefficient byte
type StandbyTime byte

func (m PowerMode) String() string {
	switch m {
	case Sleep:
		return "sleep"
	case Forced:
		return "forced"
	case Normal:
		return "normal"
	}
	return fmt.Sprintf("PowerMode(%d)", byte(m))
}

func (o Oversampling) String() string {
	if o > Sampling32X {
		return fmt.Sprintf("Oversampling(%d)", byte(o))
	}
	return fmt.Sprintf("x%d", 1<<o)
}
