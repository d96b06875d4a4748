package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const InvalidCpuTemp = float32(-99.0)

// CpuTempPath is the thermal zone read by CpuTempMonitor.
var CpuTempPath = "/sys/class/thermal/thermal_zone0/temp"

type CpuTempUpdateFunc func(cpuTemp float32)

// ReadCpuTemp reads a thermal zone file. Values above 1000 are millidegrees.
func ReadCpuTemp(path string) float32 {
	raw, err := os.ReadFile(path)
	if err != nil {
		return InvalidCpuTemp
	}
	tInt, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return InvalidCpuTemp
	}
	if tInt > 1000 {
		return float32(tInt) / 1000.0
	}
	return float32(tInt)
}

/* CpuTempMonitor reads the board temperature every interval and calls
updater with valid values until quit is closed. Reading the file can hang on
the RPi, so run it in its own goroutine. The barometer daemon exports it next
to the sensor temperature, since the sensor sits close to the SoC on most HATs. */
func CpuTempMonitor(interval time.Duration, quit <-chan struct{}, updater CpuTempUpdateFunc) {
	timer := time.NewTicker(interval)
	defer timer.Stop()
	for {
		if t := ReadCpuTemp(CpuTempPath); IsCPUTempValid(t) {
			updater(t)
		}
		select {
		case <-timer.C:
		case <-quit:
			return
		}
	}
}

// Check if CPU temperature is valid. Assume <= 0 is invalid.
func IsCPUTempValid(cpuTemp float32) bool {
	return cpuTemp > 0
}
