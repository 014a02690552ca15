// pkg/math/atmosphere.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

// ISA constants
const (
	seaLevelTemperatureK = 288.15
	lapseRateKPerFt      = 0.0019812
	tropopauseFt         = 36089
	tropopauseTempK      = 216.65
	seaLevelSoundKts     = 661.47
)

// ISATemperatureK returns the standard-atmosphere temperature at the
// given pressure altitude.
func ISATemperatureK(altitudeFt float32) float32 {
	if altitudeFt >= tropopauseFt {
		return tropopauseTempK
	}
	return seaLevelTemperatureK - lapseRateKPerFt*altitudeFt
}

// SpeedOfSoundKts returns the speed of sound in knots at the given
// altitude in the standard atmosphere.
func SpeedOfSoundKts(altitudeFt float32) float32 {
	return seaLevelSoundKts * Sqrt(ISATemperatureK(altitudeFt)/seaLevelTemperatureK)
}

// MachToTAS converts a Mach number to true airspeed in knots at the
// given altitude.
func MachToTAS(mach float32, altitudeFt float32) float32 {
	return mach * SpeedOfSoundKts(altitudeFt)
}
