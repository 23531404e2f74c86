// Package aprs formats decoded telemetry for the APRS-IS network and sends it.
package aprs

import (
	"fmt"
	"math"
)

// FormatPosition converts decimal degrees to the fixed width APRS
// uncompressed position fields: ddmm.mmN and dddmm.mmE.
// Input is clamped to the valid range.
func FormatPosition(lat, lon float64) (string, string) {
	lat = math.Max(-90, math.Min(90, lat))
	lon = math.Max(-180, math.Min(180, lon))

	latHemi := byte('N')
	if lat < 0 {
		latHemi = 'S'
	}
	lonHemi := byte('E')
	if lon < 0 {
		lonHemi = 'W'
	}

	latDeg, latMin := degreesMinutes(lat)
	lonDeg, lonMin := degreesMinutes(lon)

	return fmt.Sprintf("%02d%s%c", latDeg, latMin, latHemi),
		fmt.Sprintf("%03d%s%c", lonDeg, lonMin, lonHemi)
}

// degreesMinutes splits |coord| into whole degrees and minutes rendered as
// mm.mm
func degreesMinutes(coord float64) (int, string) {
	abs := math.Abs(coord)
	deg := math.Floor(abs)
	minutes := (abs - deg) * 60

	s := fmt.Sprintf("%05.2f", minutes)
	// 59.996 rounds to "60.00"
	if s[0] == '6' {
		return int(deg) + 1, "00.00"
	}
	return int(deg), s
}
