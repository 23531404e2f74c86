package aprs

import (
	"fmt"
	"math"

	"wsprbridge/internal/telemetry"
)

// Packet constants
const (
	ToCall       = "APLRG1"
	Path         = "TCPIP,qAC"
	SymbolTable  = '/'
	SymbolCode   = 'O' // balloon
	metersPerKt  = 0.514444
	maxAltitude  = 999999
	maxSpeedKnot = 999
)

// PositionPacket builds an uncompressed position report for a balloon:
//
//	PAYLOAD>APLRG1,TCPIP,qAC:!ddmm.mmN/dddmm.mmWO000/sss/A=ffffff/comment
func PositionPacket(payload string, tel telemetry.Telemetry, comment string) string {
	lat, lon := FormatPosition(tel.Latitude, tel.Longitude)

	speed := 0
	if tel.Speed != nil {
		speed = clamp(int(math.Round(*tel.Speed/metersPerKt)), 0, maxSpeedKnot)
	}
	feet := clamp(tel.AltitudeFeet(), 0, maxAltitude)

	return fmt.Sprintf("%s>%s,%s:!%s%c%s%c%03d/%03d/A=%06d/%s",
		payload, ToCall, Path,
		lat, SymbolTable, lon, SymbolCode,
		0, speed, feet, comment)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
