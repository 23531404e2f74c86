package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// Format identifies the tracker firmware that produced a frame
type Format string

// Supported firmware formats
const (
	FormatZachTek  Format = "zachtek"  // altitude in the power field of two plain beacons
	FormatTraquito Format = "traquito" // telemetry packed into callsign, locator and power
)

// ParseFormat accepts the format names used in tracker settings files
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zachtek", "zachtek1":
		return FormatZachTek, nil
	case "traquito", "jetpack", "u4b":
		return FormatTraquito, nil
	}
	return "", fmt.Errorf("unknown tracker format %q", s)
}

// RawSpot is one beacon observation as normalized by a spot source
type RawSpot struct {
	Time      time.Time
	Band      string
	Callsign  string
	Locator   string
	Latitude  float64
	Longitude float64
	Power     string // power marker in dBm, e.g. "23"
	RawTime   string // source time string, used to look up receivers
}

// PacketPair is an identity observation and the telemetry observation sent
// one slot later by the same transmitter
type PacketPair struct {
	Identity  RawSpot
	Telemetry RawSpot
}

// Telemetry is one decoded frame. Optional fields are nil when the format
// does not carry them.
type Telemetry struct {
	Format    Format
	Time      time.Time
	Grid      string
	Latitude  float64
	Longitude float64
	Altitude  int // meters

	Temperature *int     // °C
	Voltage     *float64 // volts
	Speed       *float64 // horizontal, m/s
	GPSLocked   *bool
	Satellites  *bool
}

// AltitudeFeet returns the altitude converted to whole feet
func (t Telemetry) AltitudeFeet() int {
	return int(float64(t.Altitude)*3.28084 + 0.5)
}
