// Package sondehub uploads decoded balloon telemetry to the SondeHub
// amateur tracking database.
package sondehub

import (
	"time"

	"wsprbridge/internal/telemetry"
	"wsprbridge/internal/wspr"
)

// Modulation reported for every WSPR derived record
const Modulation = "WSPR"

// Software identifies the uploader
type Software struct {
	Name    string
	Version string
}

// Station describes the flight as shown on the tracker map
type Station struct {
	Payload string // payload_callsign
	Type    string
	Comment string
	Detail  string
	Device  string
}

// TelemetryPayload is one amateur telemetry record
type TelemetryPayload struct {
	Dev              bool     `json:"dev,omitempty"`
	SoftwareName     string   `json:"software_name"`
	SoftwareVersion  string   `json:"software_version"`
	UploaderCallsign string   `json:"uploader_callsign"`
	Frequency        float64  `json:"frequency"` // MHz
	SNR              *int     `json:"snr,omitempty"`
	Modulation       string   `json:"modulation"`
	Comment          string   `json:"comment"`
	Detail           string   `json:"detail"`
	Device           string   `json:"device,omitempty"`
	Type             string   `json:"type"`
	TimeReceived     string   `json:"time_received"`
	Datetime         string   `json:"datetime"`
	PayloadCallsign  string   `json:"payload_callsign"`
	Lat              float64  `json:"lat"`
	Lon              float64  `json:"lon"`
	Alt              int      `json:"alt"`
	Batt             *float64 `json:"batt,omitempty"`
	Sats             *int     `json:"sats,omitempty"`
	GPS              *int     `json:"gps,omitempty"`
	Temp             *int     `json:"temp,omitempty"`
	VelH             *float64 `json:"vel_h,omitempty"`
}

// NewTelemetryPayload maps a decoded record heard by one receiver
func NewTelemetryPayload(tel telemetry.Telemetry, station Station, rx wspr.Receiver, sw Software) TelemetryPayload {
	ts := tel.Time.UTC().Format(time.RFC3339Nano)
	snr := rx.SNR

	return TelemetryPayload{
		SoftwareName:     sw.Name,
		SoftwareVersion:  sw.Version,
		UploaderCallsign: rx.Callsign,
		Frequency:        rx.Frequency / 1e6,
		SNR:              &snr,
		Modulation:       Modulation,
		Comment:          station.Comment,
		Detail:           station.Detail,
		Device:           station.Device,
		Type:             station.Type,
		TimeReceived:     ts,
		Datetime:         ts,
		PayloadCallsign:  station.Payload,
		Lat:              tel.Latitude,
		Lon:              tel.Longitude,
		Alt:              tel.Altitude,
		Batt:             tel.Voltage,
		Sats:             flag(tel.Satellites),
		GPS:              flag(tel.GPSLocked),
		Temp:             tel.Temperature,
		VelH:             tel.Speed,
	}
}

func flag(b *bool) *int {
	if b == nil {
		return nil
	}
	v := 0
	if *b {
		v = 1
	}
	return &v
}
