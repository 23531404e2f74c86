package telemetry

import (
	"strconv"
	"strings"
)

// DecodeZachTek decodes a ZachTek frame. The identity and telemetry beacons
// each carry a power marker that is reused as an altitude digit; position
// is the 4 character locator as resolved by the spot source.
func DecodeZachTek(pair PacketPair) (Telemetry, error) {
	p1, err := zachTekPower(pair.Identity.Power, "identity power")
	if err != nil {
		return Telemetry{}, err
	}
	p2, err := zachTekPower(pair.Telemetry.Power, "telemetry power")
	if err != nil {
		return Telemetry{}, err
	}

	altitude := 0
	if !(p1 == ZachTekUnknownDBm && p2 == ZachTekUnknownDBm) {
		altitude = p1*ZachTekCoarseStep + p2*ZachTekFineStep
	}

	return Telemetry{
		Format:    FormatZachTek,
		Time:      pair.Telemetry.Time,
		Grid:      pair.Telemetry.Locator,
		Latitude:  pair.Telemetry.Latitude,
		Longitude: pair.Telemetry.Longitude,
		Altitude:  altitude,
	}, nil
}

// zachTekPower reads a reported power as a plain number; the value is an
// altitude digit, so it need not be a standard WSPR level
func zachTekPower(marker, field string) (int, error) {
	dbm, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(marker), "+"))
	if err != nil {
		return 0, &DecodeError{Format: FormatZachTek, Field: field, Value: marker, Reason: "not numeric", Err: err}
	}
	return dbm, nil
}
