package telemetry

import (
	"strings"
	"time"
)

// FrameSeparation is the exact gap between the identity and telemetry
// transmissions of one frame
const FrameSeparation = 120 * time.Second

// Correlate pairs two observations when the telemetry one follows the
// identity one by exactly FrameSeparation
func Correlate(identity, telemetry RawSpot) (PacketPair, error) {
	gap := telemetry.Time.Sub(identity.Time)
	if gap != FrameSeparation {
		return PacketPair{}, &StalePairError{Gap: gap}
	}
	return PacketPair{Identity: identity, Telemetry: telemetry}, nil
}

// CorrelateFor checks that both observations come from tx and then applies
// Correlate. The identity observation always carries tx.Callsign; the
// telemetry one carries it too for ZachTek, and the flight channel prefix
// for Traquito.
func CorrelateFor(tx Transmitter, identity, telemetry RawSpot) (PacketPair, error) {
	if !strings.EqualFold(identity.Callsign, tx.Callsign) {
		return PacketPair{}, &IdentityMismatchError{Role: "identity", Callsign: identity.Callsign, Want: tx.Callsign}
	}

	switch tx.Format {
	case FormatTraquito:
		if !MatchesFlightID(telemetry.Callsign, tx.FlightID1, tx.FlightID3) {
			return PacketPair{}, &IdentityMismatchError{
				Role:     "telemetry",
				Callsign: telemetry.Callsign,
				Want:     FlightIDPattern(tx.FlightID1, tx.FlightID3),
			}
		}
	default:
		if !strings.EqualFold(telemetry.Callsign, tx.Callsign) {
			return PacketPair{}, &IdentityMismatchError{Role: "telemetry", Callsign: telemetry.Callsign, Want: tx.Callsign}
		}
	}

	return Correlate(identity, telemetry)
}

// MatchesFlightID reports whether callsign starts with id1, any character,
// then id3
func MatchesFlightID(callsign string, id1, id3 byte) bool {
	if len(callsign) < 3 {
		return false
	}
	return upper(callsign[0]) == upper(id1) && upper(callsign[2]) == upper(id3)
}

// FlightIDPattern renders the flight channel as a SQL LIKE pattern
func FlightIDPattern(id1, id3 byte) string {
	return string([]byte{upper(id1), '_', upper(id3), '%'})
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
