package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestCorrelate tests the exact slot separation rule
func TestCorrelate(t *testing.T) {
	tests := []struct {
		name    string
		gap     time.Duration
		wantErr bool
	}{
		{"Exactly one slot", 120 * time.Second, false},
		{"One second early", 119 * time.Second, true},
		{"One second late", 121 * time.Second, true},
		{"Half a second late", 120*time.Second + 500*time.Millisecond, true},
		{"Same time", 0, true},
		{"Reversed order", -120 * time.Second, true},
		{"Two slots", 240 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := RawSpot{Time: frameStart, Callsign: "N0CALL"}
			telemetry := RawSpot{Time: frameStart.Add(tt.gap), Callsign: "N0CALL"}

			pair, err := Correlate(identity, telemetry)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, identity, pair.Identity)
				assert.Equal(t, telemetry, pair.Telemetry)
				return
			}

			var stale *StalePairError
			require.True(t, errors.As(err, &stale))
			assert.Equal(t, tt.gap, stale.Gap)
			assert.True(t, IsRejection(err))
		})
	}
}

// TestCorrelate_RejectsOtherOffsets checks rejection for any whole second
// offset other than 120
func TestCorrelate_RejectsOtherOffsets(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		offset := rapid.Int64Range(-86400, 86400).Filter(func(v int64) bool { return v != 120 }).Draw(t, "offset")

		identity := RawSpot{Time: frameStart}
		telemetry := RawSpot{Time: frameStart.Add(time.Duration(offset) * time.Second)}

		_, err := Correlate(identity, telemetry)
		var stale *StalePairError
		assert.True(t, errors.As(err, &stale))
	})
}

// TestCorrelateFor tests transmitter identity checks
func TestCorrelateFor(t *testing.T) {
	zt := Transmitter{Callsign: "N0CALL", Format: FormatZachTek}
	tq := Transmitter{Callsign: "N0CALL", Format: FormatTraquito, FlightID1: 'Q', FlightID3: '5'}

	tests := []struct {
		name      string
		tx        Transmitter
		identity  string
		telemetry string
		wantRole  string
	}{
		{"ZachTek same callsign", zt, "N0CALL", "N0CALL", ""},
		{"ZachTek case differs", zt, "n0call", "N0CALL", ""},
		{"ZachTek foreign telemetry", zt, "N0CALL", "K1ABC", "telemetry"},
		{"Foreign identity", zt, "K1ABC", "N0CALL", "identity"},
		{"Traquito channel match", tq, "N0CALL", "QA5BCD", ""},
		{"Traquito lowercase channel", tq, "N0CALL", "qz5xyz", ""},
		{"Traquito wrong first id", tq, "N0CALL", "0A5BCD", "telemetry"},
		{"Traquito wrong third id", tq, "N0CALL", "QA6BCD", "telemetry"},
		{"Traquito short callsign", tq, "N0CALL", "Q5", "telemetry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := RawSpot{Time: frameStart, Callsign: tt.identity}
			telemetry := RawSpot{Time: frameStart.Add(FrameSeparation), Callsign: tt.telemetry}

			_, err := CorrelateFor(tt.tx, identity, telemetry)
			if tt.wantRole == "" {
				assert.NoError(t, err)
				return
			}

			var mismatch *IdentityMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, tt.wantRole, mismatch.Role)
			assert.True(t, IsRejection(err))
		})
	}
}

// TestCorrelateFor_StaleAfterIdentity tests that timing is still checked
// once identities match
func TestCorrelateFor_StaleAfterIdentity(t *testing.T) {
	tx := Transmitter{Callsign: "N0CALL", Format: FormatZachTek}
	identity := RawSpot{Time: frameStart, Callsign: "N0CALL"}
	telemetry := RawSpot{Time: frameStart.Add(10 * time.Minute), Callsign: "N0CALL"}

	_, err := CorrelateFor(tx, identity, telemetry)
	var stale *StalePairError
	assert.True(t, errors.As(err, &stale))
}

// TestFlightIDPattern tests the SQL LIKE rendering of a channel
func TestFlightIDPattern(t *testing.T) {
	assert.Equal(t, "Q_5%", FlightIDPattern('q', '5'))
	assert.Equal(t, "0_1%", FlightIDPattern('0', '1'))
}
