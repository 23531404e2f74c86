// Package telemetry recovers balloon telemetry smuggled inside pairs of WSPR
// beacon observations.
//
// Everything in this package is a pure function of its inputs: no I/O, no
// shared state, safe for concurrent use.
package telemetry

import "fmt"

// Decode decodes a correlated pair with the transmitter's format and applies
// Validate. Structural problems come back as *DecodeError; sentinel
// positions as *NoFixError.
func Decode(tx Transmitter, pair PacketPair) (Telemetry, error) {
	var (
		tel Telemetry
		err error
	)

	switch tx.Format {
	case FormatZachTek:
		tel, err = DecodeZachTek(pair)
	case FormatTraquito:
		tel, err = DecodeTraquito(pair, tx.Calibration)
	default:
		return Telemetry{}, fmt.Errorf("unsupported format %q", tx.Format)
	}
	if err != nil {
		return Telemetry{}, err
	}

	if err := Validate(tel); err != nil {
		return Telemetry{}, err
	}
	return tel, nil
}

// Process runs the whole chain for two raw observations: CorrelateFor,
// then Decode
func Process(tx Transmitter, identity, telemetry RawSpot) (Telemetry, error) {
	pair, err := CorrelateFor(tx, identity, telemetry)
	if err != nil {
		return Telemetry{}, err
	}
	return Decode(tx, pair)
}
