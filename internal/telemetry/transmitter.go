package telemetry

// Calibration holds firmware constants that differ between tracker revisions.
//
// Two firmware revisions disagree on the battery voltage formula: one reports
// (code*10+614)*5/1024 volts, the other subtracts a further 0.96 V. They also
// disagree on whether the speed digit is knots (multiply by 0.514444 to get
// m/s) or already m/s. Which one a given flight runs cannot be told from the
// frame, so both constants are settable per transmitter.
type Calibration struct {
	VoltageOffset float64 // added to the decoded voltage; 0 or -0.96
	SpeedFactor   float64 // decoded speed units to m/s; 0.514444 or 1
}

// Calibration defaults
const (
	DefaultVoltageOffset = 0.0
	DefaultSpeedFactor   = 0.514444 // knots to m/s
)

// DefaultCalibration returns the constants of the reference firmware
func DefaultCalibration() Calibration {
	return Calibration{
		VoltageOffset: DefaultVoltageOffset,
		SpeedFactor:   DefaultSpeedFactor,
	}
}

// Transmitter is the read-only per-tracker configuration passed into every
// correlate and decode call
type Transmitter struct {
	Payload  string // flight name as uploaded
	Callsign string // licensed callsign sent in the identity slot
	Format   Format

	// Traquito channel identifier: first and third character of the
	// telemetry callsign
	FlightID1 byte
	FlightID3 byte

	Calibration Calibration
}
