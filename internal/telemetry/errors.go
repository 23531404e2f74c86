package telemetry

import (
	"errors"
	"fmt"
	"time"
)

// DecodeError reports structurally invalid input to a decoder
type DecodeError struct {
	Format Format
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("%s decode: %s %q: %s", e.Format, e.Field, e.Value, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StalePairError rejects two observations that are not exactly one slot apart
type StalePairError struct {
	Gap time.Duration
}

func (e *StalePairError) Error() string {
	return fmt.Sprintf("observations %s apart, want %s", e.Gap, FrameSeparation)
}

// IdentityMismatchError rejects observations that belong to a different
// transmitter than the one configured
type IdentityMismatchError struct {
	Role     string // "identity" or "telemetry"
	Callsign string
	Want     string
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("%s callsign %q does not match %q", e.Role, e.Callsign, e.Want)
}

// NoFixError rejects a decoded position that is a firmware sentinel
type NoFixError struct {
	Latitude  float64
	Longitude float64
	Reason    string
}

func (e *NoFixError) Error() string {
	return fmt.Sprintf("no fix (%s): %.4f,%.4f", e.Reason, e.Latitude, e.Longitude)
}

// IsRejection reports whether err is an expected, non-failure outcome:
// a stale pair, a foreign callsign, or a no-fix sentinel
func IsRejection(err error) bool {
	var stale *StalePairError
	var mismatch *IdentityMismatchError
	var nofix *NoFixError
	return errors.As(err, &stale) || errors.As(err, &mismatch) || errors.As(err, &nofix)
}
