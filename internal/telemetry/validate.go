package telemetry

import "math"

// Traquito firmware reports errors as a coordinate of ±127
const errorSentinelDeg = 127

// Validate rejects decoded positions that are firmware sentinels rather
// than real fixes. It returns a *NoFixError for rejected records.
//
// For the no-fix sentinel whole degrees are taken toward zero, so anything
// within one degree of 0,0 on both axes is rejected. The ±127 error code
// takes whole degrees with floor.
func Validate(tel Telemetry) error {
	lat := math.Trunc(tel.Latitude)
	lon := math.Trunc(tel.Longitude)

	if lat == 0 && lon == 0 {
		return &NoFixError{Latitude: tel.Latitude, Longitude: tel.Longitude, Reason: "null island"}
	}

	if tel.Format == FormatTraquito && (isErrorSentinel(tel.Latitude) || isErrorSentinel(tel.Longitude)) {
		return &NoFixError{Latitude: tel.Latitude, Longitude: tel.Longitude, Reason: "firmware error code"}
	}

	return nil
}

func isErrorSentinel(deg float64) bool {
	return math.Abs(math.Floor(deg)) == errorSentinelDeg
}
