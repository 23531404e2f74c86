package telemetry

import "strings"

// PowerCode is the dense index 0..18 of a WSPR power marker
type PowerCode int

// powerMarkers lists the only power values a WSPR beacon can carry, in
// index order
var powerMarkers = [...]string{
	"0", "3", "7", "10", "13", "17", "20", "23", "27", "30",
	"33", "37", "40", "43", "47", "50", "53", "57", "60",
}

// NumPowerCodes is the radix of the power digit
const NumPowerCodes = len(powerMarkers)

var powerIndex = func() map[string]PowerCode {
	m := make(map[string]PowerCode, len(powerMarkers))
	for i, s := range powerMarkers {
		m[s] = PowerCode(i)
	}
	return m
}()

// LookupPowerCode maps a power marker such as "23" to its index. A leading
// "+" is accepted.
func LookupPowerCode(marker string) (PowerCode, bool) {
	code, ok := powerIndex[strings.TrimPrefix(strings.TrimSpace(marker), "+")]
	return code, ok
}

// Marker returns the power marker string of the code
func (p PowerCode) Marker() string {
	if p < 0 || int(p) >= len(powerMarkers) {
		return ""
	}
	return powerMarkers[p]
}
