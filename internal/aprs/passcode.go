package aprs

import "strings"

const passcodeSeed = 0x73e2

// Passcode returns the APRS-IS login passcode for a callsign. The SSID and
// anything after the first non-alphanumeric character are ignored.
func Passcode(callsign string) int {
	call := strings.ToUpper(callsign)
	for i := 0; i < len(call); i++ {
		c := call[i]
		if !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			call = call[:i]
			break
		}
	}

	hash := passcodeSeed
	for i := 0; i < len(call); i += 2 {
		hash ^= int(call[i]) << 8
		if i+1 < len(call) {
			hash ^= int(call[i+1])
		}
	}
	return hash & 0x7fff
}
