package telemetry

import (
	"math"
	"strings"

	"wsprbridge/internal/maidenhead"
)

// TraquitoFields are the raw integer fields unpacked from a Traquito frame
// before calibration is applied
type TraquitoFields struct {
	Subsquare   string // lowercase, two letters
	Altitude    int    // meters
	Temperature int    // °C
	VoltageCode int
	SpeedUnits  int
	GPSLocked   bool
	Satellites  bool
}

// UnpackTraquito unpacks the callsign word and the locator/power word of a
// Traquito telemetry beacon
func UnpackTraquito(callsign, locator, power string) (TraquitoFields, error) {
	sum1, err := traquitoCallsignWord(callsign)
	if err != nil {
		return TraquitoFields{}, err
	}
	sum2, err := traquitoLocatorWord(locator, power)
	if err != nil {
		return TraquitoFields{}, err
	}

	var f TraquitoFields

	lsub1 := sum1 / TraquitoSubsquareLon
	rem1 := sum1 - lsub1*TraquitoSubsquareLon
	lsub2 := rem1 / TraquitoSubsquareLat
	f.Altitude = (rem1 - lsub2*TraquitoSubsquareLat) * TraquitoAltitudeStep
	f.Subsquare = strings.ToLower(string([]byte{byte('A' + lsub1), byte('A' + lsub2)}))

	t1 := sum2 / TraquitoTemperatureDiv
	tmp := t1*2 + TraquitoTemperatureBase
	// Round half up
	f.Temperature = int(math.Floor(float64(tmp)*TraquitoTemperatureScale - TraquitoKelvinOffset + 0.5))

	rem2 := sum2 - t1*TraquitoTemperatureDiv
	f.VoltageCode = rem2 / TraquitoVoltageDiv

	rem3 := rem2 - f.VoltageCode*TraquitoVoltageDiv
	f.SpeedUnits = (rem3 / TraquitoSpeedDiv) * 2

	r7 := rem3 - (rem3/TraquitoSpeedDiv)*TraquitoSpeedDiv
	f.GPSLocked = r7/2 == 1
	f.Satellites = r7%2 == 1

	return f, nil
}

// traquitoCallsignWord returns c1*26^3 + c2*26^2 + c3*26 + c4 where c1 is
// the second callsign character (0-9, A-Z as 10-35) and c2..c4 are the
// fourth to sixth characters (A-Z).
func traquitoCallsignWord(callsign string) (int, error) {
	if len(callsign) < 6 {
		return 0, &DecodeError{Format: FormatTraquito, Field: "callsign", Value: callsign, Reason: "shorter than 6 characters"}
	}
	cs := strings.ToUpper(callsign)

	var c1 int
	switch ch := cs[1]; {
	case ch >= 'A' && ch <= 'Z':
		c1 = int(ch) - TraquitoAlphaOffset
	case ch >= '0' && ch <= '9':
		c1 = int(ch - '0')
	default:
		return 0, &DecodeError{Format: FormatTraquito, Field: "callsign", Value: callsign, Reason: "second character not alphanumeric"}
	}

	sum := c1
	for i := 3; i <= 5; i++ {
		ch := cs[i]
		if ch < 'A' || ch > 'Z' {
			return 0, &DecodeError{Format: FormatTraquito, Field: "callsign", Value: callsign, Reason: "characters 4 to 6 must be letters"}
		}
		sum = sum*TraquitoLetterRadix + int(ch-'A')
	}
	return sum, nil
}

// traquitoLocatorWord returns l1*18*10*10*19 + l2*10*10*19 + l3*10*19 +
// l4*19 + p
func traquitoLocatorWord(locator, power string) (int, error) {
	if len(locator) < 4 {
		return 0, &DecodeError{Format: FormatTraquito, Field: "locator", Value: locator, Reason: "shorter than 4 characters"}
	}
	loc := strings.ToUpper(locator)

	l1, l2 := int(loc[0])-'A', int(loc[1])-'A'
	l3, l4 := int(loc[2])-'0', int(loc[3])-'0'
	if l1 < 0 || l1 >= TraquitoLocatorLetter || l2 < 0 || l2 >= TraquitoLocatorLetter {
		return 0, &DecodeError{Format: FormatTraquito, Field: "locator", Value: locator, Reason: "field letters must be A..R"}
	}
	if l3 < 0 || l3 >= TraquitoLocatorDigit || l4 < 0 || l4 >= TraquitoLocatorDigit {
		return 0, &DecodeError{Format: FormatTraquito, Field: "locator", Value: locator, Reason: "square must be two digits"}
	}

	p, ok := LookupPowerCode(power)
	if !ok {
		return 0, &DecodeError{Format: FormatTraquito, Field: "power", Value: power, Reason: "not a WSPR power level"}
	}

	sum := l1
	sum = sum*TraquitoLocatorLetter + l2
	sum = sum*TraquitoLocatorDigit + l3
	sum = sum*TraquitoLocatorDigit + l4
	sum = sum*NumPowerCodes + int(p)
	return sum, nil
}

// DecodeTraquito decodes a Traquito frame: the identity beacon supplies the
// 4 character square, the telemetry beacon the subsquare, altitude and
// sensor readings
func DecodeTraquito(pair PacketPair, cal Calibration) (Telemetry, error) {
	base := pair.Identity.Locator
	if len(base) < 4 {
		return Telemetry{}, &DecodeError{Format: FormatTraquito, Field: "identity locator", Value: base, Reason: "shorter than 4 characters"}
	}

	f, err := UnpackTraquito(pair.Telemetry.Callsign, pair.Telemetry.Locator, pair.Telemetry.Power)
	if err != nil {
		return Telemetry{}, err
	}

	grid := base[:4] + f.Subsquare
	lat, lon, err := maidenhead.Decode(strings.ToUpper(grid))
	if err != nil {
		return Telemetry{}, &DecodeError{Format: FormatTraquito, Field: "grid", Value: grid, Reason: "invalid position", Err: err}
	}

	if cal.SpeedFactor == 0 {
		cal.SpeedFactor = DefaultSpeedFactor
	}

	temperature := f.Temperature
	voltage := float64(f.VoltageCode*10+TraquitoVoltageBase)*TraquitoVoltageScale + cal.VoltageOffset
	speed := float64(f.SpeedUnits) * cal.SpeedFactor
	gps := f.GPSLocked
	sats := f.Satellites

	return Telemetry{
		Format:      FormatTraquito,
		Time:        pair.Telemetry.Time,
		Grid:        strings.ToUpper(base[:4]) + f.Subsquare,
		Latitude:    lat,
		Longitude:   lon,
		Altitude:    f.Altitude,
		Temperature: &temperature,
		Voltage:     &voltage,
		Speed:       &speed,
		GPSLocked:   &gps,
		Satellites:  &sats,
	}, nil
}
