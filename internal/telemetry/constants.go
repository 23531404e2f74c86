package telemetry

// ZachTek altitude encoding
const (
	ZachTekCoarseStep = 300 // meters per power unit of the identity beacon
	ZachTekFineStep   = 20  // meters per power unit of the telemetry beacon
	ZachTekUnknownDBm = 60  // both beacons at 60 dBm: altitude unknown
)

// Traquito callsign word: c1 (base 36) then three letters (base 26)
const (
	TraquitoLetterRadix   = 26
	TraquitoSubsquareLon  = 25632 // 24 * 1068
	TraquitoSubsquareLat  = 1068
	TraquitoAltitudeStep  = 20 // meters
	TraquitoAlphaOffset   = 55 // 'A' - 10
	TraquitoLocatorLetter = 18 // radix of locator letters A..R
	TraquitoLocatorDigit  = 10
)

// Traquito locator/power word, mixed radix [_, 18, 10, 10, 19]
const (
	TraquitoTemperatureDiv = 6720 // 40 * 168
	TraquitoVoltageDiv     = 168  // 42 * 4
	TraquitoSpeedDiv       = 4
)

// Traquito sensor calibration
const (
	TraquitoTemperatureBase  = 457
	TraquitoTemperatureScale = 500.0 / 1024.0
	TraquitoKelvinOffset     = 273
	TraquitoVoltageBase      = 614
	TraquitoVoltageScale     = 5.0 / 1024.0
)
