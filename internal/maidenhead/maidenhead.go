// Package maidenhead converts between Maidenhead grid locators and
// latitude/longitude in decimal degrees.
package maidenhead

import (
	"fmt"
	"math"
	"strings"
)

// Cell sizes in degrees
const (
	FieldLonDeg     = 20.0
	FieldLatDeg     = 10.0
	SquareLonDeg    = 2.0
	SquareLatDeg    = 1.0
	SubsquareLonDeg = 5.0 / 60.0 // 5'
	SubsquareLatDeg = 2.5 / 60.0 // 2.5'
)

// Character ranges for each pair
const (
	fieldMax     = 'R' // 18 fields
	subsquareMax = 'X' // 24 subsquares
)

// MalformedLocatorError reports a locator that cannot be decoded
type MalformedLocatorError struct {
	Locator string
	Reason  string
}

func (e *MalformedLocatorError) Error() string {
	return fmt.Sprintf("malformed locator %q: %s", e.Locator, e.Reason)
}

// Decode returns the centre of the cell named by a 4 or 6 character locator.
// Input is case-insensitive.
func Decode(grid string) (lat, lon float64, err error) {
	if len(grid) != 4 && len(grid) != 6 {
		return 0, 0, &MalformedLocatorError{Locator: grid, Reason: "length must be 4 or 6"}
	}

	g := strings.ToUpper(grid)

	if err := checkRange(grid, g[0], 'A', fieldMax, "field"); err != nil {
		return 0, 0, err
	}
	if err := checkRange(grid, g[1], 'A', fieldMax, "field"); err != nil {
		return 0, 0, err
	}
	if err := checkRange(grid, g[2], '0', '9', "square"); err != nil {
		return 0, 0, err
	}
	if err := checkRange(grid, g[3], '0', '9', "square"); err != nil {
		return 0, 0, err
	}

	lon = -180 + FieldLonDeg*float64(g[0]-'A') + SquareLonDeg*float64(g[2]-'0')
	lat = -90 + FieldLatDeg*float64(g[1]-'A') + SquareLatDeg*float64(g[3]-'0')

	if len(g) == 4 {
		return lat + SquareLatDeg/2, lon + SquareLonDeg/2, nil
	}

	if err := checkRange(grid, g[4], 'A', subsquareMax, "subsquare"); err != nil {
		return 0, 0, err
	}
	if err := checkRange(grid, g[5], 'A', subsquareMax, "subsquare"); err != nil {
		return 0, 0, err
	}

	lon += SubsquareLonDeg*float64(g[4]-'A') + 2.5/60
	lat += SubsquareLatDeg*float64(g[5]-'A') + 1.25/60

	return lat, lon, nil
}

func checkRange(grid string, c, lo, hi byte, pair string) error {
	if c < lo || c > hi {
		return &MalformedLocatorError{
			Locator: grid,
			Reason:  fmt.Sprintf("%s character %q outside %c..%c", pair, c, lo, hi),
		}
	}
	return nil
}

// Encode returns the locator of the cell containing lat/lon. Precision is 4
// or 6; the subsquare pair is lowercase.
func Encode(lat, lon float64, precision int) (string, error) {
	if precision != 4 && precision != 6 {
		return "", fmt.Errorf("unsupported precision %d", precision)
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat >= 90 || lon < -180 || lon >= 180 {
		return "", fmt.Errorf("position %.6f,%.6f out of range", lat, lon)
	}

	x := lon + 180
	y := lat + 90

	fx := int(x / FieldLonDeg)
	fy := int(y / FieldLatDeg)
	x -= float64(fx) * FieldLonDeg
	y -= float64(fy) * FieldLatDeg

	sx := int(x / SquareLonDeg)
	sy := int(y / SquareLatDeg)
	x -= float64(sx) * SquareLonDeg
	y -= float64(sy) * SquareLatDeg

	b := []byte{byte('A' + fx), byte('A' + fy), byte('0' + sx), byte('0' + sy)}
	if precision == 6 {
		ux := int(x / SubsquareLonDeg)
		uy := int(y / SubsquareLatDeg)
		b = append(b, byte('a'+ux), byte('a'+uy))
	}

	return string(b), nil
}

// SubsquareIndex returns the zero based subsquare indices of a 6 character
// locator: longitude first, then latitude.
func SubsquareIndex(grid string) (int, int, error) {
	if _, _, err := Decode(grid); err != nil {
		return 0, 0, err
	}
	if len(grid) != 6 {
		return 0, 0, &MalformedLocatorError{Locator: grid, Reason: "subsquare requires 6 characters"}
	}
	g := strings.ToUpper(grid)
	return int(g[4] - 'A'), int(g[5] - 'A'), nil
}
