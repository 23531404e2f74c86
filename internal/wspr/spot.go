// Package wspr fetches beacon observations from the public WSPR spot
// databases and normalizes them into telemetry.RawSpot values.
package wspr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/s2"

	"wsprbridge/internal/maidenhead"
	"wsprbridge/internal/telemetry"
)

// ErrNoSpots is returned when a query matched no observation
var ErrNoSpots = errors.New("no spots found")

// TimeLayout is the time format of wspr.live toString(time)
const TimeLayout = "2006-01-02 15:04:05"

const earthRadiusKm = 6371.0088

// SpotQuery selects the newest observation of one transmitter in one slot
type SpotQuery struct {
	Callsign string    // exact callsign, or
	Pattern  string    // SQL LIKE pattern, e.g. "Q_5%"
	Slot     int       // minute digit, 0..9
	Band     string    // empty for any band
	Since    time.Time // lookback start
}

// Source is an observation database
type Source interface {
	LatestSpot(ctx context.Context, q SpotQuery) (telemetry.RawSpot, error)
	Receivers(ctx context.Context, pair telemetry.PacketPair, band string) ([]Receiver, error)
}

// Receiver is a station that heard one observation
type Receiver struct {
	Callsign  string
	Frequency float64 // Hz
	SNR       int
	Time      time.Time
	Locator   string
	Version   string
}

// DistanceKm returns the great circle distance from the receiver's locator
// to a position. ok is false when the locator cannot be decoded.
func (r Receiver) DistanceKm(lat, lon float64) (km float64, ok bool) {
	rlat, rlon, err := maidenhead.Decode(r.Locator)
	if err != nil {
		return 0, false
	}
	a := s2.LatLngFromDegrees(rlat, rlon)
	b := s2.LatLngFromDegrees(lat, lon)
	return a.Distance(b).Radians() * earthRadiusKm, true
}

// Unique drops repeated callsigns, keeping the first report of each
func Unique(receivers []Receiver) []Receiver {
	seen := make(map[string]bool, len(receivers))
	out := make([]Receiver, 0, len(receivers))
	for _, r := range receivers {
		key := strings.ToUpper(r.Callsign)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// Nearest returns up to n unique receivers ordered by distance to a
// position. Receivers without a usable locator sort last.
func Nearest(receivers []Receiver, lat, lon float64, n int) []Receiver {
	type ranked struct {
		r  Receiver
		km float64
		ok bool
	}

	unique := Unique(receivers)
	list := make([]ranked, len(unique))
	for i, r := range unique {
		km, ok := r.DistanceKm(lat, lon)
		list[i] = ranked{r: r, km: km, ok: ok}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].ok != list[j].ok {
			return list[i].ok
		}
		return list[i].km < list[j].km
	})

	if n > len(list) {
		n = len(list)
	}
	out := make([]Receiver, n)
	for i := 0; i < n; i++ {
		out[i] = list[i].r
	}
	return out
}

// ParseSpot parses one tab separated wspr.live row:
// stime, band, tx_sign, tx_loc, tx_lat, tx_lon, power, stime
func ParseSpot(line string) (telemetry.RawSpot, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return telemetry.RawSpot{}, ErrNoSpots
	}

	cols := strings.Split(line, "\t")
	if len(cols) < 7 {
		return telemetry.RawSpot{}, fmt.Errorf("spot row has %d columns, want 8", len(cols))
	}

	ts, err := time.ParseInLocation(TimeLayout, cols[0], time.UTC)
	if err != nil {
		return telemetry.RawSpot{}, fmt.Errorf("failed to parse spot time %q: %w", cols[0], err)
	}
	lat, err := strconv.ParseFloat(cols[4], 64)
	if err != nil {
		return telemetry.RawSpot{}, fmt.Errorf("failed to parse latitude %q: %w", cols[4], err)
	}
	lon, err := strconv.ParseFloat(cols[5], 64)
	if err != nil {
		return telemetry.RawSpot{}, fmt.Errorf("failed to parse longitude %q: %w", cols[5], err)
	}

	raw := cols[0]
	if len(cols) > 7 && cols[7] != "" {
		raw = cols[7]
	}

	return telemetry.RawSpot{
		Time:      ts,
		Band:      cols[1],
		Callsign:  cols[2],
		Locator:   cols[3],
		Latitude:  lat,
		Longitude: lon,
		Power:     strings.TrimPrefix(cols[6], "+"),
		RawTime:   raw,
	}, nil
}

// ParseReceivers parses wspr.live receiver rows:
// rx_sign, frequency, snr, stime, rx_loc, version
func ParseReceivers(body string) ([]Receiver, error) {
	var receivers []Receiver
	for i, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		cols := strings.Split(line, "\t")
		if len(cols) < 5 {
			return nil, fmt.Errorf("receiver row %d has %d columns, want 6", i+1, len(cols))
		}

		freq, err := strconv.ParseFloat(cols[1], 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse frequency on row %d: %w", i+1, err)
		}
		snr, err := strconv.Atoi(cols[2])
		if err != nil {
			return nil, fmt.Errorf("failed to parse snr on row %d: %w", i+1, err)
		}
		ts, err := time.ParseInLocation(TimeLayout, cols[3], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse time on row %d: %w", i+1, err)
		}

		r := Receiver{
			Callsign:  cols[0],
			Frequency: freq,
			SNR:       snr,
			Time:      ts,
			Locator:   cols[4],
		}
		if len(cols) > 5 {
			r.Version = cols[5]
		}
		receivers = append(receivers, r)
	}
	return receivers, nil
}

// checkQuery rejects values that cannot be safely interpolated into a query
func checkQuery(q SpotQuery) error {
	if (q.Callsign == "") == (q.Pattern == "") {
		return errors.New("exactly one of callsign or pattern must be set")
	}
	if q.Slot < 0 || q.Slot > 9 {
		return fmt.Errorf("slot %d out of range 0..9", q.Slot)
	}
	if err := checkToken("callsign", q.Callsign, "/"); err != nil {
		return err
	}
	if err := checkToken("pattern", q.Pattern, "/_%"); err != nil {
		return err
	}
	return checkBand(q.Band)
}

func checkToken(field, value, extra string) error {
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
			continue
		}
		if strings.IndexByte(extra, c) >= 0 {
			continue
		}
		return fmt.Errorf("invalid character %q in %s %q", c, field, value)
	}
	return nil
}

func checkBand(band string) error {
	if band == "" {
		return nil
	}
	if _, err := strconv.Atoi(band); err != nil {
		return fmt.Errorf("invalid band %q", band)
	}
	return nil
}
