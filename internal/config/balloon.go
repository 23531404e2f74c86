package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"wsprbridge/internal/telemetry"
)

// Balloon is one tracked flight
type Balloon struct {
	Payload     string       `yaml:"payload"`
	Active      bool         `yaml:"active"`
	Type        string       `yaml:"type"`
	TrackerType string       `yaml:"tracker_type"`
	Band        string       `yaml:"band"`
	Slots       SlotList     `yaml:"slots"`
	Traquito    Traquito     `yaml:"traquito"`
	HamCallsign string       `yaml:"ham_callsign"`
	Comment     string       `yaml:"comment"`
	Detail      string       `yaml:"detail"`
	Device      string       `yaml:"device"`
	Calibration *Calibration `yaml:"calibration"`
}

// Slots is the minute digit of the identity and telemetry transmissions
type Slots struct {
	Callsign  int `yaml:"callsign"`
	Telemetry int `yaml:"telemetry"`
}

// SlotList accepts either one slot mapping or a list of them
type SlotList []Slots

// UnmarshalYAML implements yaml.Unmarshaler
func (s *SlotList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		var one Slots
		if err := value.Decode(&one); err != nil {
			return err
		}
		*s = SlotList{one}
		return nil
	}

	var many []Slots
	if err := value.Decode(&many); err != nil {
		return err
	}
	*s = many
	return nil
}

// Traquito holds the channel identifier of a Traquito tracker
type Traquito struct {
	FlightID1 string `yaml:"flight_id1"`
	FlightID3 string `yaml:"flight_id3"`
}

// Format returns the decoder format, taken from tracker_type when set
func (b Balloon) Format() (telemetry.Format, error) {
	if b.TrackerType != "" {
		return telemetry.ParseFormat(b.TrackerType)
	}
	return telemetry.ParseFormat(b.Type)
}

// BandFilter returns the band to query, empty for any band
func (b Balloon) BandFilter() string {
	band := strings.TrimSpace(b.Band)
	if band == "0" {
		return ""
	}
	return band
}

// Validate checks one balloon entry
func (b Balloon) Validate() error {
	var errs []error

	if b.Payload == "" {
		errs = append(errs, errors.New("payload is required"))
	}
	if b.HamCallsign == "" {
		errs = append(errs, errors.New("ham_callsign is required"))
	}

	format, err := b.Format()
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid balloon type: %w", err))
	}
	if format == telemetry.FormatTraquito {
		if !validFlightID(b.Traquito.FlightID1) || !validFlightID(b.Traquito.FlightID3) {
			errs = append(errs, errors.New("traquito flight_id1 and flight_id3 must be single characters"))
		}
	}

	if len(b.Slots) == 0 {
		errs = append(errs, errors.New("at least one slot pair is required"))
	}
	for _, s := range b.Slots {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if b.Calibration != nil && b.Calibration.SpeedFactor != nil && *b.Calibration.SpeedFactor <= 0 {
		errs = append(errs, errors.New("calibration.speed_factor must be positive"))
	}

	return errors.Join(errs...)
}

// Validate checks that the telemetry slot is one frame after the identity slot
func (s Slots) Validate() error {
	if s.Callsign < 0 || s.Callsign > 9 || s.Telemetry < 0 || s.Telemetry > 9 {
		return fmt.Errorf("slots %d/%d must be minute digits 0..9", s.Callsign, s.Telemetry)
	}
	if s.Callsign == s.Telemetry {
		return fmt.Errorf("callsign and telemetry slots are both %d", s.Callsign)
	}
	if (s.Callsign+2)%10 != s.Telemetry {
		return fmt.Errorf("telemetry slot %d does not follow callsign slot %d by two minutes", s.Telemetry, s.Callsign)
	}
	return nil
}

func validFlightID(id string) bool {
	if len(id) != 1 {
		return false
	}
	c := id[0]
	return c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

// Transmitter converts the entry into the decoder's read-only view
func (b Balloon) Transmitter(global telemetry.Calibration) (telemetry.Transmitter, error) {
	format, err := b.Format()
	if err != nil {
		return telemetry.Transmitter{}, err
	}

	tx := telemetry.Transmitter{
		Payload:     b.Payload,
		Callsign:    strings.ToUpper(b.HamCallsign),
		Format:      format,
		Calibration: b.Calibration.Apply(global),
	}
	if format == telemetry.FormatTraquito {
		if !validFlightID(b.Traquito.FlightID1) || !validFlightID(b.Traquito.FlightID3) {
			return telemetry.Transmitter{}, errors.New("traquito flight IDs are required")
		}
		tx.FlightID1 = strings.ToUpper(b.Traquito.FlightID1)[0]
		tx.FlightID3 = strings.ToUpper(b.Traquito.FlightID3)[0]
	}
	return tx, nil
}
