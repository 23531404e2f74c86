// Package config loads the balloon settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"wsprbridge/internal/aprs"
	"wsprbridge/internal/telemetry"
)

// Spot sources
const (
	SourceWSPRLive = "wsprlive"
	SourceWSPRNet  = "wsprnet"
)

// Defaults applied by Load
const (
	DefaultSource      = SourceWSPRLive
	DefaultTopicPrefix = "wsprbridge"
	DefaultClientID    = "wsprbridge"
)

// Config is the settings file
type Config struct {
	APRS        APRS         `yaml:"aprs"`
	Upload      Upload       `yaml:"upload"`
	MQTT        MQTT         `yaml:"mqtt"`
	Source      string       `yaml:"source"`
	Calibration *Calibration `yaml:"calibration"`
	Balloons    []Balloon    `yaml:"balloons"`
}

// APRS holds the APRS-IS login
type APRS struct {
	Callsign string `yaml:"callsign"`
	Passcode *int   `yaml:"passcode"`
	Server   string `yaml:"server"`
}

// Upload enables each output
type Upload struct {
	SondeHub bool `yaml:"sondehub"`
	APRS     bool `yaml:"aprs"`
	MQTT     bool `yaml:"mqtt"`
}

// MQTT holds the broker connection
type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// Calibration overrides the firmware dependent decode constants
type Calibration struct {
	VoltageOffset *float64 `yaml:"voltage_offset"`
	SpeedFactor   *float64 `yaml:"speed_factor"`
}

// Apply returns base with the set overrides replaced
func (c *Calibration) Apply(base telemetry.Calibration) telemetry.Calibration {
	if c == nil {
		return base
	}
	if c.VoltageOffset != nil {
		base.VoltageOffset = *c.VoltageOffset
	}
	if c.SpeedFactor != nil {
		base.SpeedFactor = *c.SpeedFactor
	}
	return base
}

// Load reads and validates a settings file
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes settings, applies defaults and validates the result
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Source == "" {
		c.Source = DefaultSource
	}
	if c.APRS.Server == "" {
		c.APRS.Server = aprs.DefaultServer
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = DefaultClientID
	}
}

// Validate reports every problem found in the settings
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Source) {
	case SourceWSPRLive, SourceWSPRNet:
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}
	if c.Upload.APRS && c.APRS.Callsign == "" {
		errs = append(errs, errors.New("aprs upload enabled without aprs.callsign"))
	}
	if c.Upload.MQTT && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt upload enabled without mqtt.broker"))
	}
	if c.Calibration != nil && c.Calibration.SpeedFactor != nil && *c.Calibration.SpeedFactor <= 0 {
		errs = append(errs, errors.New("calibration.speed_factor must be positive"))
	}

	for i, b := range c.Balloons {
		if !b.Active {
			continue
		}
		if err := b.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("balloon %d (%s): %w", i, b.Payload, err))
		}
	}

	return errors.Join(errs...)
}

// Passcode returns the configured APRS-IS passcode, or the one derived from
// the callsign
func (c *Config) Passcode() int {
	if c.APRS.Passcode != nil {
		return *c.APRS.Passcode
	}
	return aprs.Passcode(c.APRS.Callsign)
}

// GlobalCalibration returns the defaults with the file wide overrides
func (c *Config) GlobalCalibration() telemetry.Calibration {
	return c.Calibration.Apply(telemetry.DefaultCalibration())
}

// ActiveBalloons returns the balloons marked active
func (c *Config) ActiveBalloons() []Balloon {
	var active []Balloon
	for _, b := range c.Balloons {
		if b.Active {
			active = append(active, b)
		}
	}
	return active
}
