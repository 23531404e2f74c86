package app

import "time"

// Default configuration constants
const (
	DefaultConfigPath = "settings.yaml"
	DefaultLookback   = 30 * time.Minute
	DefaultMaxLogDays = 30
	MaxPathReceivers  = 5 // receivers named in the APRS comment
)

// Config holds application configuration
type Config struct {
	ConfigPath   string
	Source       string // overrides the settings file when set
	Lookback     time.Duration
	DryRun       bool
	MetricsFile  string
	LogDir       string
	LogRotateUTC bool
	MaxLogDays   int
	Verbose      bool
	ShowVersion  bool
}
