// Package logging builds the process logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures the logger
type Options struct {
	Verbose bool
	LogDir  string // empty disables the log file
	UTC     bool
	MaxDays int // log files kept, 0 keeps all
	Output  io.Writer
}

// New creates the logger and, when LogDir is set, the rotator it also
// writes to. The returned rotator is nil without a log directory.
func New(opts Options) (*logrus.Logger, *Rotator, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	if opts.LogDir == "" {
		return logger, nil, nil
	}

	rotator, err := NewRotator(opts.LogDir, opts.UTC)
	if err != nil {
		return nil, nil, err
	}
	logger.SetOutput(io.MultiWriter(out, rotator))

	if opts.MaxDays > 0 {
		removed, err := rotator.CleanupOldLogs(opts.MaxDays)
		if err != nil {
			logger.WithError(err).Warn("Failed to clean up old log files")
		} else if removed > 0 {
			logger.WithField("count", removed).Info("Cleaned up old log files")
		}
	}

	logger.WithField("file", rotator.CurrentLogFile()).Debug("Logging to file")
	return logger, rotator, nil
}
