package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	filePrefix = "wsprbridge_"
	dateLayout = "2006-01-02"
)

// Rotator is an io.Writer over one log file per day. Files of earlier days
// are gzip compressed when the day changes or when the rotator is opened.
type Rotator struct {
	logDir string
	useUTC bool
	now    func() time.Time

	mutex       sync.Mutex
	currentFile *os.File
	currentDate string
}

// NewRotator creates a new rotator writing into logDir
func NewRotator(logDir string, useUTC bool) (*Rotator, error) {
	return newRotator(logDir, useUTC, time.Now)
}

func newRotator(logDir string, useUTC bool, now func() time.Time) (*Rotator, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	r := &Rotator{
		logDir: logDir,
		useUTC: useUTC,
		now:    now,
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := r.rotate(r.today()); err != nil {
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}
	if err := r.compressStale(); err != nil {
		r.currentFile.Close()
		return nil, err
	}
	return r, nil
}

func (r *Rotator) today() string {
	now := r.now()
	if r.useUTC {
		now = now.UTC()
	}
	return now.Format(dateLayout)
}

func (r *Rotator) fileName(date string) string {
	return filepath.Join(r.logDir, filePrefix+date+".log")
}

// Write appends p to the file of the current day
func (r *Rotator) Write(p []byte) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile == nil {
		return 0, fmt.Errorf("log rotator is closed")
	}

	if date := r.today(); date != r.currentDate {
		old := r.currentDate
		if err := r.rotate(date); err != nil {
			return 0, err
		}
		if err := compressFile(r.fileName(old)); err != nil {
			return 0, err
		}
	}

	return r.currentFile.Write(p)
}

// rotate closes the current file and opens the one for date
func (r *Rotator) rotate(date string) error {
	if r.currentFile != nil {
		if err := r.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		r.currentFile = nil
	}

	path := r.fileName(date)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	r.currentFile = file
	r.currentDate = date
	return nil
}

// compressStale compresses plain log files left over from earlier days
func (r *Rotator) compressStale() error {
	files, err := filepath.Glob(filepath.Join(r.logDir, filePrefix+"*.log"))
	if err != nil {
		return fmt.Errorf("failed to list log files: %w", err)
	}
	current := r.fileName(r.currentDate)
	for _, f := range files {
		if f == current {
			continue
		}
		if err := compressFile(f); err != nil {
			return err
		}
	}
	return nil
}

// compressFile replaces path with path.gz
func compressFile(path string) error {
	src, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s for compression: %w", path, err)
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return fmt.Errorf("failed to create compressed file: %w", err)
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	gz.Name = filepath.Base(path)
	gz.ModTime = time.Now()

	if _, err := io.Copy(gz, src); err != nil {
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close compressed file: %w", err)
	}

	src.Close()
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// Close closes the current file
func (r *Rotator) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile == nil {
		return nil
	}
	err := r.currentFile.Close()
	r.currentFile = nil
	return err
}

// CurrentLogFile returns the path of the file being written
func (r *Rotator) CurrentLogFile() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentDate == "" {
		return ""
	}
	return r.fileName(r.currentDate)
}

// LogFiles returns every log file, compressed or not, oldest first
func (r *Rotator) LogFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.logDir, filePrefix+"*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// CleanupOldLogs removes files dated more than maxDays before today and
// returns how many were removed
func (r *Rotator) CleanupOldLogs(maxDays int) (int, error) {
	if maxDays <= 0 {
		return 0, fmt.Errorf("maxDays must be positive")
	}

	files, err := r.LogFiles()
	if err != nil {
		return 0, err
	}

	today, err := time.Parse(dateLayout, r.today())
	if err != nil {
		return 0, err
	}
	cutoff := today.AddDate(0, 0, -maxDays)
	current := r.CurrentLogFile()

	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}

		date, ok := fileDate(file)
		if !ok || !date.Before(cutoff) {
			continue
		}
		if err := os.Remove(file); err != nil {
			return removed, fmt.Errorf("failed to remove old log file: %w", err)
		}
		removed++
	}

	return removed, nil
}

func fileDate(path string) (time.Time, bool) {
	name := strings.TrimPrefix(filepath.Base(path), filePrefix)
	if len(name) < len(dateLayout) {
		return time.Time{}, false
	}
	date, err := time.Parse(dateLayout, name[:len(dateLayout)])
	return date, err == nil
}
