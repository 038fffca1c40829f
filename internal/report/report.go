// Package report writes per-directory usage reports.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the name of the report written into each located directory.
const FileName = "storage.json"

// TimeLayout formats Report.WrittenAt with microsecond precision.
const TimeLayout = "2006-01-02 15:04:05.000000"

// Report is the usage report persisted for a located directory.
type Report struct {
	// Size is the total size in bytes.
	Size int64 `json:"size"`
	// WrittenAt is the local time of the measurement.
	WrittenAt string `json:"written_at"`
}

// New creates a Report for size measured at now.
func New(size int64, now time.Time) Report {
	return Report{
		Size:      size,
		WrittenAt: now.Format(TimeLayout),
	}
}

// WriteError reports a failure to persist a report.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing report %q: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Path returns the report location for dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Write serializes r into dir, replacing any previous report.
func Write(dir string, r Report) error {
	path := Path(dir)

	data, err := json.Marshal(r)
	if err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("encoding JSON: %w", err)}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // Report is meant to be readable by the app
		return &WriteError{Path: path, Err: err}
	}

	return nil
}

// Read loads the report stored in dir.
func Read(dir string) (Report, error) {
	var r Report

	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return r, err
	}

	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decoding %q: %w", Path(dir), err)
	}

	return r, nil
}
