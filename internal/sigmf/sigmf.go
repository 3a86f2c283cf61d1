package sigmf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// MetaSuffix is appended to the sample file path to name the sidecar.
	MetaSuffix = ".sigmf-meta"

	// Version is the SigMF core:version written into every sidecar.
	Version = "1.0.0"

	// DatetimeLayout is ISO-8601 UTC with microseconds.
	DatetimeLayout = "2006-01-02T15:04:05.000000Z"
)

// Metadata describes one capture to be recorded in a sidecar.
type Metadata struct {
	SampleFile string
	SampleRate float64
	Datatype   string
	CenterFreq float64
	CapturedAt time.Time
}

// Global is the SigMF global object.
type Global struct {
	Datatype   string  `json:"core:datatype"`
	SampleRate float64 `json:"core:sample_rate"`
	Version    string  `json:"core:version"`
}

// Capture is one SigMF capture segment.
type Capture struct {
	SampleStart int64   `json:"core:sample_start"`
	Frequency   float64 `json:"core:frequency"`
	Datetime    string  `json:"core:datetime"`
}

// File is the sidecar document.
type File struct {
	Global      Global           `json:"global"`
	Captures    []Capture        `json:"captures"`
	Annotations []map[string]any `json:"annotations"`
}

// Build returns the sidecar document for m.
func Build(m Metadata) File {
	return File{
		Global: Global{
			Datatype:   m.Datatype,
			SampleRate: m.SampleRate,
			Version:    Version,
		},
		Captures: []Capture{{
			SampleStart: 0,
			Frequency:   m.CenterFreq,
			Datetime:    m.CapturedAt.UTC().Format(DatetimeLayout),
		}},
		Annotations: []map[string]any{},
	}
}

// MetaPath returns the sidecar path for sampleFile.
func MetaPath(sampleFile string) string {
	return sampleFile + MetaSuffix
}

// Writer writes SigMF sidecars next to sample files.
type Writer struct {
	createTemp func(dir, pattern string) (*os.File, error)
	rename     func(oldpath, newpath string) error
	remove     func(name string) error
}

// NewWriter creates a Writer backed by the local filesystem.
func NewWriter() *Writer {
	return &Writer{
		createTemp: os.CreateTemp,
		rename:     os.Rename,
		remove:     os.Remove,
	}
}

// Write stores the sidecar for m and returns its path. The sidecar either
// appears complete or not at all.
func (w *Writer) Write(m Metadata) (string, error) {
	if m.SampleFile == "" {
		return "", fmt.Errorf("sample file is required")
	}

	data, err := json.MarshalIndent(Build(m), "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode sigmf metadata: %w", err)
	}

	metaPath := MetaPath(m.SampleFile)
	tmp, err := w.createTemp(filepath.Dir(metaPath), filepath.Base(metaPath)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create sigmf temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = w.remove(tmpName)
		return "", fmt.Errorf("failed to write sigmf metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = w.remove(tmpName)
		return "", fmt.Errorf("failed to close sigmf metadata: %w", err)
	}
	if err := w.rename(tmpName, metaPath); err != nil {
		_ = w.remove(tmpName)
		return "", fmt.Errorf("failed to move sigmf metadata into place: %w", err)
	}

	return metaPath, nil
}
