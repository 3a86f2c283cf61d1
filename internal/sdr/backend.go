package sdr

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/iqtlabs/gamutrf/internal/domain"
)

// Kind identifies one of the supported radio front ends.
type Kind string

const (
	KindEttus   Kind = "ettus"
	KindBladeRF Kind = "bladerf"
	KindLime    Kind = "lime"
)

// ErrUnknownDevice is returned when a configured device kind is not supported.
var ErrUnknownDevice = errors.New("unknown sdr")

// Tuning holds the process-wide receive settings applied to every capture.
type Tuning struct {
	Gain           int  `json:"gain" yaml:"gain"`
	AGC            bool `json:"agc" yaml:"agc"`
	RecvBufferSize int  `json:"rxb" yaml:"rxb"`
}

// argBuilder turns a request into the argument vector of a capture binary.
type argBuilder func(sampleFile string, req domain.RecordingRequest, t Tuning) []string

type variant struct {
	binary   string
	build    argBuilder
	dataFile func(sampleFile string) string
}

var variants = map[Kind]variant{
	KindEttus:   {binary: ettusBinary, build: ettusArgs, dataFile: ettusDataFile},
	KindBladeRF: {binary: bladeRFBinary, build: bladeRFArgs},
	KindLime:    {binary: limeBinary, build: limeArgs},
}

// Device builds capture commands for a single, fixed SDR kind.
type Device struct {
	kind Kind
	v    variant
}

// New returns the Device for kind. Unknown kinds are a configuration error.
func New(kind string) (*Device, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(kind)))
	v, ok := variants[k]
	if !ok {
		return nil, fmt.Errorf("%w %q, must be one of %s", ErrUnknownDevice, kind, strings.Join(KindNames(), ", "))
	}
	return &Device{kind: k, v: v}, nil
}

// Kinds returns the supported device kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindEttus, KindBladeRF, KindLime}
}

// KindNames returns Kinds as strings.
func KindNames() []string {
	names := make([]string, 0, len(variants))
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	return names
}

// Kind returns the device kind.
func (d *Device) Kind() Kind {
	return d.kind
}

// Binary returns the capture binary invoked for this device.
func (d *Device) Binary() string {
	return d.v.binary
}

// RecordArgs returns the full argument vector, binary first, for one capture.
func (d *Device) RecordArgs(sampleFile string, req domain.RecordingRequest, t Tuning) []string {
	return d.v.build(sampleFile, req, t)
}

// DataFile returns the path the capture binary actually writes for sampleFile.
func (d *Device) DataFile(sampleFile string) string {
	if d.v.dataFile == nil {
		return sampleFile
	}
	return d.v.dataFile(sampleFile)
}

// Available reports whether the capture binary can be found.
func (d *Device) Available() (string, bool) {
	path, err := exec.LookPath(d.v.binary)
	if err != nil {
		return "", false
	}
	return path, true
}

// formatNumber renders v in the shortest decimal form with no exponent.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
