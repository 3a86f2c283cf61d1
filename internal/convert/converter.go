package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/iqtlabs/gamutrf/internal/recorder"
)

const (
	soxBinary = "sox"

	// GRRawExt is the extension of converted float I/Q files.
	GRRawExt = ".raw"
)

var recordingName = regexp.MustCompile(`^gamutrf_recording(\d+)_(\d+)Hz_(\d+)sps\.([a-z0-9]+)`)

// Options describes the input sample layout. Zero values mean signed 16 bit.
type Options struct {
	SampleRate float64
	Bits       int
	Encoding   string
}

// Recording holds the fields encoded in a capture file name.
type Recording struct {
	Epoch      int64
	CenterFreq float64
	SampleRate float64
	Encoding   string
}

// ParseRecordingName extracts the capture parameters from a sample file path.
func ParseRecordingName(path string) (Recording, error) {
	m := recordingName.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return Recording{}, fmt.Errorf("%s is not a gamutrf recording name", filepath.Base(path))
	}
	epoch, _ := strconv.ParseInt(m[1], 10, 64)
	freq, _ := strconv.ParseFloat(m[2], 64)
	rate, _ := strconv.ParseFloat(m[3], 64)
	return Recording{Epoch: epoch, CenterFreq: freq, SampleRate: rate, Encoding: m[4]}, nil
}

// DefaultOutput returns the converted file name for in.
func DefaultOutput(in string) string {
	ext := filepath.Ext(in)
	if ext == GRRawExt {
		return in + GRRawExt
	}
	return strings.TrimSuffix(in, ext) + GRRawExt
}

// Converter turns interleaved integer I/Q captures into float samples with sox.
type Converter struct {
	runner recorder.Runner
}

// New returns a converter. A nil runner uses os/exec.
func New(runner recorder.Runner) *Converter {
	if runner == nil {
		runner = recorder.NewExecRunner()
	}
	return &Converter{runner: runner}
}

// Args returns the sox command line for converting in to out.
func Args(in, out string, opts Options) []string {
	bits := opts.Bits
	if bits == 0 {
		bits = 16
	}
	enc := opts.Encoding
	if enc == "" {
		enc = "signed-integer"
	}
	rawArgs := []string{"-t", "raw", "-r", strconv.FormatFloat(opts.SampleRate, 'f', -1, 64), "-c", "1"}

	args := []string{soxBinary}
	args = append(args, rawArgs...)
	args = append(args, "-b", strconv.Itoa(bits), "-e", enc, in)
	args = append(args, rawArgs...)
	args = append(args, "-e", "float", out)
	return args
}

// Raw2GRRaw converts in to out. When opts.SampleRate is zero it is taken
// from the recording file name.
func (c *Converter) Raw2GRRaw(ctx context.Context, in, out string, opts Options) error {
	if _, err := os.Stat(in); err != nil {
		return fmt.Errorf("input file not found: %s", in)
	}

	if opts.SampleRate <= 0 {
		rec, err := ParseRecordingName(in)
		if err != nil {
			return fmt.Errorf("sample rate required: %w", err)
		}
		opts.SampleRate = rec.SampleRate
	}
	if out == "" {
		out = DefaultOutput(in)
	}

	// Remove existing output file
	os.Remove(out)

	args := Args(in, out, opts)
	slog.Debug("Running sox for conversion", "command", strings.Join(args, " "))

	res, err := c.runner.Run(ctx, args)
	if err != nil {
		return fmt.Errorf("sox conversion failed: %w\nOutput: %s", err, res.Output)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("sox conversion exited with status %d\nOutput: %s", res.ExitCode, res.Output)
	}

	if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("output file not created: %s", out)
	}

	slog.Info("Converted recording saved to", "file", out, "sample_rate", opts.SampleRate)
	return nil
}
