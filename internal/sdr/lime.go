package sdr

import (
	"strconv"

	"github.com/iqtlabs/gamutrf/internal/domain"
)

const limeBinary = "/usr/local/bin/LimeStream"

// limeArgs builds a LimeStream capture. A zero gain is left out so the
// device keeps its own default. There is no AGC control.
func limeArgs(sampleFile string, req domain.RecordingRequest, t Tuning) []string {
	args := []string{limeBinary}
	if t.Gain != 0 {
		args = append(args, "-g", strconv.Itoa(t.Gain))
	}
	return append(args,
		"-f", formatNumber(req.CenterFreq),
		"-s", formatNumber(req.SampleRate),
		"-C", strconv.FormatInt(req.SampleCount, 10),
		"-r", sampleFile,
	)
}
