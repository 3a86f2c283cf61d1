package sdr

import (
	"fmt"

	"github.com/iqtlabs/gamutrf/internal/domain"
)

const bladeRFBinary = "bladeRF-cli"

// bladeRFArgs builds a bladeRF-cli script, one -e per command.
// AGC and manual gain are mutually exclusive on this device.
func bladeRFArgs(sampleFile string, req domain.RecordingRequest, t Tuning) []string {
	rate := formatNumber(req.SampleRate)

	args := []string{bladeRFBinary}
	if t.AGC {
		args = append(args, "-e", "set agc rx on")
	} else {
		args = append(args,
			"-e", "set agc rx off",
			"-e", fmt.Sprintf("set gain rx %d", t.Gain),
		)
	}

	return append(args,
		"-e", "set samplerate rx "+rate,
		"-e", "set bandwidth rx "+rate,
		"-e", "set frequency rx "+formatNumber(req.CenterFreq),
		"-e", fmt.Sprintf("rx config file=%s format=bin n=%d", sampleFile, req.SampleCount),
		"-e", "rx start",
		"-e", "rx wait",
	)
}
