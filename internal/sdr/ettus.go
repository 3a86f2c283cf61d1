package sdr

import (
	"strconv"

	"github.com/iqtlabs/gamutrf/internal/domain"
)

const (
	ettusBinary = "/usr/local/bin/mt_rx_samples_to_file"

	// Largest USB recv_frame_size. Trades latency for lower CPU and no overflows.
	// https://files.ettus.com/manual/page_transport.html
	ettusTransportArgs = "num_recv_frames=64,recv_frame_size=16360"

	// mt_rx_samples_to_file always gzips its output.
	ettusCompressionSuffix = ".gz"
)

// ettusArgs builds a UHD capture. The tool has no AGC switch so t.AGC is ignored.
func ettusArgs(sampleFile string, req domain.RecordingRequest, t Tuning) []string {
	rate := formatNumber(req.SampleRate)
	return []string{
		ettusBinary,
		"--file", ettusDataFile(sampleFile),
		"--rate", rate,
		"--bw", rate,
		"--nsamps", strconv.FormatInt(req.SampleCount, 10),
		"--freq", formatNumber(req.CenterFreq),
		"--gain", strconv.Itoa(t.Gain),
		"--args", ettusTransportArgs,
		"--spb", strconv.Itoa(t.RecvBufferSize),
	}
}

func ettusDataFile(sampleFile string) string {
	return sampleFile + ettusCompressionSuffix
}
