package domain

import (
	"fmt"
	"math"
	"strconv"
)

// ParseRecordingRequest accepts any numeric form, e.g. "915e6", and requires
// a positive frequency and rate and at least one sample. Fractional sample
// counts are truncated.
func ParseRecordingRequest(freqRaw, countRaw, rateRaw string) (RecordingRequest, error) {
	freq, err := parseNumber("center_freq", freqRaw)
	if err != nil {
		return RecordingRequest{}, err
	}
	count, err := parseNumber("sample_count", countRaw)
	if err != nil {
		return RecordingRequest{}, err
	}
	rate, err := parseNumber("sample_rate", rateRaw)
	if err != nil {
		return RecordingRequest{}, err
	}

	switch {
	case freq <= 0:
		return RecordingRequest{}, fmt.Errorf("center_freq must be > 0, got %v", freq)
	case count < 1:
		return RecordingRequest{}, fmt.Errorf("sample_count must be >= 1, got %v", count)
	case rate <= 0:
		return RecordingRequest{}, fmt.Errorf("sample_rate must be > 0, got %v", rate)
	}

	return RecordingRequest{
		CenterFreq:  freq,
		SampleCount: int64(count),
		SampleRate:  rate,
	}, nil
}

func parseNumber(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt64 {
		return 0, fmt.Errorf("%s: %q is not a finite number", name, raw)
	}
	return v, nil
}
