package domain

import "testing"

func TestParseRecordingRequest(t *testing.T) {
	req, err := ParseRecordingRequest("2.4e9", "1e6", "20000000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := RecordingRequest{CenterFreq: 2.4e9, SampleCount: 1000000, SampleRate: 20e6}
	if req != want {
		t.Errorf("req = %+v, want %+v", req, want)
	}

	if req, _ := ParseRecordingRequest("915000000", "10.9", "1e6"); req.SampleCount != 10 {
		t.Errorf("SampleCount = %d, want 10", req.SampleCount)
	}
}

func TestParseRecordingRequest_Invalid(t *testing.T) {
	tests := []struct {
		name              string
		freq, count, rate string
	}{
		{"non-numeric freq", "abc", "1", "1"},
		{"non-numeric count", "1", "many", "1"},
		{"nan rate", "1", "1", "NaN"},
		{"infinite freq", "Inf", "1", "1"},
		{"negative freq", "-1", "1", "1"},
		{"zero count", "1", "0", "1"},
		{"zero rate", "1", "1", "0"},
		{"empty", "", "1", "1"},
		{"count overflows int64", "1", "9223372036854775808", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRecordingRequest(tt.freq, tt.count, tt.rate); err == nil {
				t.Errorf("expected error for %q/%q/%q", tt.freq, tt.count, tt.rate)
			}
		})
	}
}

func TestCaptureResultOK(t *testing.T) {
	if !(CaptureResult{}).OK() {
		t.Error("zero exit without error should be OK")
	}
	if (CaptureResult{ExitStatus: 1}).OK() {
		t.Error("nonzero exit should not be OK")
	}
}
