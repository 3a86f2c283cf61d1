package sigwindows

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Range is an inclusive frequency range in Hz. A nil bound is open.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Contains reports whether freq lies inside r, bounds inclusive.
func (r Range) Contains(freq float64) bool {
	if r.Min != nil && freq < *r.Min {
		return false
	}
	if r.Max != nil && freq > *r.Max {
		return false
	}
	return r.Min != nil || r.Max != nil
}

// String renders r back in MHz, e.g. "100-200" or "-88".
func (r Range) String() string {
	var lo, hi string
	if r.Min != nil {
		lo = strconv.FormatFloat(*r.Min/1e6, 'f', -1, 64)
	}
	if r.Max != nil {
		hi = strconv.FormatFloat(*r.Max/1e6, 'f', -1, 64)
	}
	return lo + "-" + hi
}

// ParseFreqExcluded parses "min-max" ranges given in MHz. Either side may be
// empty to leave that end open, but not both.
func ParseFreqExcluded(raw []string) ([]Range, error) {
	ranges := make([]Range, 0, len(raw))
	for i, pair := range raw {
		r, err := parseRange(pair)
		if err != nil {
			return nil, fmt.Errorf("freq_excluded[%d] %q: %w", i, pair, err)
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func parseRange(pair string) (Range, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(pair), "-")
	if !ok {
		return Range{}, fmt.Errorf("expected MIN-MAX in MHz")
	}

	var r Range
	var err error
	if r.Min, err = parseMHz(lo); err != nil {
		return Range{}, err
	}
	if r.Max, err = parseMHz(hi); err != nil {
		return Range{}, err
	}
	if r.Min == nil && r.Max == nil {
		return Range{}, fmt.Errorf("at least one bound is required")
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return Range{}, fmt.Errorf("min is greater than max")
	}
	return r, nil
}

func parseMHz(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("invalid frequency %q", s)
	}
	hz := math.Trunc(v * 1e6)
	return &hz, nil
}

// FreqExcluded reports whether freq (Hz) falls in any of ranges.
func FreqExcluded(freq float64, ranges []Range) bool {
	for _, r := range ranges {
		if r.Contains(freq) {
			return true
		}
	}
	return false
}
