// Package units converts raw measurement strings read off speed-test
// screenshots into numbers in canonical units (MB/s and milliseconds).
package units

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/okian/airscore/internal/domain/model"
)

// suffixLen is the width of the unit suffix on every supported token ("MB", "ms").
const suffixLen = 2

const bytesPerUnit = 1024

// speedFactors converts a speed unit to MB/s.
var speedFactors = map[string]float64{
	"KB": 1.0 / bytesPerUnit,
	"MB": 1,
	"GB": bytesPerUnit,
	"TB": bytesPerUnit * bytesPerUnit,
}

// ParseSpeed converts a token such as "46.1MB" or "47.2 KB" to MB/s.
//
// Empty input is absent. A bare number is taken to be MB/s already. An
// unknown unit, a non-numeric prefix or a negative value yields a present 0:
// the screenshot showed something, and it was not a usable speed.
func ParseSpeed(raw string) model.Metric {
	s := stripSpace(raw)
	if s == "" {
		return model.None()
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return speed(v)
	}
	if len(s) <= suffixLen {
		return model.Some(0)
	}

	num, unit := s[:len(s)-suffixLen], strings.ToUpper(s[len(s)-suffixLen:])
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return model.Some(0)
	}
	factor, ok := speedFactors[unit]
	if !ok {
		return model.Some(0)
	}
	return speed(v * factor)
}

func speed(v float64) model.Metric {
	if v < 0 {
		return model.Some(0)
	}
	return model.Some(v)
}

// ParseLatency strips the two-character unit suffix ("ms") from a latency
// token and parses the remainder. No unit conversion is performed.
// Empty input is absent; an unparseable remainder is ErrMalformed.
func ParseLatency(raw string) (model.Metric, error) {
	s := stripSpace(raw)
	if s == "" {
		return model.None(), nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return model.Some(v), nil
	}
	if len(s) <= suffixLen {
		return model.None(), fmt.Errorf("%w: latency %q", ErrMalformed, raw)
	}
	v, err := strconv.ParseFloat(s[:len(s)-suffixLen], 64)
	if err != nil {
		return model.None(), fmt.Errorf("%w: latency %q", ErrMalformed, raw)
	}
	return model.Some(v), nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
