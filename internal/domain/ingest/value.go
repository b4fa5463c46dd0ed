package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/okian/airscore/internal/domain/model"
	"github.com/okian/airscore/internal/domain/units"
)

// Value is one cell of an extracted table row. Cells arrive either as text
// ("46.1MB", "137ms") or as numbers already in canonical units.
type Value struct {
	text    string
	num     float64
	numeric bool
}

// Text returns a text cell.
func Text(s string) Value { return Value{text: s} }

// Number returns a numeric cell.
func Number(v float64) Value { return Value{num: v, numeric: true} }

// String renders the cell for logs and node names.
func (v Value) String() string {
	if v.numeric {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.text
}

// Speed converts the cell to MB/s.
func (v Value) Speed() model.Metric {
	if v.numeric {
		return model.Some(v.num)
	}
	return units.ParseSpeed(v.text)
}

// Latency converts the cell to milliseconds.
func (v Value) Latency() (model.Metric, error) {
	if v.numeric {
		return model.Some(v.num), nil
	}
	return units.ParseLatency(v.text)
}

// blank reports whether the cell carries nothing usable.
func (v Value) blank() bool {
	if v.numeric {
		return math.IsNaN(v.num)
	}
	return strings.TrimSpace(v.text) == ""
}
