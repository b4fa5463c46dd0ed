// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"math"
)

// Metric is an optional measurement value. The zero Metric is absent.
// Absent is distinct from a present zero: a zero speed is a real reading
// (node unreachable), an absent one was never measured.
type Metric struct {
	value float64
	ok    bool
}

// Some returns a present Metric. NaN and infinities are stored as absent so
// they never leak into min/max or weighted sums.
func Some(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Metric{}
	}
	return Metric{value: v, ok: true}
}

// None returns an absent Metric.
func None() Metric { return Metric{} }

// Get returns the value and whether it is present.
func (m Metric) Get() (float64, bool) { return m.value, m.ok }

// Valid reports whether the metric is present.
func (m Metric) Valid() bool { return m.ok }

// Or returns the value, or fallback when absent.
func (m Metric) Or(fallback float64) float64 {
	if !m.ok {
		return fallback
	}
	return m.value
}

// MarshalJSON encodes absent metrics as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.ok {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// UnmarshalJSON accepts a number or null.
func (m *Metric) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = Metric{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*m = Some(v)
	return nil
}
