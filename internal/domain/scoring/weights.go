package scoring

import (
	"fmt"
	"math"
)

// weightSumTolerance absorbs float rounding when checking that weights sum to 1.
const weightSumTolerance = 1e-9

// Weights sets the contribution of each normalized metric to a node score.
type Weights struct {
	AverageSpeed float64 `json:"average_speed" koanf:"average_speed"`
	MaxSpeed     float64 `json:"max_speed" koanf:"max_speed"`
	TLSRTT       float64 `json:"tls_rtt" koanf:"tls_rtt"`
	HTTPSDelay   float64 `json:"https_delay" koanf:"https_delay"`
}

// DefaultWeights favours HTTPS delay, then average speed, TLS RTT and max speed.
func DefaultWeights() Weights {
	return Weights{
		AverageSpeed: 0.3,
		MaxSpeed:     0.1,
		TLSRTT:       0.2,
		HTTPSDelay:   0.4,
	}
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.AverageSpeed + w.MaxSpeed + w.TLSRTT + w.HTTPSDelay
}

// Validate checks that no weight is negative and that they sum to 1.
func (w Weights) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"average_speed", w.AverageSpeed},
		{"max_speed", w.MaxSpeed},
		{"tls_rtt", w.TLSRTT},
		{"https_delay", w.HTTPSDelay},
	} {
		if f.value < 0 || math.IsNaN(f.value) {
			return fmt.Errorf("%w: %s weight %v", ErrInvalidWeights, f.name, f.value)
		}
	}
	if math.Abs(w.Sum()-1) > weightSumTolerance {
		return fmt.Errorf("%w: weights sum to %v", ErrInvalidWeights, w.Sum())
	}
	return nil
}
