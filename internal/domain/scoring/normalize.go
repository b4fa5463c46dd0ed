package scoring

import (
	"math"

	"github.com/okian/airscore/internal/domain/model"
)

const (
	// degenerateValue is assigned when every node shares the same value.
	degenerateValue = 0.5
	// degenerateTolerance is the relative width under which a range counts
	// as a single value. Means over different record counts differ in the
	// last bits even when every reading is equal.
	degenerateTolerance = 1e-9
)

type bounds struct {
	min, max float64
	ok       bool
}

func boundsOf(summaries []model.NodeMetricSummary, pick func(*model.NodeMetricSummary) model.Metric) bounds {
	var b bounds
	for i := range summaries {
		v, ok := pick(&summaries[i]).Get()
		if !ok {
			continue
		}
		if !b.ok {
			b = bounds{min: v, max: v, ok: true}
			continue
		}
		if v < b.min {
			b.min = v
		}
		if v > b.max {
			b.max = v
		}
	}
	return b
}

func (b bounds) degenerate() bool {
	return b.max-b.min <= degenerateTolerance*math.Max(1, math.Abs(b.max))
}

// scale min-max normalizes x. Absent values and metrics no node carries
// stay unknown; a zero-width range maps present values to 0.5.
func (b bounds) scale(x model.Metric, invert bool) model.Metric {
	v, ok := x.Get()
	if !ok || !b.ok {
		return model.None()
	}
	var n float64
	if b.degenerate() {
		n = degenerateValue
	} else {
		n = (v - b.min) / (b.max - b.min)
	}
	if invert {
		n = 1 - n
	}
	return model.Some(n)
}

// Normalize rescales every metric to [0,1] using the batch-wide min and max.
// TLS RTT and HTTPS delay are inverted so 1 is always best.
func Normalize(summaries []model.NodeMetricSummary) []model.NormalizedNodeMetrics {
	avg := boundsOf(summaries, func(s *model.NodeMetricSummary) model.Metric { return s.AverageSpeed })
	maxSpeed := boundsOf(summaries, func(s *model.NodeMetricSummary) model.Metric { return s.MaxSpeed })
	rtt := boundsOf(summaries, func(s *model.NodeMetricSummary) model.Metric { return s.TLSRTT })
	delay := boundsOf(summaries, func(s *model.NodeMetricSummary) model.Metric { return s.HTTPSDelay })

	out := make([]model.NormalizedNodeMetrics, len(summaries))
	for i, s := range summaries {
		out[i] = model.NormalizedNodeMetrics{
			Summary:      s,
			AverageSpeed: avg.scale(s.AverageSpeed, false),
			MaxSpeed:     maxSpeed.scale(s.MaxSpeed, false),
			TLSRTT:       rtt.scale(s.TLSRTT, true),
			HTTPSDelay:   delay.scale(s.HTTPSDelay, true),
		}
	}
	return out
}
