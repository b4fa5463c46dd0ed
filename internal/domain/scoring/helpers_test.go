package scoring_test

import (
	"fmt"
	"time"

	"github.com/okian/airscore/internal/domain/model"
)

// rec builds a record with all four metrics present. Pass -1 for a metric to
// leave it absent.
func rec(provider int64, node string, avg, maxSpeed, rtt, delay float64) model.MeasurementRecord {
	opt := func(v float64) model.Metric {
		if v < 0 {
			return model.None()
		}
		return model.Some(v)
	}
	return model.MeasurementRecord{
		ProviderID:   provider,
		ProviderName: fmt.Sprintf("provider-%d", provider),
		NodeID:       fmt.Sprintf("%d:%s", provider, node),
		NodeName:     node,
		AverageSpeed: opt(avg),
		MaxSpeed:     opt(maxSpeed),
		TLSRTT:       opt(rtt),
		HTTPSDelay:   opt(delay),
	}
}

func at(r model.MeasurementRecord, t time.Time) model.MeasurementRecord {
	r.ObservedAt = t
	return r
}

func nodeScores(provider int64, scores ...float64) []model.NodeScore {
	out := make([]model.NodeScore, len(scores))
	for i, s := range scores {
		out[i] = model.NodeScore{
			NodeID:       fmt.Sprintf("%d:n%d", provider, i),
			ProviderID:   provider,
			ProviderName: fmt.Sprintf("provider-%d", provider),
			Score:        s,
		}
	}
	return out
}
