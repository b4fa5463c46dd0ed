package scoring

import (
	"math"
	"time"

	"github.com/okian/airscore/internal/domain/model"
)

// Decay scoring constants. Records up to a week old count fully, weight
// falls linearly to zero at 30 days, and anything older keeps a small floor.
const (
	freshDays       = 7.0
	staleDays       = 30.0
	staleWeight     = 0.1
	hoursPerDay     = 24.0
	decaySpeedShare = 0.7
	decayRTTShare   = 0.3
	decayRTTScale   = 100.0
	rttBestMS       = 50.0
	rttWorstMS      = 500.0
)

// ScoreNode combines normalized metrics into one score in [0,1]. Unknown
// metrics contribute 0 and the weights are not renormalized, so nodes with
// incomplete data score lower than nodes with the same complete data.
func ScoreNode(n *model.NormalizedNodeMetrics, w Weights) float64 {
	s := w.AverageSpeed*n.AverageSpeed.Or(0) +
		w.MaxSpeed*n.MaxSpeed.Or(0) +
		w.TLSRTT*n.TLSRTT.Or(0) +
		w.HTTPSDelay*n.HTTPSDelay.Or(0)
	return clamp(s, 0, 1)
}

// ScoreNodes scores every normalized node, preserving order.
func ScoreNodes(nodes []model.NormalizedNodeMetrics, w Weights) []model.NodeScore {
	out := make([]model.NodeScore, len(nodes))
	for i := range nodes {
		s := &nodes[i].Summary
		out[i] = model.NodeScore{
			NodeID:       s.NodeID,
			NodeName:     s.NodeName,
			ProviderID:   s.ProviderID,
			ProviderName: s.ProviderName,
			Score:        ScoreNode(&nodes[i], w),
			Samples:      s.Count,
		}
	}
	return out
}

// DecayWeight returns the weight of a record observed age ago.
func DecayWeight(age time.Duration) float64 {
	days := age.Hours() / hoursPerDay
	switch {
	case days <= freshDays:
		return 1
	case days <= staleDays:
		return math.Max(0, 1-(days-freshDays)/(staleDays-freshDays))
	default:
		return staleWeight
	}
}

// rttScore maps a TLS RTT onto [0,1]: 50ms or less is 1, 500ms or more is 0.
func rttScore(rtt float64) float64 {
	return clamp((rttWorstMS-rtt)/(rttWorstMS-rttBestMS), 0, 1)
}

// DecayScore combines one node's records without aggregating them first.
// Each eligible record scores 0.7*speed + 0.3*100*rttScore and records are
// averaged with DecayWeight. Records without a positive speed, a positive
// TLS RTT or a timestamp are skipped. samples counts the eligible records;
// zero means the node has no decay score.
func DecayScore(records []model.MeasurementRecord, now time.Time) (score float64, samples int) {
	var sum, total float64
	for i := range records {
		r := &records[i]
		if !r.HasReading() || r.ObservedAt.IsZero() {
			continue
		}
		rtt, has := r.TLSRTT.Get()
		if !has || rtt <= 0 {
			continue
		}
		samples++
		w := DecayWeight(now.Sub(r.ObservedAt))
		speed, _ := r.AverageSpeed.Get()
		sum += w * (decaySpeedShare*speed + decayRTTShare*decayRTTScale*rttScore(rtt))
		total += w
	}
	if samples == 0 || total == 0 {
		return 0, samples
	}
	return sum / total, samples
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
