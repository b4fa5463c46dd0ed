package scoring

import (
	"sort"

	"github.com/okian/airscore/internal/domain/model"
)

// mean accumulates a running mean over present values only.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(x model.Metric) {
	if v, ok := x.Get(); ok {
		m.sum += v
		m.n++
	}
}

func (m mean) metric() model.Metric {
	if m.n == 0 {
		return model.None()
	}
	return model.Some(m.sum / float64(m.n))
}

type nodeAcc struct {
	summary model.NodeMetricSummary
	avg     mean
	max     mean
	rtt     mean
	delay   mean
}

// Aggregate groups records by node and averages each metric over the
// records that carry it. Records without a positive average speed are
// skipped entirely. Provider identity is taken from the first record seen
// for a node. The result is ordered by node id.
func Aggregate(records []model.MeasurementRecord) []model.NodeMetricSummary {
	acc := make(map[string]*nodeAcc)
	for i := range records {
		r := &records[i]
		if !r.HasReading() {
			continue
		}
		a, ok := acc[r.NodeID]
		if !ok {
			a = &nodeAcc{summary: model.NodeMetricSummary{
				NodeID:       r.NodeID,
				NodeName:     r.NodeName,
				ProviderID:   r.ProviderID,
				ProviderName: r.ProviderName,
			}}
			acc[r.NodeID] = a
		}
		a.avg.add(r.AverageSpeed)
		a.max.add(r.MaxSpeed)
		a.rtt.add(r.TLSRTT)
		a.delay.add(r.HTTPSDelay)
		a.summary.Count++
	}

	out := make([]model.NodeMetricSummary, 0, len(acc))
	for _, a := range acc {
		s := a.summary
		s.AverageSpeed = a.avg.metric()
		s.MaxSpeed = a.max.metric()
		s.TLSRTT = a.rtt.metric()
		s.HTTPSDelay = a.delay.metric()
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// groupByNode splits records by node id, preserving input order within a
// node. Node ids are returned sorted.
func groupByNode(records []model.MeasurementRecord) ([]string, map[string][]model.MeasurementRecord) {
	groups := make(map[string][]model.MeasurementRecord)
	for _, r := range records {
		groups[r.NodeID] = append(groups[r.NodeID], r)
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, groups
}
