package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/airscore/internal/domain/model"
)

// RankQuantile is the node-score quantile used as the primary ranking key.
// It rewards a provider's stronger nodes rather than its average node.
const RankQuantile = 0.75

// UnscoredPolicy decides what happens to directory providers that have no
// scored nodes in a run.
type UnscoredPolicy string

// Unscored provider policies.
const (
	// ZeroFill lists every directory provider; unscored ones get zeros.
	ZeroFill UnscoredPolicy = "zero_fill"
	// Omit lists only providers with at least one scored node.
	Omit UnscoredPolicy = "omit"
)

// ParseUnscoredPolicy validates a policy name.
func ParseUnscoredPolicy(s string) (UnscoredPolicy, error) {
	switch p := UnscoredPolicy(s); p {
	case ZeroFill, Omit:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Percentile returns the q-quantile of values using linear interpolation
// between order statistics at rank q*(n-1). It returns 0 for no values.
// values is not modified.
func Percentile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	rank := q * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return s[lo]
	}
	return s[lo] + (rank-float64(lo))*(s[hi]-s[lo])
}

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Rank groups node scores by provider and orders providers by P75 desc,
// then mean desc, then provider id asc. Directory names take precedence
// over names carried on the scores. Scored providers missing from the
// directory are always ranked.
func Rank(scores []model.NodeScore, directory []model.Provider, policy UnscoredPolicy) []model.ProviderRanking {
	byProvider := make(map[int64]*model.ProviderRanking)
	get := func(id int64, name string) *model.ProviderRanking {
		r, ok := byProvider[id]
		if !ok {
			r = &model.ProviderRanking{ProviderID: id, ProviderName: name, Nodes: []model.NodeScore{}}
			byProvider[id] = r
		}
		return r
	}

	for _, s := range scores {
		r := get(s.ProviderID, s.ProviderName)
		r.Nodes = append(r.Nodes, s)
	}
	for _, p := range directory {
		if r, ok := byProvider[p.ID]; ok {
			if p.Name != "" {
				r.ProviderName = p.Name
			}
			continue
		}
		if policy == ZeroFill {
			get(p.ID, p.Name)
		}
	}

	out := make([]model.ProviderRanking, 0, len(byProvider))
	for _, r := range byProvider {
		values := make([]float64, len(r.Nodes))
		for i, n := range r.Nodes {
			values[i] = n.Score
		}
		r.P75 = Percentile(values, RankQuantile)
		r.Mean = Mean(values)
		r.NodeCount = len(r.Nodes)
		sort.Slice(r.Nodes, func(i, j int) bool {
			if r.Nodes[i].Score != r.Nodes[j].Score {
				return r.Nodes[i].Score > r.Nodes[j].Score
			}
			return r.Nodes[i].NodeID < r.Nodes[j].NodeID
		})
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.P75 != b.P75 {
			return a.P75 > b.P75
		}
		if a.Mean != b.Mean {
			return a.Mean > b.Mean
		}
		return a.ProviderID < b.ProviderID
	})
	return out
}
