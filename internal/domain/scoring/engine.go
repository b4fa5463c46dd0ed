// Package scoring turns a batch of speed-test records into node scores and
// a provider ranking.
//
// The batch pipeline is: Aggregate (per-node means) -> Normalize (min-max
// across the batch, latencies inverted) -> ScoreNode (fixed weights) ->
// Rank (P75 per provider). DecayScore is an alternative node scorer that
// combines a node's raw records with time-decay weights.
//
// Everything here is a pure function of its input: no I/O, no shared state.
package scoring

import (
	"fmt"
	"time"

	"github.com/okian/airscore/internal/domain/model"
)

// Mode selects how a node's records are combined into its score.
type Mode string

// Scoring modes.
const (
	// ModeBatch averages records per node, min-max normalizes across the
	// batch and applies the weight vector. Scores lie in [0,1].
	ModeBatch Mode = "batch"
	// ModeDecay weights each record by its age and averages a raw
	// speed/RTT composite. Scores are unbounded above.
	ModeDecay Mode = "decay"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeBatch, ModeDecay:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Batch is one materialized snapshot of records plus the provider directory.
type Batch struct {
	Records   []model.MeasurementRecord
	Directory []model.Provider
	// Now anchors record ages in decay mode. Zero means the engine clock.
	Now time.Time
}

// Result is the output of one scoring run.
type Result struct {
	Mode           Mode                    `json:"mode"`
	Rankings       []model.ProviderRanking `json:"rankings"`
	Nodes          []model.NodeScore       `json:"nodes"`
	ValidRecords   int                     `json:"valid_records"`
	DroppedRecords int                     `json:"dropped_records"`
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithWeights sets the metric weights used in batch mode.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = w
	}
}

// WithMode sets the scoring mode.
func WithMode(m Mode) Option {
	return func(e *Engine) {
		if m != "" {
			e.mode = m
		}
	}
}

// WithUnscoredPolicy sets how unscored directory providers are ranked.
func WithUnscoredPolicy(p UnscoredPolicy) Option {
	return func(e *Engine) {
		if p != "" {
			e.policy = p
		}
	}
}

// WithClock sets the clock used when a batch carries no Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine runs the scoring pipeline. An Engine is immutable after New and
// safe for concurrent use.
type Engine struct {
	weights Weights
	mode    Mode
	policy  UnscoredPolicy
	now     func() time.Time
}

// New creates an Engine. Defaults: DefaultWeights, ModeBatch, ZeroFill.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		weights: DefaultWeights(),
		mode:    ModeBatch,
		policy:  ZeroFill,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.weights.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseMode(string(e.mode)); err != nil {
		return nil, err
	}
	if _, err := ParseUnscoredPolicy(string(e.policy)); err != nil {
		return nil, err
	}
	return e, nil
}

// Mode returns the active scoring mode.
func (e *Engine) Mode() Mode { return e.mode }

// Weights returns the active weights.
func (e *Engine) Weights() Weights { return e.weights }

// Policy returns the active unscored provider policy.
func (e *Engine) Policy() UnscoredPolicy { return e.policy }

// Run scores a batch. An empty batch yields an empty ranking (or the
// zero-filled directory), never an error.
func (e *Engine) Run(b Batch) Result {
	valid := make([]model.MeasurementRecord, 0, len(b.Records))
	for i := range b.Records {
		if b.Records[i].HasReading() {
			valid = append(valid, b.Records[i])
		}
	}

	var nodes []model.NodeScore
	switch e.mode {
	case ModeDecay:
		now := b.Now
		if now.IsZero() {
			now = e.now()
		}
		nodes = decayNodes(valid, now)
	default:
		nodes = ScoreNodes(Normalize(Aggregate(valid)), e.weights)
	}
	if nodes == nil {
		nodes = []model.NodeScore{}
	}

	return Result{
		Mode:           e.mode,
		Rankings:       Rank(nodes, b.Directory, e.policy),
		Nodes:          nodes,
		ValidRecords:   len(valid),
		DroppedRecords: len(b.Records) - len(valid),
	}
}

func decayNodes(records []model.MeasurementRecord, now time.Time) []model.NodeScore {
	ids, groups := groupByNode(records)
	out := make([]model.NodeScore, 0, len(ids))
	for _, id := range ids {
		recs := groups[id]
		score, samples := DecayScore(recs, now)
		if samples == 0 {
			continue
		}
		first := recs[0]
		out = append(out, model.NodeScore{
			NodeID:       id,
			NodeName:     first.NodeName,
			ProviderID:   first.ProviderID,
			ProviderName: first.ProviderName,
			Score:        score,
			Samples:      samples,
		})
	}
	return out
}
