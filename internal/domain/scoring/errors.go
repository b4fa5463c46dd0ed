package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrInvalidWeights = errors.New("invalid scoring weights")
	ErrUnknownMode    = errors.New("unknown scoring mode")
	ErrUnknownPolicy  = errors.New("unknown unscored provider policy")
)
