package metrics

import "errors"

// ErrGatherFailed is returned when the private registry cannot be gathered.
var ErrGatherFailed = errors.New("gather metric families")
