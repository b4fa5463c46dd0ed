package units

import "errors"

// Sentinel kinds for unit parsing errors.
var (
	ErrMalformed = errors.New("malformed measurement")
)
