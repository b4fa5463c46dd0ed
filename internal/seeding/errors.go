package seeding

import "errors"

var (
	// ErrInvalidConfig reports an unusable seeding configuration.
	ErrInvalidConfig = errors.New("invalid seeding config")
	// ErrUnhealthy reports that the service did not answer its health check.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrNotSettled reports that ingestion did not finish in time.
	ErrNotSettled = errors.New("ingestion did not settle")
	// ErrOrderMismatch reports a ranking that disagrees with the plan.
	ErrOrderMismatch = errors.New("ranking order mismatch")
)
