package seeding

import "time"

// Runner configuration constants.
const (
	pollInterval         = 250 * time.Millisecond
	PercentageMultiplier = 100
)

// Generator constants. Every tier owns a disjoint band of each metric so a
// better tier's nodes dominate a worse tier's nodes on all four metrics.
const (
	speedBaseMB    = 5.0
	speedTierMB    = 10.0
	speedJitterMB  = 5.0
	peakFactor     = 2.0
	rttBaseMS      = 40.0
	rttTierMS      = 30.0
	rttJitterMS    = 20.0
	delayBaseMS    = 150.0
	delayTierMS    = 120.0
	delayJitterMS  = 80.0
	kbPerMB        = 1024.0
	malformedEvery = 5
)
