package repository

import "errors"

// Sentinel kinds for ranking store errors.
var (
	ErrNotFound     = errors.New("provider not found")
	ErrInvalidLimit = errors.New("invalid ranking limit")
	ErrNoSnapshot   = errors.New("no ranking computed yet")
)
