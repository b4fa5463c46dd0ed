package ingest

import "errors"

// Sentinel kinds for ingestion errors. A malformed row is dropped; the rest
// of its batch is still processed.
var (
	ErrMalformed    = errors.New("malformed row")
	ErrInvalidBatch = errors.New("invalid batch")

	errBlankName = errors.New("blank node name")
)
