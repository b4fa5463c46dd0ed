package ingest

import (
	"fmt"
	"strings"
	"time"
)

// TestTimeLayout is the timestamp format the extractor writes into test_time.
const TestTimeLayout = "2006-01-02 15:04:05"

// Batch is the extractor output for one speed-test screenshot.
type Batch struct {
	// ID identifies the batch for idempotency. When empty the picture md5
	// is used instead.
	ID           string   `json:"batch_id,omitempty"`
	PicMD5       string   `json:"pic_md5,omitempty"`
	PicID        int64    `json:"pic_id,omitempty"`
	ProviderID   int64    `json:"provider_id"`
	ProviderName string   `json:"provider_name"`
	TestTime     string   `json:"test_time,omitempty"`
	HostInfo     string   `json:"host_info,omitempty"`
	Rows         []RawRow `json:"test_record_list"`
}

// Key returns the idempotency key of the batch.
func (b *Batch) Key() string {
	if id := strings.TrimSpace(b.ID); id != "" {
		return id
	}
	return strings.TrimSpace(b.PicMD5)
}

// Validate checks the batch envelope. Rows are validated separately so a
// bad row never rejects its whole batch.
func (b *Batch) Validate() error {
	if b.ProviderID <= 0 {
		return fmt.Errorf("%w: provider_id must be positive", ErrInvalidBatch)
	}
	if b.Key() == "" {
		return fmt.Errorf("%w: batch_id or pic_md5 is required", ErrInvalidBatch)
	}
	if _, err := b.observedAt(); err != nil {
		return err
	}
	return nil
}

// Source returns the provenance applied to every record of the batch.
func (b *Batch) Source() (Source, error) {
	at, err := b.observedAt()
	if err != nil {
		return Source{}, err
	}
	return Source{
		ProviderID:   b.ProviderID,
		ProviderName: strings.TrimSpace(b.ProviderName),
		ObservedAt:   at,
		HostInfo:     b.HostInfo,
	}, nil
}

func (b *Batch) observedAt() (time.Time, error) {
	t, err := ParseTestTime(b.TestTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	return t, nil
}

// TestTimeZone is the zone of timestamps read off speed-test screenshots.
// The tool prints local time (CST, UTC+8) without an offset.
var TestTimeZone = time.FixedZone("CST", 8*60*60)

// ParseTestTime reads a test timestamp in TestTimeLayout (taken as
// TestTimeZone) or RFC 3339. Blank input yields the zero time.
func ParseTestTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(TestTimeLayout, s, TestTimeZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("test_time %q: %w", s, err)
	}
	return t, nil
}
