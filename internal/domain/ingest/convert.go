package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/airscore/internal/domain/model"
)

// Source describes where a batch of rows came from: the provider whose
// screenshot was read and when the test was run.
type Source struct {
	ProviderID   int64
	ProviderName string
	ObservedAt   time.Time
	HostInfo     string
}

// NodeID derives the node identity from provider and node name. A provider
// never lists two nodes under the same name.
func NodeID(providerID int64, nodeName string) string {
	return fmt.Sprintf("%d:%s", providerID, strings.TrimSpace(nodeName))
}

// Convert turns a validated row into a measurement record.
func Convert(row Row, src Source) (model.MeasurementRecord, error) {
	rec, field, err := convert(row, src)
	if err != nil {
		return model.MeasurementRecord{}, fmt.Errorf("%w: %s: %w", ErrMalformed, field, err)
	}
	return rec, nil
}

func convert(row Row, src Source) (model.MeasurementRecord, Field, error) {
	name := strings.TrimSpace(row.NodeName.String())
	if name == "" {
		return model.MeasurementRecord{}, FieldNodeName, errBlankName
	}
	rtt, err := row.TLSRTT.Latency()
	if err != nil {
		return model.MeasurementRecord{}, FieldTLSRTT, err
	}
	delay, err := row.HTTPSDelay.Latency()
	if err != nil {
		return model.MeasurementRecord{}, FieldHTTPSDelay, err
	}
	return model.MeasurementRecord{
		ProviderID:   src.ProviderID,
		ProviderName: src.ProviderName,
		NodeID:       NodeID(src.ProviderID, name),
		NodeName:     name,
		AverageSpeed: row.AverageSpeed.Speed(),
		MaxSpeed:     row.MaxSpeed.Speed(),
		TLSRTT:       rtt,
		HTTPSDelay:   delay,
		ObservedAt:   src.ObservedAt,
		HostInfo:     src.HostInfo,
	}, "", nil
}

// ConvertAll filters and converts a batch. Rows that fail conversion are
// reported as malformed alongside the validation rejections.
func ConvertAll(rows []RawRow, src Source) ([]model.MeasurementRecord, []Rejection) {
	valid, rejected := Filter(rows)
	records := make([]model.MeasurementRecord, 0, len(valid))
	// Filter drops rows, so map valid rows back to their input index.
	idx := validIndexes(len(rows), rejected)
	for i, row := range valid {
		rec, field, err := convert(row, src)
		if err != nil {
			rejected = append(rejected, Rejection{Index: idx[i], Field: field, Reason: ReasonMalformed})
			continue
		}
		records = append(records, rec)
	}
	return records, rejected
}

func validIndexes(n int, rejected []Rejection) []int {
	dropped := make(map[int]struct{}, len(rejected))
	for _, r := range rejected {
		dropped[r.Index] = struct{}{}
	}
	out := make([]int, 0, n-len(dropped))
	for i := 0; i < n; i++ {
		if _, ok := dropped[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}
