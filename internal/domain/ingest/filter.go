// Package ingest validates table rows extracted from speed-test screenshots
// and converts the survivors into measurement records.
package ingest

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"unicode"
)

// Field is a logical column of an extracted speed-test table.
type Field string

// Logical columns.
const (
	FieldNodeName     Field = "node_name"
	FieldAverageSpeed Field = "average_speed"
	FieldMaxSpeed     Field = "max_speed"
	FieldTLSRTT       Field = "tls_rtt"
	FieldHTTPSDelay   Field = "https_delay"
	FieldType         Field = "type"
)

// Rejection reasons.
const (
	ReasonMissing     = "missing"
	ReasonEmpty       = "empty"
	ReasonUnsupported = "unsupported"
	ReasonMalformed   = "malformed"
)

// RequiredFields lists the columns a row must carry to be scored.
var RequiredFields = []Field{FieldNodeName, FieldAverageSpeed, FieldMaxSpeed, FieldTLSRTT, FieldHTTPSDelay}

// aliases maps whitespace-free, lower-cased column names to logical fields.
// The extractor emits the Chinese headers of the speed-test tool; English
// names are accepted for hand-built batches.
var aliases = map[string]Field{
	"节点名称":         FieldNodeName,
	"nodename":     FieldNodeName,
	"node":         FieldNodeName,
	"平均速度":         FieldAverageSpeed,
	"averagespeed": FieldAverageSpeed,
	"avgspeed":     FieldAverageSpeed,
	"最高速度":         FieldMaxSpeed,
	"maxspeed":     FieldMaxSpeed,
	"tlsrtt":       FieldTLSRTT,
	"https延迟":      FieldHTTPSDelay,
	"httpsdelay":   FieldHTTPSDelay,
	"类型":           FieldType,
	"type":         FieldType,
}

// RawRow is one decoded row of the extractor output.
type RawRow map[string]any

// Row is a validated row: every required field is present and non-blank.
type Row struct {
	NodeName     Value
	AverageSpeed Value
	MaxSpeed     Value
	TLSRTT       Value
	HTTPSDelay   Value
	Type         Value
}

// Rejection records why a row was dropped.
type Rejection struct {
	Index  int    `json:"index"`
	Field  Field  `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// NormalizeKey removes all whitespace from a column name and folds case,
// so "TLS RTT" and "TLSRTT" resolve to the same field.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, key))
}

// Lookup resolves a raw column name to its logical field.
func Lookup(key string) (Field, bool) {
	f, ok := aliases[NormalizeKey(key)]
	return f, ok
}

// Filter keeps the rows that carry every required field. Dropped rows are
// reported with the first failing field; an empty input yields empty output.
func Filter(rows []RawRow) ([]Row, []Rejection) {
	valid := make([]Row, 0, len(rows))
	var rejected []Rejection
	for i, raw := range rows {
		cells, bad := resolve(raw)
		if rej, ok := check(i, cells, bad); !ok {
			rejected = append(rejected, rej)
			continue
		}
		valid = append(valid, Row{
			NodeName:     cells[FieldNodeName],
			AverageSpeed: cells[FieldAverageSpeed],
			MaxSpeed:     cells[FieldMaxSpeed],
			TLSRTT:       cells[FieldTLSRTT],
			HTTPSDelay:   cells[FieldHTTPSDelay],
			Type:         cells[FieldType],
		})
	}
	return valid, rejected
}

func check(i int, cells map[Field]Value, bad map[Field]string) (Rejection, bool) {
	for _, f := range RequiredFields {
		if _, ok := cells[f]; ok {
			continue
		}
		if reason, ok := bad[f]; ok {
			return Rejection{Index: i, Field: f, Reason: reason}, false
		}
		return Rejection{Index: i, Field: f, Reason: ReasonMissing}, false
	}
	return Rejection{}, true
}

// resolve maps raw keys to logical fields. Keys are visited in sorted order
// and the first usable value wins, so duplicate keys that differ only in
// spacing resolve deterministically.
func resolve(raw RawRow) (map[Field]Value, map[Field]string) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cells := make(map[Field]Value, len(RequiredFields)+1)
	bad := make(map[Field]string)
	for _, k := range keys {
		f, ok := Lookup(k)
		if !ok {
			continue
		}
		if _, done := cells[f]; done {
			continue
		}
		v, reason := toValue(raw[k])
		if reason != "" {
			if _, seen := bad[f]; !seen {
				bad[f] = reason
			}
			continue
		}
		cells[f] = v
	}
	return cells, bad
}

func toValue(x any) (Value, string) {
	switch t := x.(type) {
	case nil:
		return Value{}, ReasonEmpty
	case string:
		v := Text(t)
		if v.blank() {
			return Value{}, ReasonEmpty
		}
		return v, ""
	case float64:
		if math.IsNaN(t) {
			return Value{}, ReasonEmpty
		}
		return Number(t), ""
	case float32:
		return toValue(float64(t))
	case int:
		return Number(float64(t)), ""
	case int64:
		return Number(float64(t)), ""
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, ReasonUnsupported
		}
		return toValue(f)
	case []any:
		if len(t) == 0 {
			return Value{}, ReasonEmpty
		}
		return Value{}, ReasonUnsupported
	case map[string]any:
		if len(t) == 0 {
			return Value{}, ReasonEmpty
		}
		return Value{}, ReasonUnsupported
	default:
		return Value{}, ReasonUnsupported
	}
}
