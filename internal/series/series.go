// Package series flattens raw vendor API payloads into records grouped
// by calendar day.
package series

import "errors"

// ErrNoData reports a payload with nothing usable under the data key.
// Callers log it and continue with an empty series.
var ErrNoData = errors.New("series: no data in payload")

// Record is one decoded API element.
type Record map[string]any

// Transform reshapes a record before grouping. Returning nil drops the
// record.
type Transform func(Record) Record

// Filter decides whether a record is kept. Records it rejects vanish
// silently.
type Filter func(Record) bool

// Shape controls how many records a day may hold.
type Shape int

const (
	// Singular keeps one record per day, last decoded wins.
	Singular Shape = iota
	// Multi keeps every record for a day in arrival order.
	Multi
)

// Clone copies a record one level deep so transforms never mutate the
// decoded payload in place.
func Clone(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// Normalize groups the elements under dataKey by the day each carries
// in dayKey, applying transform then filter per element. Elements
// without a usable day are skipped. A nil payload, a missing data key
// or an empty list yield an empty map and ErrNoData.
func Normalize(raw map[string]any, dataKey, dayKey string, transform Transform, filter Filter, shape Shape) (map[string][]Record, error) {
	out := make(map[string][]Record)
	if raw == nil {
		return out, ErrNoData
	}
	elems, ok := raw[dataKey].([]any)
	if !ok || len(elems) == 0 {
		return out, ErrNoData
	}
	for _, e := range elems {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		rec := Record(m)
		if transform != nil {
			rec = transform(rec)
			if rec == nil {
				continue
			}
		}
		if filter != nil && !filter(rec) {
			continue
		}
		day, _ := rec[dayKey].(string)
		if day == "" {
			continue
		}
		if shape == Singular {
			out[day] = []Record{rec}
		} else {
			out[day] = append(out[day], rec)
		}
	}
	return out, nil
}
