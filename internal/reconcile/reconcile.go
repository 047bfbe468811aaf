// Package reconcile maps normalized day-keyed records onto the
// monitored symbolic dates of a sensor, backfilling from older days
// when the requested day has no data yet.
package reconcile

import (
	"log"
	"sort"

	"github.com/lox/ouraview/internal/datename"
	"github.com/lox/ouraview/internal/series"
)

// Def is the per-sensor-type reconciliation descriptor.
type Def struct {
	Shape series.Shape
	// SortKey orders a day's records when picking the state record.
	// Only meaningful for Multi shapes.
	SortKey string
	// Defaults is the full attribute shape published when a day has no
	// data. Keys absent from a found record survive the merge.
	Defaults map[string]any
}

// Config is the per-sensor-instance configuration.
type Config struct {
	Name               string
	MonitoredDates     []string
	MonitoredVariables []string
	MaxBackfill        int
	StateAttribute     string
}

// Result is one reconciliation pass over all monitored dates.
type Result struct {
	// Attributes maps each symbolic date name to its reconciled record
	// (Singular) or record list (Multi).
	Attributes map[string]any
	// State is the scalar state read from the first monitored date.
	// Valid only when HasState is set; an exhausted first date leaves
	// the previous state alone.
	State    any
	HasState bool
	// Substitutions counts monitored dates answered from a backfill
	// date instead of the requested one.
	Substitutions int
}

// Reconcile resolves every monitored date of cfg against data, walking
// backfill dates within the fetch window when the requested day is
// empty. resolved maps symbolic names to the dates they resolved to
// this tick; windowStart bounds how far back the search may go.
func Reconcile(data map[string][]series.Record, resolved map[string]string, windowStart string, cfg Config, def Def) Result {
	res := Result{Attributes: make(map[string]any, len(cfg.MonitoredDates))}
	for i, dateName := range cfg.MonitoredDates {
		requested := resolved[dateName]
		final, recs := search(data, dateName, requested, windowStart, cfg.MaxBackfill)
		if final != requested {
			res.Substitutions++
			if len(recs) > 0 {
				log.Printf("reconcile: %s: no data for %s (%s), using %s instead",
					cfg.Name, datename.Title(dateName), requested, final)
			} else {
				log.Printf("reconcile: %s: no data for %s (%s) and no backfill date had data",
					cfg.Name, datename.Title(dateName), requested)
			}
		}

		switch def.Shape {
		case series.Singular:
			attrs := def.defaultRecord(final)
			if len(recs) > 0 {
				merge(attrs, recs[len(recs)-1])
				if i == 0 {
					res.State = attrs[cfg.StateAttribute]
					res.HasState = true
				}
			}
			filterVariables(attrs, cfg.MonitoredVariables)
			res.Attributes[dateName] = attrs

		case series.Multi:
			items := make([]map[string]any, 0, len(recs))
			for _, rec := range recs {
				attrs := def.defaultRecord(final)
				merge(attrs, rec)
				items = append(items, attrs)
			}
			if len(items) == 0 {
				items = append(items, def.defaultRecord(final))
			} else if i == 0 {
				first := firstBySortKey(items, def.SortKey)
				res.State = first[cfg.StateAttribute]
				res.HasState = true
			}
			for _, attrs := range items {
				filterVariables(attrs, cfg.MonitoredVariables)
			}
			res.Attributes[dateName] = items
		}
	}
	return res
}

// search walks from the requested date toward windowStart until it
// finds a day with records or runs out of backfill budget. It returns
// the final date examined, found or not.
func search(data map[string][]series.Record, dateName, requested, windowStart string, maxBackfill int) (string, []series.Record) {
	date := requested
	recs := data[date]
	for attempts := 0; len(recs) == 0 && attempts < maxBackfill && date >= windowStart; attempts++ {
		next := datename.BackfillStep(dateName, date)
		if next == "" {
			break
		}
		date = next
		recs = data[date]
	}
	return date, recs
}

// defaultRecord builds the empty attribute shape for one day.
func (d Def) defaultRecord(day string) map[string]any {
	attrs := make(map[string]any, len(d.Defaults)+1)
	for k, v := range d.Defaults {
		attrs[k] = v
	}
	attrs["day"] = day
	return attrs
}

// merge lays rec over attrs. Keys rec carries win; default keys it
// lacks survive.
func merge(attrs map[string]any, rec series.Record) {
	for k, v := range rec {
		attrs[k] = v
	}
}

// firstBySortKey returns the record that sorts first by key, without
// disturbing the arrival order of items. Ties keep arrival order.
func firstBySortKey(items []map[string]any, key string) map[string]any {
	sorted := make([]map[string]any, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessValue(sorted[i][key], sorted[j][key])
	})
	return sorted[0]
}

// lessValue compares the value types that appear in sort keys,
// timestamps as strings and counters as numbers. Mismatched or missing
// values compare as equal so the stable sort keeps arrival order.
func lessValue(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	case float64:
		bv, ok := b.(float64)
		return ok && av < bv
	}
	return false
}

// filterVariables trims attrs to the monitored allow-list.
func filterVariables(attrs map[string]any, monitored []string) {
	allowed := make(map[string]bool, len(monitored))
	for _, v := range monitored {
		allowed[v] = true
	}
	for k := range attrs {
		if !allowed[k] {
			delete(attrs, k)
		}
	}
}
