package oura

import (
	"testing"

	"github.com/lox/ouraview/internal/series"
)

func TestDefinitionsTable(t *testing.T) {
	defs := Definitions()
	want := []string{
		"activity", "readiness", "sleep_score", "sleep", "bedtime",
		"heart_rate", "sessions", "workouts", "sleep_periods",
	}
	if len(defs) != len(want) {
		t.Fatalf("got %d definitions, want %d", len(defs), len(want))
	}
	for _, key := range want {
		def, ok := defs[key]
		if !ok {
			t.Errorf("missing definition %q", key)
			continue
		}
		if def.Key != key {
			t.Errorf("%s: Key = %q", key, def.Key)
		}
		if def.DefaultName == "" || def.Endpoint.URL == "" || def.DayKey == "" {
			t.Errorf("%s: incomplete definition: %+v", key, def)
		}
		if !def.Supports(def.DefaultStateAttribute) {
			t.Errorf("%s: state attribute %q not in supported set", key, def.DefaultStateAttribute)
		}
		for _, v := range def.DefaultVariables {
			if !def.Supports(v) {
				t.Errorf("%s: default variable %q not in supported set", key, v)
			}
		}
		if len(def.Def.Defaults) != len(def.SupportedVariables) {
			t.Errorf("%s: defaults cover %d keys, supported has %d",
				key, len(def.Def.Defaults), len(def.SupportedVariables))
		}
		if def.Def.Shape == series.Multi && def.Def.SortKey == "" {
			t.Errorf("%s: multi shape without sort key", key)
		}
	}
}

func TestFlattenContributors(t *testing.T) {
	rec := series.Record{
		"day":   "2023-11-14",
		"score": float64(85),
		"contributors": map[string]any{
			"deep_sleep": float64(90),
			"efficiency": float64(77),
		},
	}
	got := flattenContributors(rec)
	if got["deep_sleep"] != float64(90) || got["efficiency"] != float64(77) {
		t.Errorf("contributors not lifted: %v", got)
	}
	if _, ok := got["contributors"]; ok {
		t.Error("contributors key not removed")
	}
	if _, ok := rec["deep_sleep"]; ok {
		t.Error("original record mutated")
	}
}

func TestDayFromTimestamp(t *testing.T) {
	rec := series.Record{"timestamp": "2023-11-14T03:12:00+00:00", "bpm": float64(55)}
	got := dayFromTimestamp(rec)
	if got["day"] != "2023-11-14" {
		t.Errorf("day = %v, want 2023-11-14", got["day"])
	}

	noTS := dayFromTimestamp(series.Record{"bpm": float64(55)})
	if _, ok := noTS["day"]; ok {
		t.Errorf("day derived without timestamp: %v", noTS["day"])
	}
}

func TestBedtimeWindow(t *testing.T) {
	rec := series.Record{
		"date": "2023-11-14",
		"bedtime_window": map[string]any{
			"start": float64(-3600),
			"end":   float64(0),
		},
	}
	got := bedtimeWindow(rec)
	if got["day"] != "2023-11-14" {
		t.Errorf("day = %v, want 2023-11-14", got["day"])
	}
	if got["bedtime_window_start"] != "23:00" {
		t.Errorf("bedtime_window_start = %v, want 23:00", got["bedtime_window_start"])
	}
	if got["bedtime_window_end"] != "00:00" {
		t.Errorf("bedtime_window_end = %v, want 00:00", got["bedtime_window_end"])
	}
	if _, ok := got["bedtime_window"]; ok {
		t.Error("bedtime_window key not removed")
	}
}

func TestSleepSummary(t *testing.T) {
	rec := series.Record{
		"summary_date":      "2023-11-14",
		"score":             float64(80),
		"bedtime_start":     "2023-11-14T22:31:00+02:00",
		"bedtime_end":       "2023-11-15T06:02:00+02:00",
		"breath_average":    float64(15.6),
		"temperature_delta": float64(-0.2),
		"hr_lowest":         float64(48),
		"hr_5min":           []any{float64(50), float64(52), float64(54)},
		"deep":              float64(5400),
		"rem":               float64(3600),
		"light":             float64(7200),
		"total":             float64(16200),
		"awake":             float64(1800),
		"duration":          float64(18000),
	}
	got := sleepSummary(rec)

	checks := map[string]any{
		"bedtime_start_hour":   "22:31",
		"bedtime_end_hour":     "06:02",
		"breath_average":       float64(16),
		"resting_heart_rate":   float64(48),
		"heart_rate_average":   float64(52),
		"deep_sleep_duration":  1.5,
		"rem_sleep_duration":   1.0,
		"light_sleep_duration": 2.0,
		"total_sleep_duration": 4.5,
		"awake_duration":       0.5,
		"in_bed_duration":      5.0,
	}
	for k, want := range checks {
		if got[k] != want {
			t.Errorf("%s = %v, want %v", k, got[k], want)
		}
	}
}

func TestSleepPeriod(t *testing.T) {
	rec := series.Record{
		"day":                  "2023-11-14",
		"bedtime_start":        "2023-11-13T23:45:00+00:00",
		"bedtime_end":          "2023-11-14T07:15:00+00:00",
		"deep_sleep_duration":  float64(5400),
		"rem_sleep_duration":   float64(3600),
		"light_sleep_duration": float64(9000),
		"total_sleep_duration": float64(18000),
		"awake_time":           float64(2700),
		"time_in_bed":          float64(20700),
	}
	got := sleepPeriod(rec)

	checks := map[string]any{
		"bedtime_start_hour":            "23:45",
		"bedtime_end_hour":              "07:15",
		"deep_sleep_duration_in_hours":  1.5,
		"rem_sleep_duration_in_hours":   1.0,
		"light_sleep_duration_in_hours": 2.5,
		"total_sleep_duration_in_hours": 5.0,
		"awake_duration_in_hours":       0.75,
		"in_bed_duration_in_hours":      5.75,
	}
	for k, want := range checks {
		if got[k] != want {
			t.Errorf("%s = %v, want %v", k, got[k], want)
		}
	}
}
