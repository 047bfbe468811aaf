package oura

import (
	"math"

	"github.com/lox/ouraview/internal/datename"
	"github.com/lox/ouraview/internal/reconcile"
	"github.com/lox/ouraview/internal/series"
)

// SensorDef describes one sensor type: where its data comes from, how
// records reshape, and the defaults its configuration falls back to.
type SensorDef struct {
	Key         string
	DefaultName string
	Endpoint    Endpoint
	// DayKey is the record key holding the calendar day after
	// Transform ran.
	DayKey                string
	Def                   reconcile.Def
	DefaultStateAttribute string
	DefaultVariables      []string
	SupportedVariables    []string
	Transform             series.Transform
	Filter                series.Filter
}

// Supports reports whether variable is in the sensor's supported set.
func (d SensorDef) Supports(variable string) bool {
	for _, v := range d.SupportedVariables {
		if v == variable {
			return true
		}
	}
	return false
}

func defaultsFor(supported []string) map[string]any {
	defaults := make(map[string]any, len(supported))
	for _, v := range supported {
		defaults[v] = nil
	}
	return defaults
}

// Definitions returns the sensor descriptor table, keyed by the
// configuration key of each sensor type.
func Definitions() map[string]SensorDef {
	defs := map[string]SensorDef{}
	add := func(d SensorDef) {
		d.Def.Defaults = defaultsFor(d.SupportedVariables)
		defs[d.Key] = d
	}

	add(SensorDef{
		Key:                   "activity",
		DefaultName:           "oura_activity",
		Endpoint:              EndpointDailyActivity,
		DayKey:                "day",
		Def:                   reconcile.Def{Shape: series.Singular},
		DefaultStateAttribute: "score",
		DefaultVariables: []string{
			"active_calories", "high_activity_time", "low_activity_time",
			"medium_activity_time", "non_wear_time", "resting_time",
			"sedentary_time", "score", "target_calories", "total_calories",
		},
		SupportedVariables: []string{
			"class_5_min", "score", "active_calories", "average_met_minutes",
			"day", "meet_daily_targets", "move_every_hour", "recovery_time",
			"stay_active", "training_frequency", "training_volume",
			"equivalent_walking_distance", "high_activity_met_minutes",
			"high_activity_time", "inactivity_alerts",
			"low_activity_met_minutes", "low_activity_time",
			"medium_activity_met_minutes", "medium_activity_time", "met",
			"meters_to_target", "non_wear_time", "resting_time",
			"sedentary_met_minutes", "sedentary_time", "steps",
			"target_calories", "target_meters", "timestamp", "total_calories",
		},
		Transform: flattenContributors,
	})

	add(SensorDef{
		Key:                   "readiness",
		DefaultName:           "oura_readiness",
		Endpoint:              EndpointDailyReadiness,
		DayKey:                "day",
		Def:                   reconcile.Def{Shape: series.Singular},
		DefaultStateAttribute: "score",
		DefaultVariables: []string{
			"activity_balance", "body_temperature", "hrv_balance",
			"previous_day_activity", "previous_night", "day",
			"recovery_index", "resting_heart_rate", "score", "sleep_balance",
		},
		SupportedVariables: []string{
			"activity_balance", "body_temperature", "day", "hrv_balance",
			"previous_day_activity", "previous_night", "recovery_index",
			"resting_heart_rate", "sleep_balance", "score",
			"temperature_deviation", "temperature_trend_deviation",
			"timestamp",
		},
		Transform: flattenContributors,
	})

	add(SensorDef{
		Key:                   "sleep_score",
		DefaultName:           "oura_sleep_score",
		Endpoint:              EndpointDailySleep,
		DayKey:                "day",
		Def:                   reconcile.Def{Shape: series.Singular},
		DefaultStateAttribute: "score",
		DefaultVariables:      []string{"day", "score"},
		SupportedVariables: []string{
			"day", "deep_sleep", "efficiency", "latency", "rem_sleep",
			"restfulness", "score", "timing", "timestamp", "total_sleep",
		},
		Transform: flattenContributors,
	})

	add(SensorDef{
		Key:                   "sleep",
		DefaultName:           "oura_sleep",
		Endpoint:              EndpointSleepV1,
		DayKey:                "summary_date",
		Def:                   reconcile.Def{Shape: series.Singular},
		DefaultStateAttribute: "score",
		DefaultVariables: []string{
			"bedtime_start_hour", "bedtime_end_hour", "breath_average",
			"temperature_delta", "resting_heart_rate", "heart_rate_average",
			"deep_sleep_duration", "rem_sleep_duration",
			"light_sleep_duration", "total_sleep_duration", "awake_duration",
			"in_bed_duration", "day",
		},
		SupportedVariables: []string{
			"bedtime_start_hour", "bedtime_end_hour", "breath_average",
			"temperature_delta", "resting_heart_rate", "heart_rate_average",
			"deep_sleep_duration", "rem_sleep_duration",
			"light_sleep_duration", "total_sleep_duration", "awake_duration",
			"in_bed_duration", "day", "score", "summary_date",
		},
		Transform: sleepSummary,
	})

	add(SensorDef{
		Key:                   "bedtime",
		DefaultName:           "oura_bedtime",
		Endpoint:              EndpointBedtime,
		DayKey:                "day",
		Def:                   reconcile.Def{Shape: series.Singular},
		DefaultStateAttribute: "bedtime_window_start",
		DefaultVariables: []string{
			"bedtime_window_start", "bedtime_window_end", "day",
		},
		SupportedVariables: []string{
			"bedtime_window_start", "bedtime_window_end", "day",
		},
		Transform: bedtimeWindow,
	})

	add(SensorDef{
		Key:                   "heart_rate",
		DefaultName:           "oura_heart_rate",
		Endpoint:              EndpointHeartRate,
		DayKey:                "day",
		Def:                   reconcile.Def{Shape: series.Multi, SortKey: "timestamp"},
		DefaultStateAttribute: "bpm",
		DefaultVariables:      []string{"day", "bpm", "source", "timestamp"},
		SupportedVariables:    []string{"day", "bpm", "source", "timestamp"},
		Transform:             dayFromTimestamp,
	})

	add(SensorDef{
		Key:                   "sessions",
		DefaultName:           "oura_sessions",
		Endpoint:              EndpointSessions,
		DayKey:                "day",
		Def:                   reconcile.Def{Shape: series.Multi, SortKey: "start_datetime"},
		DefaultStateAttribute: "type",
		DefaultVariables: []string{
			"day", "start_datetime", "end_datetime", "type", "heart_rate",
			"motion_count",
		},
		SupportedVariables: []string{
			"day", "start_datetime", "end_datetime", "type", "heart_rate",
			"heart_rate_variability", "mood", "motion_count",
		},
	})

	add(SensorDef{
		Key:                   "workouts",
		DefaultName:           "oura_workouts",
		Endpoint:              EndpointWorkouts,
		DayKey:                "day",
		Def:                   reconcile.Def{Shape: series.Multi, SortKey: "start_datetime"},
		DefaultStateAttribute: "activity",
		DefaultVariables:      []string{"activity", "calories", "day", "intensity"},
		SupportedVariables: []string{
			"activity", "calories", "day", "distance", "end_datetime",
			"intensity", "label", "source", "start_datetime",
		},
	})

	add(SensorDef{
		Key:                   "sleep_periods",
		DefaultName:           "oura_sleep_periods",
		Endpoint:              EndpointSleepPeriods,
		DayKey:                "day",
		Def:                   reconcile.Def{Shape: series.Multi, SortKey: "bedtime_start"},
		DefaultStateAttribute: "efficiency",
		DefaultVariables: []string{
			"average_breath", "average_heart_rate", "bedtime_start_hour",
			"bedtime_end_hour", "day", "total_sleep_duration_in_hours",
			"type",
		},
		SupportedVariables: []string{
			"average_breath", "average_heart_rate", "average_hrv", "day",
			"awake_time", "awake_duration_in_hours", "bedtime_end",
			"bedtime_end_hour", "bedtime_start", "bedtime_start_hour",
			"deep_sleep_duration", "deep_sleep_duration_in_hours",
			"efficiency", "heart_rate", "hrv", "in_bed_duration_in_hours",
			"latency", "light_sleep_duration",
			"light_sleep_duration_in_hours", "low_battery_alert",
			"lowest_heart_rate", "movement_30_sec", "period",
			"readiness_score_delta", "rem_sleep_duration",
			"rem_sleep_duration_in_hours", "restless_periods",
			"sleep_phase_5_min", "sleep_score_delta", "time_in_bed",
			"total_sleep_duration", "total_sleep_duration_in_hours", "type",
		},
		Transform: sleepPeriod,
	})

	return defs
}

// flattenContributors lifts the nested contributors object of the v2
// daily endpoints into top-level keys.
func flattenContributors(rec series.Record) series.Record {
	out := series.Clone(rec)
	if contributors, ok := out["contributors"].(map[string]any); ok {
		for k, v := range contributors {
			out[k] = v
		}
		delete(out, "contributors")
	}
	return out
}

// dayFromTimestamp derives the day key of a heart rate measurement
// from its timestamp.
func dayFromTimestamp(rec series.Record) series.Record {
	out := series.Clone(rec)
	if ts, ok := out["timestamp"].(string); ok {
		if day := datename.DayOf(ts); day != "" {
			out["day"] = day
		}
	}
	return out
}

// bedtimeWindow reshapes a v1 ideal bedtime record: the date key
// becomes day, the window offsets become HH:MM clock times.
func bedtimeWindow(rec series.Record) series.Record {
	out := series.Clone(rec)
	if date, ok := out["date"].(string); ok {
		out["day"] = date
	}
	if window, ok := out["bedtime_window"].(map[string]any); ok {
		if start, ok := asInt(window["start"]); ok {
			out["bedtime_window_start"] = datename.ClockFromMidnight(start)
		}
		if end, ok := asInt(window["end"]); ok {
			out["bedtime_window_end"] = datename.ClockFromMidnight(end)
		}
		delete(out, "bedtime_window")
	}
	return out
}

// sleepSummary derives the human-friendly metrics of a v1 sleep
// summary: clock times for going to bed and waking, durations in
// hours, averaged heart rate.
func sleepSummary(rec series.Record) series.Record {
	out := series.Clone(rec)

	if ts, ok := out["bedtime_start"].(string); ok {
		out["bedtime_start_hour"] = datename.HourMinute(ts)
	}
	if ts, ok := out["bedtime_end"].(string); ok {
		out["bedtime_end_hour"] = datename.HourMinute(ts)
	}
	if breath, ok := out["breath_average"].(float64); ok {
		out["breath_average"] = math.Round(breath)
	}
	out["resting_heart_rate"] = out["hr_lowest"]
	if samples, ok := out["hr_5min"].([]any); ok && len(samples) > 0 {
		sum := 0.0
		count := 0
		for _, s := range samples {
			if v, ok := s.(float64); ok {
				sum += v
				count++
			}
		}
		if count > 0 {
			out["heart_rate_average"] = math.Round(sum / float64(count))
		}
	}
	out["deep_sleep_duration"] = datename.SecondsToHours(out["deep"])
	out["rem_sleep_duration"] = datename.SecondsToHours(out["rem"])
	out["light_sleep_duration"] = datename.SecondsToHours(out["light"])
	out["total_sleep_duration"] = datename.SecondsToHours(out["total"])
	out["awake_duration"] = datename.SecondsToHours(out["awake"])
	out["in_bed_duration"] = datename.SecondsToHours(out["duration"])
	return out
}

// sleepPeriod derives the per-period metrics of a v2 sleep record.
func sleepPeriod(rec series.Record) series.Record {
	out := series.Clone(rec)
	if ts, ok := out["bedtime_start"].(string); ok {
		out["bedtime_start_hour"] = datename.HourMinute(ts)
	}
	if ts, ok := out["bedtime_end"].(string); ok {
		out["bedtime_end_hour"] = datename.HourMinute(ts)
	}
	out["deep_sleep_duration_in_hours"] = datename.SecondsToHours(out["deep_sleep_duration"])
	out["rem_sleep_duration_in_hours"] = datename.SecondsToHours(out["rem_sleep_duration"])
	out["light_sleep_duration_in_hours"] = datename.SecondsToHours(out["light_sleep_duration"])
	out["total_sleep_duration_in_hours"] = datename.SecondsToHours(out["total_sleep_duration"])
	out["awake_duration_in_hours"] = datename.SecondsToHours(out["awake_time"])
	out["in_bed_duration_in_hours"] = datename.SecondsToHours(out["time_in_bed"])
	return out
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}
