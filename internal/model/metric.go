package model

import (
	"encoding/json"
	"time"
)

// HealthMetric is the canonical daily health record every ingestion route
// maps into. One row per (user, source, logged_at); all measurement fields
// are nullable so "not reported" stays distinct from "reported as zero".
type HealthMetric struct {
	ID               string          `db:"id" json:"id"`
	UserID           string          `db:"user_id" json:"userId"`
	Source           MetricSource    `db:"source" json:"source"`
	LoggedAt         time.Time       `db:"logged_at" json:"loggedAt"`
	Steps            *int            `db:"steps" json:"steps,omitempty"`
	CaloriesBurned   *int            `db:"calories_burned" json:"caloriesBurned,omitempty"`
	ActiveMinutes    *int            `db:"active_minutes" json:"activeMinutes,omitempty"`
	DistanceMeters   *float64        `db:"distance_meters" json:"distanceMeters,omitempty"`
	RestingHeartRate *int            `db:"resting_heart_rate" json:"restingHeartRate,omitempty"`
	HRV              *float64        `db:"hrv" json:"hrv,omitempty"`
	SleepHours       *float64        `db:"sleep_hours" json:"sleepHours,omitempty"`
	DeepSleepHours   *float64        `db:"deep_sleep_hours" json:"deepSleepHours,omitempty"`
	LightSleepHours  *float64        `db:"light_sleep_hours" json:"lightSleepHours,omitempty"`
	RemSleepHours    *float64        `db:"rem_sleep_hours" json:"remSleepHours,omitempty"`
	SleepQuality     *SleepQuality   `db:"sleep_quality" json:"sleepQuality,omitempty"`
	SpO2             *float64        `db:"spo2" json:"spo2,omitempty"`
	StressScore      *int            `db:"stress_score" json:"stressScore,omitempty"`
	BodyBattery      *int            `db:"body_battery" json:"bodyBattery,omitempty"`
	PointsAwarded    int             `db:"points_awarded" json:"pointsAwarded"`
	RawData          json.RawMessage `db:"raw_data" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// MetricValues is the writable portion of a HealthMetric, used by upserts.
type MetricValues struct {
	Steps            *int
	CaloriesBurned   *int
	ActiveMinutes    *int
	DistanceMeters   *float64
	RestingHeartRate *int
	HRV              *float64
	SleepHours       *float64
	DeepSleepHours   *float64
	LightSleepHours  *float64
	RemSleepHours    *float64
	SleepQuality     *SleepQuality
	SpO2             *float64
	StressScore      *int
	BodyBattery      *int
	RawData          json.RawMessage
}

// IsEmpty reports whether no measurement field is set.
func (v MetricValues) IsEmpty() bool {
	return v.Steps == nil && v.CaloriesBurned == nil && v.ActiveMinutes == nil &&
		v.DistanceMeters == nil && v.RestingHeartRate == nil && v.HRV == nil &&
		v.SleepHours == nil && v.DeepSleepHours == nil && v.LightSleepHours == nil &&
		v.RemSleepHours == nil && v.SleepQuality == nil && v.SpO2 == nil &&
		v.StressScore == nil && v.BodyBattery == nil
}

// Merge overlays non-nil fields from other onto a copy of v.
func (v MetricValues) Merge(other MetricValues) MetricValues {
	out := v
	if other.Steps != nil {
		out.Steps = other.Steps
	}
	if other.CaloriesBurned != nil {
		out.CaloriesBurned = other.CaloriesBurned
	}
	if other.ActiveMinutes != nil {
		out.ActiveMinutes = other.ActiveMinutes
	}
	if other.DistanceMeters != nil {
		out.DistanceMeters = other.DistanceMeters
	}
	if other.RestingHeartRate != nil {
		out.RestingHeartRate = other.RestingHeartRate
	}
	if other.HRV != nil {
		out.HRV = other.HRV
	}
	if other.SleepHours != nil {
		out.SleepHours = other.SleepHours
	}
	if other.DeepSleepHours != nil {
		out.DeepSleepHours = other.DeepSleepHours
	}
	if other.LightSleepHours != nil {
		out.LightSleepHours = other.LightSleepHours
	}
	if other.RemSleepHours != nil {
		out.RemSleepHours = other.RemSleepHours
	}
	if other.SleepQuality != nil {
		out.SleepQuality = other.SleepQuality
	}
	if other.SpO2 != nil {
		out.SpO2 = other.SpO2
	}
	if other.StressScore != nil {
		out.StressScore = other.StressScore
	}
	if other.BodyBattery != nil {
		out.BodyBattery = other.BodyBattery
	}
	if other.RawData != nil {
		out.RawData = other.RawData
	}
	return out
}

type UpsertMetricParams struct {
	UserID   string
	Source   MetricSource
	LoggedAt time.Time
	Values   MetricValues
}
