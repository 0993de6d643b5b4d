package garmin

import (
	"encoding/json"
	"math"

	"github.com/fitforge/wearable-sync-go/internal/model"
)

// Mapping from Garmin payload shapes into the canonical daily record.
// Missing provider fields stay nil so "not reported" is never confused with
// "reported as zero".

// SleepQualityFromScore bands Garmin's 0-100 sleep score.
func SleepQualityFromScore(score int) model.SleepQuality {
	switch {
	case score >= 80:
		return model.SleepExcellent
	case score >= 60:
		return model.SleepGood
	case score >= 40:
		return model.SleepFair
	default:
		return model.SleepPoor
	}
}

func secondsToHours(seconds int) float64 {
	return math.Round(float64(seconds)/3600*10) / 10
}

func secondsToHoursPtr(seconds *int) *float64 {
	if seconds == nil {
		return nil
	}
	h := secondsToHours(*seconds)
	return &h
}

func MapDailySummary(item DailySummary) model.MetricValues {
	v := model.MetricValues{
		Steps:            item.Steps,
		DistanceMeters:   item.DistanceInMeters,
		CaloriesBurned:   item.ActiveKilocalories,
		RestingHeartRate: item.RestingHeartRate,
		StressScore:      item.AverageStressLevel,
		BodyBattery:      item.BodyBatteryHighestValue,
	}
	if item.ActiveTimeInSeconds != nil {
		minutes := *item.ActiveTimeInSeconds / 60
		v.ActiveMinutes = &minutes
	}
	v.RawData, _ = json.Marshal(item)
	return v
}

func MapSleep(item Sleep) model.MetricValues {
	v := model.MetricValues{
		SleepHours:      secondsToHoursPtr(item.DurationInSeconds),
		DeepSleepHours:  secondsToHoursPtr(item.DeepSleepDurationInSeconds),
		LightSleepHours: secondsToHoursPtr(item.LightSleepDurationInSeconds),
		RemSleepHours:   secondsToHoursPtr(item.RemSleepInSeconds),
		SpO2:            item.AverageSpO2Value,
	}
	if item.SleepScore != nil {
		quality := SleepQualityFromScore(*item.SleepScore)
		v.SleepQuality = &quality
	}
	v.RawData, _ = json.Marshal(item)
	return v
}

func MapActivity(item Activity) model.MetricValues {
	v := model.MetricValues{
		CaloriesBurned: item.ActiveKilocalories,
		DistanceMeters: item.DistanceInMeters,
	}
	if item.DurationInSeconds != nil {
		minutes := *item.DurationInSeconds / 60
		v.ActiveMinutes = &minutes
	}
	v.RawData, _ = json.Marshal(item)
	return v
}

func MapStressDetail(item StressDetail) model.MetricValues {
	v := model.MetricValues{
		StressScore: item.AverageStressLevel,
		BodyBattery: item.BodyBatteryHighest,
	}
	v.RawData, _ = json.Marshal(item)
	return v
}

func MapUserMetrics(item UserMetricSet) model.MetricValues {
	v := model.MetricValues{
		RestingHeartRate: item.RestingHeartRate,
		HRV:              item.Hrv,
	}
	v.RawData, _ = json.Marshal(item)
	return v
}

// MapBodyComp has no canonical field today; the raw payload is still kept
// for audit.
func MapBodyComp(item BodyComp) model.MetricValues {
	var v model.MetricValues
	v.RawData, _ = json.Marshal(item)
	return v
}
