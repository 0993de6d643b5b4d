package fitbit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitforge/wearable-sync-go/internal/model"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestSleepQualityFromEfficiency(t *testing.T) {
	t.Run("bands efficiency into quality levels", func(t *testing.T) {
		assert.Equal(t, model.SleepExcellent, SleepQualityFromEfficiency(95))
		assert.Equal(t, model.SleepExcellent, SleepQualityFromEfficiency(90))
		assert.Equal(t, model.SleepGood, SleepQualityFromEfficiency(89))
		assert.Equal(t, model.SleepGood, SleepQualityFromEfficiency(80))
		assert.Equal(t, model.SleepFair, SleepQualityFromEfficiency(79))
		assert.Equal(t, model.SleepFair, SleepQualityFromEfficiency(70))
		assert.Equal(t, model.SleepPoor, SleepQualityFromEfficiency(69))
	})
}

func TestMinutesToHours(t *testing.T) {
	assert.Equal(t, 8.0, minutesToHours(480))
	assert.Equal(t, 7.5, minutesToHours(450))
	assert.Equal(t, 7.6, minutesToHours(455))
}

func TestMapData(t *testing.T) {
	t.Run("maps a full day", func(t *testing.T) {
		activity := &ActivitySummary{
			Steps:               intPtr(10000),
			CaloriesOut:         intPtr(2200),
			FairlyActiveMinutes: intPtr(30),
			VeryActiveMinutes:   intPtr(15),
			RestingHeartRate:    intPtr(58),
			Distances: []Distance{
				{Activity: "total", Distance: 7.2},
				{Activity: "tracker", Distance: 7.0},
			},
		}
		sleep := &SleepLog{
			Summary: SleepSummary{
				TotalMinutesAsleep: intPtr(450),
				Stages:             &SleepStages{Deep: 90, Light: 240, Rem: 120},
			},
			Sleep: []SleepEntry{
				{IsMainSleep: false, Efficiency: intPtr(50)},
				{IsMainSleep: true, Efficiency: intPtr(92)},
			},
		}
		heart := &HeartSummary{RestingHeartRate: intPtr(56)}
		hrv := &HRVSummary{DailyRmssd: floatPtr(48.5)}
		spo2 := &SpO2Summary{Avg: floatPtr(97.1)}

		v := MapData(activity, sleep, heart, hrv, spo2)

		assert.Equal(t, 10000, *v.Steps)
		assert.Equal(t, 2200, *v.CaloriesBurned)
		assert.Equal(t, 45, *v.ActiveMinutes)
		assert.Equal(t, 7200.0, *v.DistanceMeters)
		assert.Equal(t, 7.5, *v.SleepHours)
		assert.Equal(t, 1.5, *v.DeepSleepHours)
		assert.Equal(t, 4.0, *v.LightSleepHours)
		assert.Equal(t, 2.0, *v.RemSleepHours)
		assert.Equal(t, model.SleepExcellent, *v.SleepQuality)
		assert.Equal(t, 48.5, *v.HRV)
		assert.Equal(t, 97.1, *v.SpO2)
		assert.NotEmpty(t, v.RawData)
	})

	t.Run("heart endpoint wins over activity resting heart rate", func(t *testing.T) {
		v := MapData(
			&ActivitySummary{RestingHeartRate: intPtr(60)},
			nil,
			&HeartSummary{RestingHeartRate: intPtr(55)},
			nil, nil,
		)
		assert.Equal(t, 55, *v.RestingHeartRate)
	})

	t.Run("keeps activity resting heart rate when heart fetch failed", func(t *testing.T) {
		v := MapData(&ActivitySummary{RestingHeartRate: intPtr(60)}, nil, nil, nil, nil)
		assert.Equal(t, 60, *v.RestingHeartRate)
	})

	t.Run("all nil inputs yield empty values", func(t *testing.T) {
		v := MapData(nil, nil, nil, nil, nil)
		assert.True(t, v.IsEmpty())
	})

	t.Run("sleep quality comes from the main sleep only", func(t *testing.T) {
		v := MapData(nil, &SleepLog{
			Sleep: []SleepEntry{{IsMainSleep: false, Efficiency: intPtr(95)}},
		}, nil, nil, nil)
		assert.Nil(t, v.SleepQuality)
	})

	t.Run("distance without a total entry stays nil", func(t *testing.T) {
		v := MapData(&ActivitySummary{
			Distances: []Distance{{Activity: "tracker", Distance: 3.1}},
		}, nil, nil, nil, nil)
		assert.Nil(t, v.DistanceMeters)
	})

	t.Run("active minutes sums fairly and very active", func(t *testing.T) {
		v := MapData(&ActivitySummary{FairlyActiveMinutes: intPtr(20)}, nil, nil, nil, nil)
		require.NotNil(t, v.ActiveMinutes)
		assert.Equal(t, 20, *v.ActiveMinutes)
	})
}
