package fitbit

import (
	"encoding/json"
	"math"

	"github.com/fitforge/wearable-sync-go/internal/model"
)

// SleepQualityFromEfficiency bands Fitbit's sleep efficiency percentage.
// Note the thresholds differ from Garmin's score bands.
func SleepQualityFromEfficiency(efficiency int) model.SleepQuality {
	switch {
	case efficiency >= 90:
		return model.SleepExcellent
	case efficiency >= 80:
		return model.SleepGood
	case efficiency >= 70:
		return model.SleepFair
	default:
		return model.SleepPoor
	}
}

func minutesToHours(minutes int) float64 {
	return math.Round(float64(minutes)/60*10) / 10
}

// MapData merges the five independently fetched daily payloads into one
// canonical record. Any argument may be nil: endpoint failures upstream are
// isolated per connection, so every field is individually null-safe.
func MapData(activity *ActivitySummary, sleep *SleepLog, heart *HeartSummary, hrv *HRVSummary, spo2 *SpO2Summary) model.MetricValues {
	var v model.MetricValues

	if activity != nil {
		v.Steps = activity.Steps
		v.CaloriesBurned = activity.CaloriesOut
		v.RestingHeartRate = activity.RestingHeartRate
		if activity.FairlyActiveMinutes != nil || activity.VeryActiveMinutes != nil {
			total := 0
			if activity.FairlyActiveMinutes != nil {
				total += *activity.FairlyActiveMinutes
			}
			if activity.VeryActiveMinutes != nil {
				total += *activity.VeryActiveMinutes
			}
			v.ActiveMinutes = &total
		}
		if km := activity.TotalKilometers(); km != nil {
			meters := *km * 1000
			v.DistanceMeters = &meters
		}
	}

	if sleep != nil {
		if sleep.Summary.TotalMinutesAsleep != nil {
			hours := minutesToHours(*sleep.Summary.TotalMinutesAsleep)
			v.SleepHours = &hours
		}
		if stages := sleep.Summary.Stages; stages != nil {
			deep := minutesToHours(stages.Deep)
			light := minutesToHours(stages.Light)
			rem := minutesToHours(stages.Rem)
			v.DeepSleepHours = &deep
			v.LightSleepHours = &light
			v.RemSleepHours = &rem
		}
		for _, entry := range sleep.Sleep {
			if entry.IsMainSleep && entry.Efficiency != nil {
				quality := SleepQualityFromEfficiency(*entry.Efficiency)
				v.SleepQuality = &quality
				break
			}
		}
	}

	// The dedicated heart endpoint wins over the activity summary's copy.
	if heart != nil && heart.RestingHeartRate != nil {
		v.RestingHeartRate = heart.RestingHeartRate
	}

	if hrv != nil {
		v.HRV = hrv.DailyRmssd
	}

	if spo2 != nil {
		v.SpO2 = spo2.Avg
	}

	v.RawData, _ = json.Marshal(map[string]any{
		"activity": activity,
		"sleep":    sleep,
		"heart":    heart,
		"hrv":      hrv,
		"spo2":     spo2,
	})

	return v
}
