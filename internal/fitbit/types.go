package fitbit

// Response shapes for the daily data endpoints, trimmed to the fields the
// canonical record uses. Raw responses are preserved separately.

type activityResponse struct {
	Summary ActivitySummary `json:"summary"`
}

type ActivitySummary struct {
	Steps               *int       `json:"steps,omitempty"`
	CaloriesOut         *int       `json:"caloriesOut,omitempty"`
	FairlyActiveMinutes *int       `json:"fairlyActiveMinutes,omitempty"`
	VeryActiveMinutes   *int       `json:"veryActiveMinutes,omitempty"`
	RestingHeartRate    *int       `json:"restingHeartRate,omitempty"`
	Distances           []Distance `json:"distances,omitempty"`
}

type Distance struct {
	Activity string  `json:"activity"`
	Distance float64 `json:"distance"`
}

// TotalKilometers returns the "total" distance entry, or nil if absent.
func (s *ActivitySummary) TotalKilometers() *float64 {
	for _, d := range s.Distances {
		if d.Activity == "total" {
			km := d.Distance
			return &km
		}
	}
	return nil
}

type SleepLog struct {
	Summary SleepSummary `json:"summary"`
	Sleep   []SleepEntry `json:"sleep,omitempty"`
}

type SleepSummary struct {
	TotalMinutesAsleep *int         `json:"totalMinutesAsleep,omitempty"`
	Stages             *SleepStages `json:"stages,omitempty"`
}

type SleepStages struct {
	Deep  int `json:"deep"`
	Light int `json:"light"`
	Rem   int `json:"rem"`
	Wake  int `json:"wake"`
}

type SleepEntry struct {
	Efficiency  *int `json:"efficiency,omitempty"`
	IsMainSleep bool `json:"isMainSleep"`
}

type heartResponse struct {
	ActivitiesHeart []struct {
		Value HeartSummary `json:"value"`
	} `json:"activities-heart"`
}

type HeartSummary struct {
	RestingHeartRate *int `json:"restingHeartRate,omitempty"`
}

type hrvResponse struct {
	HRV []struct {
		Value HRVSummary `json:"value"`
	} `json:"hrv"`
}

type HRVSummary struct {
	DailyRmssd *float64 `json:"dailyRmssd,omitempty"`
}

type spo2Response struct {
	Value *SpO2Summary `json:"value,omitempty"`
}

type SpO2Summary struct {
	Avg *float64 `json:"avg,omitempty"`
}
