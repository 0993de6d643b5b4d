package garmin

// Webhook payload shapes for the Garmin Health API push model. Each item
// carries the opaque per-user access token Garmin issued during the OAuth
// handshake; that token, not a user id, identifies whose data it is.

type WebhookPayload struct {
	Dailies       []DailySummary  `json:"dailies,omitempty"`
	Sleeps        []Sleep         `json:"sleeps,omitempty"`
	Activities    []Activity      `json:"activities,omitempty"`
	BodyComps     []BodyComp      `json:"bodyComps,omitempty"`
	StressDetails []StressDetail  `json:"stressDetails,omitempty"`
	UserMetrics   []UserMetricSet `json:"userMetrics,omitempty"`
}

type DailySummary struct {
	UserAccessToken        string   `json:"userAccessToken"`
	CalendarDate           string   `json:"calendarDate"`
	Steps                  *int     `json:"steps,omitempty"`
	DistanceInMeters       *float64 `json:"distanceInMeters,omitempty"`
	ActiveKilocalories     *int     `json:"activeKilocalories,omitempty"`
	ActiveTimeInSeconds    *int     `json:"activeTimeInSeconds,omitempty"`
	RestingHeartRate       *int     `json:"restingHeartRateInBeatsPerMinute,omitempty"`
	AverageStressLevel     *int     `json:"averageStressLevel,omitempty"`
	BodyBatteryHighestValue *int    `json:"bodyBatteryHighestValue,omitempty"`
}

type Sleep struct {
	UserAccessToken             string   `json:"userAccessToken"`
	CalendarDate                string   `json:"calendarDate"`
	DurationInSeconds           *int     `json:"durationInSeconds,omitempty"`
	DeepSleepDurationInSeconds  *int     `json:"deepSleepDurationInSeconds,omitempty"`
	LightSleepDurationInSeconds *int     `json:"lightSleepDurationInSeconds,omitempty"`
	RemSleepInSeconds           *int     `json:"remSleepInSeconds,omitempty"`
	SleepScore                  *int     `json:"overallSleepScore,omitempty"`
	AverageSpO2Value            *float64 `json:"averageSpO2Value,omitempty"`
}

type Activity struct {
	UserAccessToken    string   `json:"userAccessToken"`
	CalendarDate       string   `json:"calendarDate"`
	ActivityType       string   `json:"activityType,omitempty"`
	DurationInSeconds  *int     `json:"durationInSeconds,omitempty"`
	ActiveKilocalories *int     `json:"activeKilocalories,omitempty"`
	DistanceInMeters   *float64 `json:"distanceInMeters,omitempty"`
}

type BodyComp struct {
	UserAccessToken string `json:"userAccessToken"`
	CalendarDate    string `json:"calendarDate"`
	WeightInGrams   *int   `json:"weightInGrams,omitempty"`
}

type StressDetail struct {
	UserAccessToken     string `json:"userAccessToken"`
	CalendarDate        string `json:"calendarDate"`
	AverageStressLevel  *int   `json:"averageStressLevel,omitempty"`
	BodyBatteryDrained  *int   `json:"bodyBatteryDrainedValue,omitempty"`
	BodyBatteryCharged  *int   `json:"bodyBatteryChargedValue,omitempty"`
	BodyBatteryHighest  *int   `json:"bodyBatteryHighestValue,omitempty"`
}

type UserMetricSet struct {
	UserAccessToken string   `json:"userAccessToken"`
	CalendarDate    string   `json:"calendarDate"`
	VO2Max          *float64 `json:"vo2Max,omitempty"`
	RestingHeartRate *int    `json:"restingHeartRate,omitempty"`
	Hrv             *float64 `json:"hrv,omitempty"`
}

type DeregistrationPayload struct {
	Deregistrations []Deregistration `json:"deregistrations"`
}

type Deregistration struct {
	UserAccessToken string `json:"userAccessToken"`
	UserID          string `json:"userId,omitempty"`
}
