package model

// Provider identifies a wearable vendor a user can connect.
type Provider string

const (
	ProviderGarmin Provider = "garmin"
	ProviderFitbit Provider = "fitbit"
	// ProviderApple is reserved; data arrives through the manual import path
	// until a native adapter exists.
	ProviderApple Provider = "apple"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderGarmin, ProviderFitbit, ProviderApple:
		return true
	}
	return false
}

// MetricSource is the ingestion route a health metric row came from.
type MetricSource string

const (
	SourceGarmin    MetricSource = "garmin"
	SourceFitbit    MetricSource = "fitbit"
	SourceCSVImport MetricSource = "csv_import"
	SourceManual    MetricSource = "manual"
)

// SleepQuality is a coarse banding of provider sleep scores.
type SleepQuality string

const (
	SleepPoor      SleepQuality = "poor"
	SleepFair      SleepQuality = "fair"
	SleepGood      SleepQuality = "good"
	SleepExcellent SleepQuality = "excellent"
)

// SyncEventType labels rows in the sync event log.
type SyncEventType string

const (
	EventConnected      SyncEventType = "connected"
	EventDisconnected   SyncEventType = "disconnected"
	EventDeregistered   SyncEventType = "deregistered"
	EventSynced         SyncEventType = "synced"
	EventSyncError      SyncEventType = "error"
	EventTokenRefreshed SyncEventType = "token_refreshed"
	EventImported       SyncEventType = "imported"
)
