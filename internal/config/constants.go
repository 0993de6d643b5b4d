package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 60 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Outbound provider API calls
const ProviderHTTPTimeout = 10 * time.Second

// OAuth state tokens are valid for this long after issuance. The state
// cookie's Max-Age matches.
const StateTokenTTL = 10 * time.Minute

// StateCookieName carries the signed OAuth state through the redirect dance.
const StateCookieName = "wearable_state"

// Sync job
const (
	SyncWorkers        = 4
	RefreshLockTTL     = 60 * time.Second
	SyncJobTimeout     = 5 * time.Minute
	SyncLogRetention   = 90 * 24 * time.Hour
	CleanupJobInterval = 6 * time.Hour
)

// Reward amounts (points)
const (
	ConnectBonusPoints = 50
	SyncBonusPoints    = 5
	ImportBonusPoints  = 3
	StreakWeekBonus    = 25
	StreakMonthBonus   = 100
)

// Streak milestones are exact-equality checks: a streak that jumps past a
// milestone does not collect it retroactively.
const (
	StreakWeekMilestone  = 7
	StreakMonthMilestone = 30
)
