package model

import "time"

// Connection is the per-user, per-provider record of a wearable link. Token
// columns hold ciphertext (see util.TokenCipher) and are never serialized
// into API responses.
//
// RefreshToken doubles as the Garmin access token secret: OAuth1 providers
// have no refresh token and OAuth2 providers have no token secret, so the
// column is shared.
type Connection struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"userId"`
	Provider       Provider   `db:"provider" json:"provider"`
	AccessToken    *string    `db:"access_token" json:"-"`
	RefreshToken   *string    `db:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"-"`
	ProviderUserID *string    `db:"provider_user_id" json:"providerUserId,omitempty"`
	IsActive       bool       `db:"is_active" json:"isActive"`
	LastSyncAt     *time.Time `db:"last_sync_at" json:"lastSyncAt,omitempty"`
	SyncError      *string    `db:"sync_error" json:"syncError,omitempty"`
	SyncStreak     int        `db:"sync_streak" json:"syncStreak"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

type UpsertConnectionParams struct {
	UserID         string
	Provider       Provider
	AccessToken    string
	RefreshToken   *string
	TokenExpiresAt *time.Time
	ProviderUserID *string
}

// StateClaims is the payload of the signed state token carried through the
// OAuth redirect in the wearable_state cookie. Secret holds the PKCE
// verifier (Fitbit) or the request token secret (Garmin).
type StateClaims struct {
	UserID     string   `json:"userId"`
	Provider   Provider `json:"provider"`
	Secret     string   `json:"secret"`
	OAuthState string   `json:"oauthState,omitempty"`
	Timestamp  int64    `json:"timestamp"`
}
