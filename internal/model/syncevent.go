package model

import "time"

// SyncEvent is one row in the sync event log. Internal failures on
// webhook-class endpoints are visible only here and on the Connection's
// sync_error column, never in the HTTP response to the provider.
type SyncEvent struct {
	ID        string        `db:"id" json:"id"`
	UserID    string        `db:"user_id" json:"userId"`
	Provider  Provider      `db:"provider" json:"provider"`
	EventType SyncEventType `db:"event_type" json:"eventType"`
	Detail    *string       `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}

type CreateSyncEventParams struct {
	UserID    string
	Provider  Provider
	EventType SyncEventType
	Detail    *string
}
