package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fitforge/wearable-sync-go/internal/model"
)

type SyncLogRepository interface {
	Create(ctx context.Context, params model.CreateSyncEventParams) (*model.SyncEvent, error)
	FindRecentByUser(ctx context.Context, userID string, limit int) ([]model.SyncEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type syncLogRepo struct {
	db sqlxDB
}

func NewSyncLogRepository(db *sqlx.DB) SyncLogRepository {
	return &syncLogRepo{db: db}
}

func (r *syncLogRepo) Create(ctx context.Context, params model.CreateSyncEventParams) (*model.SyncEvent, error) {
	var event model.SyncEvent
	err := r.db.GetContext(ctx, &event, `
		INSERT INTO sync_events (user_id, provider, event_type, detail)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.UserID, params.Provider, params.EventType, params.Detail)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *syncLogRepo) FindRecentByUser(ctx context.Context, userID string, limit int) ([]model.SyncEvent, error) {
	var events []model.SyncEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT * FROM sync_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *syncLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sync_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
