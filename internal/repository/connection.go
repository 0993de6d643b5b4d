package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fitforge/wearable-sync-go/internal/model"
)

type ConnectionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Connection, error)
	FindByUserAndProvider(ctx context.Context, userID string, provider model.Provider) (*model.Connection, error)
	FindByUserID(ctx context.Context, userID string) ([]model.Connection, error)
	FindActiveByProvider(ctx context.Context, provider model.Provider) ([]model.Connection, error)
	Upsert(ctx context.Context, params model.UpsertConnectionParams) (*model.Connection, error)
	UpdateTokens(ctx context.Context, id string, accessToken string, refreshToken *string, expiresAt *time.Time) error
	MarkSynced(ctx context.Context, id string) (int, error)
	MarkSyncError(ctx context.Context, id, message string) error
	Deactivate(ctx context.Context, id, reason string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) ConnectionRepository
}

type connectionRepo struct {
	db sqlxDB
}

func NewConnectionRepository(db *sqlx.DB) ConnectionRepository {
	return &connectionRepo{db: db}
}

func (r *connectionRepo) WithTx(tx *sqlx.Tx) ConnectionRepository {
	return &connectionRepo{db: tx}
}

func (r *connectionRepo) FindByID(ctx context.Context, id string) (*model.Connection, error) {
	var conn model.Connection
	err := r.db.GetContext(ctx, &conn, `
		SELECT * FROM wearable_connections WHERE id = $1
	`, id)
	return HandleNotFound(&conn, err)
}

func (r *connectionRepo) FindByUserAndProvider(ctx context.Context, userID string, provider model.Provider) (*model.Connection, error) {
	var conn model.Connection
	err := r.db.GetContext(ctx, &conn, `
		SELECT * FROM wearable_connections
		WHERE user_id = $1 AND provider = $2
	`, userID, provider)
	return HandleNotFound(&conn, err)
}

func (r *connectionRepo) FindByUserID(ctx context.Context, userID string) ([]model.Connection, error) {
	var conns []model.Connection
	err := r.db.SelectContext(ctx, &conns, `
		SELECT * FROM wearable_connections
		WHERE user_id = $1
		ORDER BY provider ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *connectionRepo) FindActiveByProvider(ctx context.Context, provider model.Provider) ([]model.Connection, error) {
	var conns []model.Connection
	err := r.db.SelectContext(ctx, &conns, `
		SELECT * FROM wearable_connections
		WHERE provider = $1 AND is_active = TRUE
		ORDER BY created_at ASC
	`, provider)
	if err != nil {
		return nil, err
	}
	return conns, nil
}

// Upsert creates or overwrites the connection for (user, provider).
// Reconnecting replaces tokens and reactivates the row; it never creates a
// duplicate.
func (r *connectionRepo) Upsert(ctx context.Context, params model.UpsertConnectionParams) (*model.Connection, error) {
	var conn model.Connection
	err := r.db.GetContext(ctx, &conn, `
		INSERT INTO wearable_connections
			(user_id, provider, access_token, refresh_token, token_expires_at, provider_user_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			provider_user_id = EXCLUDED.provider_user_id,
			is_active = TRUE,
			sync_error = NULL,
			updated_at = NOW()
		RETURNING *
	`, params.UserID, params.Provider, params.AccessToken, params.RefreshToken,
		params.TokenExpiresAt, params.ProviderUserID)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepo) UpdateTokens(ctx context.Context, id string, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wearable_connections
		SET access_token = $2, refresh_token = $3, token_expires_at = $4, updated_at = NOW()
		WHERE id = $1
	`, id, accessToken, refreshToken, expiresAt)
	return err
}

// MarkSynced records a successful sync and returns the incremented streak.
func (r *connectionRepo) MarkSynced(ctx context.Context, id string) (int, error) {
	var streak int
	err := r.db.GetContext(ctx, &streak, `
		UPDATE wearable_connections
		SET last_sync_at = NOW(), sync_error = NULL, sync_streak = sync_streak + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING sync_streak
	`, id)
	return streak, err
}

// MarkSyncError records a failure and resets the streak. is_active is left
// alone: transient provider errors must not sever the connection.
func (r *connectionRepo) MarkSyncError(ctx context.Context, id, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wearable_connections
		SET sync_error = $2, sync_streak = 0, updated_at = NOW()
		WHERE id = $1
	`, id, message)
	return err
}

// Deactivate clears tokens and flags the connection inactive. Used by
// explicit disconnect and provider-side deregistration only.
func (r *connectionRepo) Deactivate(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wearable_connections
		SET is_active = FALSE,
			access_token = NULL,
			refresh_token = NULL,
			token_expires_at = NULL,
			sync_error = $2,
			updated_at = NOW()
		WHERE id = $1
	`, id, reason)
	return err
}
