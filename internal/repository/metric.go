package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fitforge/wearable-sync-go/internal/model"
)

type MetricRepository interface {
	FindByKey(ctx context.Context, userID string, source model.MetricSource, day time.Time) (*model.HealthMetric, error)
	FindByUserAndRange(ctx context.Context, userID string, from, to time.Time) ([]model.HealthMetric, error)
	Upsert(ctx context.Context, params model.UpsertMetricParams) (*model.HealthMetric, error)
	// AwardPoints transitions points_awarded from 0 to points for the
	// (user, source, day) row and reports whether the transition happened.
	// The conditional update is the idempotency guard against double
	// rewards; concurrent callers race on the row, not on a prior read.
	AwardPoints(ctx context.Context, userID string, source model.MetricSource, day time.Time, points int) (bool, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) MetricRepository
}

type metricRepo struct {
	db sqlxDB
}

func NewMetricRepository(db *sqlx.DB) MetricRepository {
	return &metricRepo{db: db}
}

func (r *metricRepo) WithTx(tx *sqlx.Tx) MetricRepository {
	return &metricRepo{db: tx}
}

func (r *metricRepo) FindByKey(ctx context.Context, userID string, source model.MetricSource, day time.Time) (*model.HealthMetric, error) {
	var metric model.HealthMetric
	err := r.db.GetContext(ctx, &metric, `
		SELECT * FROM health_metrics
		WHERE user_id = $1 AND source = $2 AND logged_at = $3::date
	`, userID, source, day)
	return HandleNotFound(&metric, err)
}

func (r *metricRepo) FindByUserAndRange(ctx context.Context, userID string, from, to time.Time) ([]model.HealthMetric, error) {
	var metrics []model.HealthMetric
	err := r.db.SelectContext(ctx, &metrics, `
		SELECT * FROM health_metrics
		WHERE user_id = $1 AND logged_at BETWEEN $2::date AND $3::date
		ORDER BY logged_at DESC, source ASC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	return metrics, nil
}

// Upsert merges values into the (user, source, day) row. COALESCE keeps
// previously stored fields when a later delivery omits them, and
// points_awarded is never touched here.
func (r *metricRepo) Upsert(ctx context.Context, params model.UpsertMetricParams) (*model.HealthMetric, error) {
	v := params.Values
	var metric model.HealthMetric
	err := r.db.GetContext(ctx, &metric, `
		INSERT INTO health_metrics
			(user_id, source, logged_at, steps, calories_burned, active_minutes,
			 distance_meters, resting_heart_rate, hrv, sleep_hours, deep_sleep_hours,
			 light_sleep_hours, rem_sleep_hours, sleep_quality, spo2, stress_score,
			 body_battery, raw_data)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (user_id, source, logged_at) DO UPDATE SET
			steps = COALESCE(EXCLUDED.steps, health_metrics.steps),
			calories_burned = COALESCE(EXCLUDED.calories_burned, health_metrics.calories_burned),
			active_minutes = COALESCE(EXCLUDED.active_minutes, health_metrics.active_minutes),
			distance_meters = COALESCE(EXCLUDED.distance_meters, health_metrics.distance_meters),
			resting_heart_rate = COALESCE(EXCLUDED.resting_heart_rate, health_metrics.resting_heart_rate),
			hrv = COALESCE(EXCLUDED.hrv, health_metrics.hrv),
			sleep_hours = COALESCE(EXCLUDED.sleep_hours, health_metrics.sleep_hours),
			deep_sleep_hours = COALESCE(EXCLUDED.deep_sleep_hours, health_metrics.deep_sleep_hours),
			light_sleep_hours = COALESCE(EXCLUDED.light_sleep_hours, health_metrics.light_sleep_hours),
			rem_sleep_hours = COALESCE(EXCLUDED.rem_sleep_hours, health_metrics.rem_sleep_hours),
			sleep_quality = COALESCE(EXCLUDED.sleep_quality, health_metrics.sleep_quality),
			spo2 = COALESCE(EXCLUDED.spo2, health_metrics.spo2),
			stress_score = COALESCE(EXCLUDED.stress_score, health_metrics.stress_score),
			body_battery = COALESCE(EXCLUDED.body_battery, health_metrics.body_battery),
			raw_data = COALESCE(EXCLUDED.raw_data, health_metrics.raw_data),
			updated_at = NOW()
		RETURNING *
	`, params.UserID, params.Source, params.LoggedAt,
		v.Steps, v.CaloriesBurned, v.ActiveMinutes, v.DistanceMeters,
		v.RestingHeartRate, v.HRV, v.SleepHours, v.DeepSleepHours,
		v.LightSleepHours, v.RemSleepHours, v.SleepQuality, v.SpO2,
		v.StressScore, v.BodyBattery, v.RawData)
	if err != nil {
		return nil, err
	}
	return &metric, nil
}

func (r *metricRepo) AwardPoints(ctx context.Context, userID string, source model.MetricSource, day time.Time, points int) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE health_metrics
		SET points_awarded = $4, updated_at = NOW()
		WHERE user_id = $1 AND source = $2 AND logged_at = $3::date AND points_awarded = 0
	`, userID, source, day, points)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
