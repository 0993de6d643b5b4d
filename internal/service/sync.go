package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fitforge/wearable-sync-go/internal/config"
	"github.com/fitforge/wearable-sync-go/internal/fitbit"
	"github.com/fitforge/wearable-sync-go/internal/model"
	redisclient "github.com/fitforge/wearable-sync-go/internal/redis"
	"github.com/fitforge/wearable-sync-go/internal/repository"
	"github.com/fitforge/wearable-sync-go/internal/util"
)

// refreshBuffer refreshes tokens slightly before their stated expiry so a
// token never dies mid-fetch.
const refreshBuffer = 60 * time.Second

// FitbitAPI is the slice of the Fitbit client the sync job uses.
type FitbitAPI interface {
	Refresh(ctx context.Context, refreshToken string) (*fitbit.TokenSet, error)
	FetchDailyActivity(ctx context.Context, accessToken string, day time.Time) (*fitbit.ActivitySummary, error)
	FetchSleep(ctx context.Context, accessToken string, day time.Time) (*fitbit.SleepLog, error)
	FetchHeartRate(ctx context.Context, accessToken string, day time.Time) (*fitbit.HeartSummary, error)
	FetchHRV(ctx context.Context, accessToken string, day time.Time) (*fitbit.HRVSummary, error)
	FetchSpO2(ctx context.Context, accessToken string, day time.Time) (*fitbit.SpO2Summary, error)
}

var _ FitbitAPI = (*fitbit.Client)(nil)

// Locker serializes token refresh per connection across overlapping runs.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

type redisLocker struct {
	client *redisclient.Client
}

func NewRedisLocker(client *redisclient.Client) Locker {
	return &redisLocker{client: client}
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, "1", ttl).Result()
}

func (l *redisLocker) Release(ctx context.Context, key string) {
	if err := l.client.Del(ctx, key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to release refresh lock")
	}
}

// SyncResult is the aggregate outcome of one job run.
type SyncResult struct {
	Synced int `json:"synced"`
	Errors int `json:"errors"`
}

// SyncService pulls daily data for every active Fitbit connection. Each
// connection is isolated: its failure records an error on the row, resets
// the streak and moves on. The run itself never fails.
type SyncService struct {
	api         FitbitAPI
	connRepo    repository.ConnectionRepository
	metricRepo  repository.MetricRepository
	syncLogRepo repository.SyncLogRepository
	rewards     Rewarder
	cipher      *util.TokenCipher
	locker      Locker
	workers     int
}

func NewSyncService(
	api FitbitAPI,
	connRepo repository.ConnectionRepository,
	metricRepo repository.MetricRepository,
	syncLogRepo repository.SyncLogRepository,
	rewards Rewarder,
	cipher *util.TokenCipher,
	locker Locker,
) *SyncService {
	return &SyncService{
		api:         api,
		connRepo:    connRepo,
		metricRepo:  metricRepo,
		syncLogRepo: syncLogRepo,
		rewards:     rewards,
		cipher:      cipher,
		locker:      locker,
		workers:     config.SyncWorkers,
	}
}

// Run syncs all active Fitbit connections over a bounded worker pool and
// reports aggregate counts. Connections whose refresh lock is held by
// another run are skipped and counted in neither bucket.
func (s *SyncService) Run(ctx context.Context) SyncResult {
	conns, err := s.connRepo.FindActiveByProvider(ctx, model.ProviderFitbit)
	if err != nil {
		log.Error().Err(err).Msg("sync: failed to list active connections")
		return SyncResult{}
	}

	jobs := make(chan model.Connection)
	var mu sync.Mutex
	var result SyncResult
	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for conn := range jobs {
				synced, skipped := s.syncOne(ctx, conn)
				if skipped {
					continue
				}
				mu.Lock()
				if synced {
					result.Synced++
				} else {
					result.Errors++
				}
				mu.Unlock()
			}
		}()
	}

	for _, conn := range conns {
		jobs <- conn
	}
	close(jobs)
	wg.Wait()

	log.Info().Int("synced", result.Synced).Int("errors", result.Errors).Msg("fitbit sync run complete")
	return result
}

func (s *SyncService) syncOne(ctx context.Context, conn model.Connection) (synced, skipped bool) {
	lockKey := redisclient.RefreshLockKey(conn.ID)
	ok, err := s.locker.Acquire(ctx, lockKey, config.RefreshLockTTL)
	if err != nil {
		log.Warn().Err(err).Str("connectionId", conn.ID).Msg("sync: lock acquire failed, proceeding without lock")
	} else if !ok {
		log.Debug().Str("connectionId", conn.ID).Msg("sync: connection locked by another run, skipping")
		return false, true
	} else {
		defer s.locker.Release(ctx, lockKey)
	}

	if err := s.syncConnection(ctx, conn); err != nil {
		log.Error().Err(err).Str("connectionId", conn.ID).Str("userId", conn.UserID).Msg("sync: connection failed")
		if dbErr := s.connRepo.MarkSyncError(ctx, conn.ID, err.Error()); dbErr != nil {
			log.Error().Err(dbErr).Str("connectionId", conn.ID).Msg("sync: failed to record error")
		}
		s.logEvent(ctx, conn.UserID, model.EventSyncError, err.Error())
		return false, false
	}
	return true, false
}

func (s *SyncService) syncConnection(ctx context.Context, conn model.Connection) error {
	if conn.AccessToken == nil {
		return fmt.Errorf("connection has no access token")
	}
	accessToken, err := s.cipher.Decrypt(*conn.AccessToken)
	if err != nil {
		return fmt.Errorf("decrypt access token: %w", err)
	}

	if conn.TokenExpiresAt != nil && time.Until(*conn.TokenExpiresAt) < refreshBuffer {
		accessToken, err = s.refreshTokens(ctx, &conn)
		if err != nil {
			return err
		}
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)

	// The five endpoints fail independently; a device without SpO2 support
	// must not block steps.
	var fetchErrs int
	var lastErr error

	activity, err := s.api.FetchDailyActivity(ctx, accessToken, day)
	if err != nil {
		fetchErrs, lastErr = fetchErrs+1, err
		log.Warn().Err(err).Str("connectionId", conn.ID).Msg("sync: activity fetch failed")
	}
	sleep, err := s.api.FetchSleep(ctx, accessToken, day)
	if err != nil {
		fetchErrs, lastErr = fetchErrs+1, err
		log.Warn().Err(err).Str("connectionId", conn.ID).Msg("sync: sleep fetch failed")
	}
	heart, err := s.api.FetchHeartRate(ctx, accessToken, day)
	if err != nil {
		fetchErrs, lastErr = fetchErrs+1, err
		log.Warn().Err(err).Str("connectionId", conn.ID).Msg("sync: heart rate fetch failed")
	}
	hrv, err := s.api.FetchHRV(ctx, accessToken, day)
	if err != nil {
		fetchErrs, lastErr = fetchErrs+1, err
		log.Warn().Err(err).Str("connectionId", conn.ID).Msg("sync: hrv fetch failed")
	}
	spo2, err := s.api.FetchSpO2(ctx, accessToken, day)
	if err != nil {
		fetchErrs, lastErr = fetchErrs+1, err
		log.Warn().Err(err).Str("connectionId", conn.ID).Msg("sync: spo2 fetch failed")
	}

	if fetchErrs == 5 {
		return fmt.Errorf("all fitbit endpoints failed: %w", lastErr)
	}

	values := fitbit.MapData(activity, sleep, heart, hrv, spo2)
	if _, err := s.metricRepo.Upsert(ctx, model.UpsertMetricParams{
		UserID:   conn.UserID,
		Source:   model.SourceFitbit,
		LoggedAt: day,
		Values:   values,
	}); err != nil {
		return fmt.Errorf("metric upsert: %w", err)
	}

	if _, err := s.rewards.AwardDaily(ctx, conn.UserID, model.SourceFitbit, day, config.SyncBonusPoints); err != nil {
		return fmt.Errorf("sync reward: %w", err)
	}

	streak, err := s.connRepo.MarkSynced(ctx, conn.ID)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}

	if bonus := MilestoneBonus(streak); bonus > 0 {
		if err := s.rewards.Credit(ctx, conn.UserID, bonus); err != nil {
			log.Error().Err(err).Str("userId", conn.UserID).Int("streak", streak).Msg("sync: milestone credit failed")
		} else {
			s.logEvent(ctx, conn.UserID, model.EventSynced, fmt.Sprintf("streak milestone %d reached (+%d)", streak, bonus))
		}
	}

	s.logEvent(ctx, conn.UserID, model.EventSynced, "")
	return nil
}

// refreshTokens exchanges the refresh token and persists the rotated pair
// before the new access token is used anywhere.
func (s *SyncService) refreshTokens(ctx context.Context, conn *model.Connection) (string, error) {
	if conn.RefreshToken == nil {
		return "", fmt.Errorf("token expired and no refresh token stored")
	}
	refreshToken, err := s.cipher.Decrypt(*conn.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("decrypt refresh token: %w", err)
	}

	tokens, err := s.api.Refresh(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("token refresh: %w", err)
	}

	encAccess, err := s.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return "", fmt.Errorf("encrypt refreshed access token: %w", err)
	}
	encRefresh, err := s.cipher.Encrypt(tokens.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("encrypt rotated refresh token: %w", err)
	}

	if err := s.connRepo.UpdateTokens(ctx, conn.ID, encAccess, &encRefresh, &tokens.ExpiresAt); err != nil {
		return "", fmt.Errorf("persist refreshed tokens: %w", err)
	}

	s.logEvent(ctx, conn.UserID, model.EventTokenRefreshed, "")
	return tokens.AccessToken, nil
}

func (s *SyncService) logEvent(ctx context.Context, userID string, eventType model.SyncEventType, detail string) {
	params := model.CreateSyncEventParams{
		UserID:    userID,
		Provider:  model.ProviderFitbit,
		EventType: eventType,
	}
	if detail != "" {
		params.Detail = &detail
	}
	if _, err := s.syncLogRepo.Create(ctx, params); err != nil {
		log.Warn().Err(err).Msg("sync: failed to write sync event")
	}
}
