package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitforge/wearable-sync-go/internal/fitbit"
	"github.com/fitforge/wearable-sync-go/internal/model"
	redisclient "github.com/fitforge/wearable-sync-go/internal/redis"
	"github.com/fitforge/wearable-sync-go/internal/util"
)

func intPtr(v int) *int           { return &v }
func strPtr(v string) *string     { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func fitbitConn(id, userID, token string) *model.Connection {
	return &model.Connection{
		ID:          id,
		UserID:      userID,
		Provider:    model.ProviderFitbit,
		AccessToken: strPtr(token),
		IsActive:    true,
	}
}

func newSyncFixture(t *testing.T, api *fakeFitbitAPI, conns ...*model.Connection) (*SyncService, *fakeConnectionRepo, *fakeMetricRepo, *fakeSyncLogRepo, *fakeRewarder) {
	t.Helper()
	cipher, err := util.NewTokenCipher("")
	require.NoError(t, err)

	connRepo := newFakeConnectionRepo(conns...)
	metricRepo := newFakeMetricRepo()
	syncLog := &fakeSyncLogRepo{}
	rewards := newFakeRewarder()

	svc := NewSyncService(api, connRepo, metricRepo, syncLog, rewards, cipher, newFakeLocker())
	return svc, connRepo, metricRepo, syncLog, rewards
}

func TestSyncServiceRun(t *testing.T) {
	t.Run("syncs all active connections", func(t *testing.T) {
		api := &fakeFitbitAPI{activity: &fitbit.ActivitySummary{Steps: intPtr(8000)}}
		svc, connRepo, metricRepo, _, rewards := newSyncFixture(t, api,
			fitbitConn("c1", "u1", "tok-1"),
			fitbitConn("c2", "u2", "tok-2"),
		)

		result := svc.Run(context.Background())

		assert.Equal(t, SyncResult{Synced: 2, Errors: 0}, result)

		day := time.Now().UTC().Truncate(24 * time.Hour)
		m, err := metricRepo.FindByKey(context.Background(), "u1", model.SourceFitbit, day)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, 8000, *m.Steps)

		c1, _ := connRepo.FindByID(context.Background(), "c1")
		assert.Equal(t, 1, c1.SyncStreak)
		assert.NotNil(t, c1.LastSyncAt)

		assert.Equal(t, 5, rewards.balance("u1"))
		assert.Equal(t, 5, rewards.balance("u2"))
	})

	t.Run("one failing connection does not block the others", func(t *testing.T) {
		boom := fmt.Errorf("token revoked")
		api := &fakeFitbitAPI{
			activity:   &fitbit.ActivitySummary{Steps: intPtr(8000)},
			failTokens: map[string]error{"tok-bad": boom},
		}
		svc, connRepo, _, syncLog, _ := newSyncFixture(t, api,
			fitbitConn("c1", "u1", "tok-1"),
			fitbitConn("c2", "u2", "tok-bad"),
			fitbitConn("c3", "u3", "tok-3"),
		)

		result := svc.Run(context.Background())

		assert.Equal(t, SyncResult{Synced: 2, Errors: 1}, result)

		c2, _ := connRepo.FindByID(context.Background(), "c2")
		require.NotNil(t, c2.SyncError)
		assert.Contains(t, *c2.SyncError, "token revoked")
		assert.Equal(t, 0, c2.SyncStreak)
		assert.True(t, c2.IsActive, "a sync failure must not deactivate the connection")

		assert.Contains(t, syncLog.eventTypes("u2"), model.EventSyncError)
	})

	t.Run("a single endpoint failure still counts as synced", func(t *testing.T) {
		api := &fakeFitbitAPI{
			activity: &fitbit.ActivitySummary{Steps: intPtr(8000)},
			spo2Err:  fmt.Errorf("device has no spo2 sensor"),
		}
		svc, _, metricRepo, _, _ := newSyncFixture(t, api, fitbitConn("c1", "u1", "tok-1"))

		result := svc.Run(context.Background())

		assert.Equal(t, SyncResult{Synced: 1, Errors: 0}, result)

		day := time.Now().UTC().Truncate(24 * time.Hour)
		m, _ := metricRepo.FindByKey(context.Background(), "u1", model.SourceFitbit, day)
		require.NotNil(t, m)
		assert.Equal(t, 8000, *m.Steps)
		assert.Nil(t, m.SpO2)
	})

	t.Run("all endpoints failing marks the connection errored", func(t *testing.T) {
		boom := fmt.Errorf("rate limited")
		api := &fakeFitbitAPI{
			activityErr: boom, sleepErr: boom, heartErr: boom, hrvErr: boom, spo2Err: boom,
		}
		svc, _, _, _, rewards := newSyncFixture(t, api, fitbitConn("c1", "u1", "tok-1"))

		result := svc.Run(context.Background())

		assert.Equal(t, SyncResult{Synced: 0, Errors: 1}, result)
		assert.Equal(t, 0, rewards.balance("u1"))
	})

	t.Run("locked connections are skipped entirely", func(t *testing.T) {
		api := &fakeFitbitAPI{activity: &fitbit.ActivitySummary{Steps: intPtr(100)}}
		cipher, err := util.NewTokenCipher("")
		require.NoError(t, err)

		locker := newFakeLocker()
		held, err := locker.Acquire(context.Background(), redisclient.RefreshLockKey("c2"), time.Minute)
		require.NoError(t, err)
		require.True(t, held)

		connRepo := newFakeConnectionRepo(
			fitbitConn("c1", "u1", "tok-1"),
			fitbitConn("c2", "u2", "tok-2"),
		)
		svc := NewSyncService(api, connRepo, newFakeMetricRepo(), &fakeSyncLogRepo{}, newFakeRewarder(), cipher, locker)

		result := svc.Run(context.Background())

		assert.Equal(t, SyncResult{Synced: 1, Errors: 0}, result)
	})
}

func TestSyncServiceTokenRefresh(t *testing.T) {
	t.Run("refreshes an expiring token and persists it before use", func(t *testing.T) {
		api := &fakeFitbitAPI{
			activity:   &fitbit.ActivitySummary{Steps: intPtr(500)},
			failTokens: map[string]error{"stale-token": fmt.Errorf("expired")},
			refreshed: &fitbit.TokenSet{
				AccessToken:  "fresh-token",
				RefreshToken: "rotated-refresh",
				ExpiresAt:    time.Now().Add(8 * time.Hour),
			},
		}
		conn := fitbitConn("c1", "u1", "stale-token")
		conn.RefreshToken = strPtr("old-refresh")
		conn.TokenExpiresAt = timePtr(time.Now().Add(10 * time.Second))

		svc, connRepo, _, syncLog, _ := newSyncFixture(t, api, conn)

		result := svc.Run(context.Background())

		assert.Equal(t, SyncResult{Synced: 1, Errors: 0}, result)
		assert.Equal(t, 1, api.refreshes)

		stored, _ := connRepo.FindByID(context.Background(), "c1")
		assert.Equal(t, "fresh-token", *stored.AccessToken)
		assert.Equal(t, "rotated-refresh", *stored.RefreshToken)

		assert.Contains(t, syncLog.eventTypes("u1"), model.EventTokenRefreshed)
	})

	t.Run("does not refresh a token with plenty of life left", func(t *testing.T) {
		api := &fakeFitbitAPI{activity: &fitbit.ActivitySummary{Steps: intPtr(500)}}
		conn := fitbitConn("c1", "u1", "tok-1")
		conn.TokenExpiresAt = timePtr(time.Now().Add(6 * time.Hour))

		svc, _, _, _, _ := newSyncFixture(t, api, conn)
		svc.Run(context.Background())

		assert.Equal(t, 0, api.refreshes)
	})

	t.Run("refresh failure records a connection error", func(t *testing.T) {
		api := &fakeFitbitAPI{refreshErr: fmt.Errorf("refresh token revoked")}
		conn := fitbitConn("c1", "u1", "stale-token")
		conn.RefreshToken = strPtr("old-refresh")
		conn.TokenExpiresAt = timePtr(time.Now().Add(-time.Minute))

		svc, connRepo, _, _, _ := newSyncFixture(t, api, conn)
		result := svc.Run(context.Background())

		assert.Equal(t, SyncResult{Synced: 0, Errors: 1}, result)
		stored, _ := connRepo.FindByID(context.Background(), "c1")
		require.NotNil(t, stored.SyncError)
		assert.Contains(t, *stored.SyncError, "refresh")
	})
}

func TestSyncServiceMilestones(t *testing.T) {
	t.Run("week streak pays the milestone bonus", func(t *testing.T) {
		api := &fakeFitbitAPI{activity: &fitbit.ActivitySummary{Steps: intPtr(100)}}
		conn := fitbitConn("c1", "u1", "tok-1")
		conn.SyncStreak = 6

		svc, _, _, _, rewards := newSyncFixture(t, api, conn)
		svc.Run(context.Background())

		// +5 daily, +25 for hitting 7 straight days
		assert.Equal(t, 30, rewards.balance("u1"))
	})

	t.Run("no bonus between milestones", func(t *testing.T) {
		api := &fakeFitbitAPI{activity: &fitbit.ActivitySummary{Steps: intPtr(100)}}
		conn := fitbitConn("c1", "u1", "tok-1")
		conn.SyncStreak = 7

		svc, _, _, _, rewards := newSyncFixture(t, api, conn)
		svc.Run(context.Background())

		assert.Equal(t, 5, rewards.balance("u1"))
	})
}

func TestMilestoneBonus(t *testing.T) {
	assert.Equal(t, 0, MilestoneBonus(6))
	assert.Equal(t, 25, MilestoneBonus(7))
	assert.Equal(t, 0, MilestoneBonus(8))
	assert.Equal(t, 100, MilestoneBonus(30))
	assert.Equal(t, 0, MilestoneBonus(31))
}
