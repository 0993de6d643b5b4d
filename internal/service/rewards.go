package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/fitforge/wearable-sync-go/internal/config"
	"github.com/fitforge/wearable-sync-go/internal/database"
	"github.com/fitforge/wearable-sync-go/internal/model"
	"github.com/fitforge/wearable-sync-go/internal/repository"
)

// Rewarder is the points surface the ingestion services use. Satisfied by
// RewardService.
type Rewarder interface {
	AwardDaily(ctx context.Context, userID string, source model.MetricSource, day time.Time, points int) (bool, error)
	Credit(ctx context.Context, userID string, points int) error
}

var _ Rewarder = (*RewardService)(nil)

// RewardService issues gamification points. Daily rewards are guarded by the
// metric row's points_awarded column: the 0→N transition and the balance
// credit commit in one transaction, so duplicate deliveries and concurrent
// job runs cannot double-pay.
type RewardService struct {
	db         *database.DB
	userRepo   repository.UserRepository
	metricRepo repository.MetricRepository
}

func NewRewardService(db *database.DB, userRepo repository.UserRepository, metricRepo repository.MetricRepository) *RewardService {
	return &RewardService{db: db, userRepo: userRepo, metricRepo: metricRepo}
}

// AwardDaily credits points for (user, source, day) at most once. Returns
// whether this call actually paid.
func (s *RewardService) AwardDaily(ctx context.Context, userID string, source model.MetricSource, day time.Time, points int) (bool, error) {
	var awarded bool
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := s.metricRepo.WithTx(tx).AwardPoints(ctx, userID, source, day, points)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		awarded = true
		return s.userRepo.WithTx(tx).AddPoints(ctx, userID, points)
	})
	if err != nil {
		return false, err
	}
	if awarded {
		log.Debug().
			Str("userId", userID).
			Str("source", string(source)).
			Int("points", points).
			Msg("daily reward credited")
	}
	return awarded, nil
}

// Credit adds points unconditionally (connection and milestone bonuses).
func (s *RewardService) Credit(ctx context.Context, userID string, points int) error {
	return s.userRepo.AddPoints(ctx, userID, points)
}

// MilestoneBonus returns the one-time bonus for reaching a streak value.
// Milestones are exact-equality: a streak that jumps past one (a skipped
// day bumping 6 straight to 8) does not collect it.
func MilestoneBonus(streak int) int {
	switch streak {
	case config.StreakWeekMilestone:
		return config.StreakWeekBonus
	case config.StreakMonthMilestone:
		return config.StreakMonthBonus
	}
	return 0
}
