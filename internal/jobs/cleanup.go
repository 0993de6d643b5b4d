package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fitforge/wearable-sync-go/internal/config"
	"github.com/fitforge/wearable-sync-go/internal/repository"
)

// CleanupJob trims old sync event rows so the log stays a recent-activity
// feed rather than an unbounded audit table.
type CleanupJob struct {
	syncLogRepo repository.SyncLogRepository
	interval    time.Duration
	retention   time.Duration
	done        chan struct{}
}

func NewCleanupJob(syncLogRepo repository.SyncLogRepository) *CleanupJob {
	return &CleanupJob{
		syncLogRepo: syncLogRepo,
		interval:    config.CleanupJobInterval,
		retention:   config.SyncLogRetention,
		done:        make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.syncLogRepo.DeleteOlderThan(ctx, time.Now().Add(-j.retention))
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup sync events")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("cleaned up sync events")
	}
}
