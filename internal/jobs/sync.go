package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fitforge/wearable-sync-go/internal/config"
	"github.com/fitforge/wearable-sync-go/internal/service"
)

// SyncJob drives the periodic Fitbit pull. The cron-protected HTTP trigger
// runs the same service, so deployments without an in-process scheduler can
// set the interval to zero and drive it externally.
type SyncJob struct {
	sync     *service.SyncService
	interval time.Duration
	done     chan struct{}
}

func NewSyncJob(sync *service.SyncService, interval time.Duration) *SyncJob {
	return &SyncJob{
		sync:     sync,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *SyncJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("sync job started")
}

func (j *SyncJob) Stop() {
	close(j.done)
	log.Info().Msg("sync job stopped")
}

func (j *SyncJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.runOnce()
		}
	}
}

func (j *SyncJob) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), config.SyncJobTimeout)
	defer cancel()

	result := j.sync.Run(ctx)
	log.Info().
		Int("synced", result.Synced).
		Int("errors", result.Errors).
		Msg("scheduled sync completed")
}
