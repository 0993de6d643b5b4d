package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fitforge/wearable-sync-go/internal/audit"
	"github.com/fitforge/wearable-sync-go/internal/config"
	"github.com/fitforge/wearable-sync-go/internal/garmin"
	"github.com/fitforge/wearable-sync-go/internal/model"
	"github.com/fitforge/wearable-sync-go/internal/repository"
	"github.com/fitforge/wearable-sync-go/internal/util"
)

const calendarDateFormat = "2006-01-02"

// WebhookService ingests Garmin's push deliveries. Deliveries can arrive
// duplicated, out of order and concurrently; one bad item must never abort
// its batch, and callers always answer the provider with a success status
// regardless of what happens here.
type WebhookService struct {
	tokenIndex  TokenResolver
	connRepo    repository.ConnectionRepository
	metricRepo  repository.MetricRepository
	syncLogRepo repository.SyncLogRepository
	rewards     Rewarder
}

func NewWebhookService(
	tokenIndex TokenResolver,
	connRepo repository.ConnectionRepository,
	metricRepo repository.MetricRepository,
	syncLogRepo repository.SyncLogRepository,
	rewards Rewarder,
) *WebhookService {
	return &WebhookService{
		tokenIndex:  tokenIndex,
		connRepo:    connRepo,
		metricRepo:  metricRepo,
		syncLogRepo: syncLogRepo,
		rewards:     rewards,
	}
}

type webhookItem struct {
	token  string
	date   string
	values model.MetricValues
}

// ProcessPayload handles one webhook delivery. Per-item failures are logged
// and skipped; connections that contributed at least one stored item get
// their streak bumped once per delivery.
func (s *WebhookService) ProcessPayload(ctx context.Context, payload garmin.WebhookPayload) {
	items := flattenPayload(payload)

	// Streak bookkeeping happens once per connection per delivery, not once
	// per item.
	synced := make(map[string]*model.Connection)

	for _, item := range items {
		conn, err := s.tokenIndex.Resolve(ctx, model.ProviderGarmin, item.token)
		if err != nil {
			log.Error().Err(err).Msg("garmin webhook: token resolution failed")
			continue
		}
		if conn == nil {
			log.Warn().Str("token", util.MaskToken(item.token)).Msg("garmin webhook: no active connection for token")
			audit.Log(audit.Event{
				Type:     audit.EventWebhookUnresolved,
				Provider: string(model.ProviderGarmin),
			})
			continue
		}

		day, err := time.Parse(calendarDateFormat, item.date)
		if err != nil {
			day = time.Now().UTC().Truncate(24 * time.Hour)
		}

		if _, err := s.metricRepo.Upsert(ctx, model.UpsertMetricParams{
			UserID:   conn.UserID,
			Source:   model.SourceGarmin,
			LoggedAt: day,
			Values:   item.values,
		}); err != nil {
			log.Error().Err(err).Str("userId", conn.UserID).Msg("garmin webhook: metric upsert failed")
			s.logError(ctx, conn.UserID, err)
			continue
		}

		if _, err := s.rewards.AwardDaily(ctx, conn.UserID, model.SourceGarmin, day, config.SyncBonusPoints); err != nil {
			log.Error().Err(err).Str("userId", conn.UserID).Msg("garmin webhook: reward failed")
		}

		synced[conn.ID] = conn
	}

	for id, conn := range synced {
		if _, err := s.connRepo.MarkSynced(ctx, id); err != nil {
			log.Error().Err(err).Str("connectionId", id).Msg("garmin webhook: failed to mark synced")
			continue
		}
		if _, err := s.syncLogRepo.Create(ctx, model.CreateSyncEventParams{
			UserID:    conn.UserID,
			Provider:  model.ProviderGarmin,
			EventType: model.EventSynced,
		}); err != nil {
			log.Warn().Err(err).Msg("garmin webhook: failed to write sync event")
		}
	}
}

// ProcessDeregistration handles Garmin's revocation notices: deactivate the
// matching connection and clear its tokens.
func (s *WebhookService) ProcessDeregistration(ctx context.Context, payload garmin.DeregistrationPayload) {
	for _, dereg := range payload.Deregistrations {
		conn, err := s.tokenIndex.Resolve(ctx, model.ProviderGarmin, dereg.UserAccessToken)
		if err != nil {
			log.Error().Err(err).Msg("garmin dereg: token resolution failed")
			continue
		}
		if conn == nil {
			log.Warn().Str("token", util.MaskToken(dereg.UserAccessToken)).Msg("garmin dereg: no active connection for token")
			continue
		}

		s.tokenIndex.Remove(ctx, dereg.UserAccessToken)

		if err := s.connRepo.Deactivate(ctx, conn.ID, "deregistered by provider"); err != nil {
			log.Error().Err(err).Str("connectionId", conn.ID).Msg("garmin dereg: deactivate failed")
			continue
		}

		if _, err := s.syncLogRepo.Create(ctx, model.CreateSyncEventParams{
			UserID:    conn.UserID,
			Provider:  model.ProviderGarmin,
			EventType: model.EventDeregistered,
		}); err != nil {
			log.Warn().Err(err).Msg("garmin dereg: failed to write sync event")
		}

		audit.Log(audit.Event{
			Type:     audit.EventProviderDeregistered,
			UserID:   conn.UserID,
			Provider: string(model.ProviderGarmin),
		})
	}
}

func (s *WebhookService) logError(ctx context.Context, userID string, cause error) {
	detail := cause.Error()
	if _, err := s.syncLogRepo.Create(ctx, model.CreateSyncEventParams{
		UserID:    userID,
		Provider:  model.ProviderGarmin,
		EventType: model.EventSyncError,
		Detail:    &detail,
	}); err != nil {
		log.Warn().Err(err).Msg("garmin webhook: failed to write error event")
	}
}

func flattenPayload(payload garmin.WebhookPayload) []webhookItem {
	var items []webhookItem
	for _, d := range payload.Dailies {
		items = append(items, webhookItem{d.UserAccessToken, d.CalendarDate, garmin.MapDailySummary(d)})
	}
	for _, sl := range payload.Sleeps {
		items = append(items, webhookItem{sl.UserAccessToken, sl.CalendarDate, garmin.MapSleep(sl)})
	}
	for _, a := range payload.Activities {
		items = append(items, webhookItem{a.UserAccessToken, a.CalendarDate, garmin.MapActivity(a)})
	}
	for _, b := range payload.BodyComps {
		items = append(items, webhookItem{b.UserAccessToken, b.CalendarDate, garmin.MapBodyComp(b)})
	}
	for _, st := range payload.StressDetails {
		items = append(items, webhookItem{st.UserAccessToken, st.CalendarDate, garmin.MapStressDetail(st)})
	}
	for _, u := range payload.UserMetrics {
		items = append(items, webhookItem{u.UserAccessToken, u.CalendarDate, garmin.MapUserMetrics(u)})
	}
	return items
}
