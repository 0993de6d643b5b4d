package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fitforge/wearable-sync-go/internal/config"
	"github.com/fitforge/wearable-sync-go/internal/model"
	"github.com/fitforge/wearable-sync-go/internal/repository"
)

// ImportService is the fallback ingestion route: caller-supplied CSV/JSON
// rows land in the same canonical schema under source=csv_import. Row
// failures are collected, not fatal, and the per-day bonus goes through the
// same points_awarded guard as the automated paths, so re-importing a file
// does not pay twice.
type ImportService struct {
	metricRepo  repository.MetricRepository
	syncLogRepo repository.SyncLogRepository
	rewards     Rewarder
}

func NewImportService(metricRepo repository.MetricRepository, syncLogRepo repository.SyncLogRepository, rewards Rewarder) *ImportService {
	return &ImportService{metricRepo: metricRepo, syncLogRepo: syncLogRepo, rewards: rewards}
}

// ImportRow is one parsed CSV/JSON row. Values arrive as strings or numbers
// depending on the caller's parser, so coercion happens field by field.
type ImportRow map[string]any

type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportResult struct {
	Imported int        `json:"imported"`
	Errors   []RowError `json:"errors"`
}

func (s *ImportService) Import(ctx context.Context, userID string, rows []ImportRow) ImportResult {
	result := ImportResult{Errors: []RowError{}}

	for i, row := range rows {
		rowNum := i + 1

		day, err := parseRowDate(row)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: err.Error()})
			continue
		}

		values := parseRowValues(row)
		if values.IsEmpty() {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: "No metric fields present"})
			continue
		}

		if _, err := s.metricRepo.Upsert(ctx, model.UpsertMetricParams{
			UserID:   userID,
			Source:   model.SourceCSVImport,
			LoggedAt: day,
			Values:   values,
		}); err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: "Failed to store row"})
			log.Error().Err(err).Int("row", rowNum).Str("userId", userID).Msg("import: upsert failed")
			continue
		}

		if _, err := s.rewards.AwardDaily(ctx, userID, model.SourceCSVImport, day, config.ImportBonusPoints); err != nil {
			log.Error().Err(err).Int("row", rowNum).Str("userId", userID).Msg("import: reward failed")
		}

		result.Imported++
	}

	if result.Imported > 0 {
		detail := fmt.Sprintf("%d rows imported", result.Imported)
		if _, err := s.syncLogRepo.Create(ctx, model.CreateSyncEventParams{
			UserID:    userID,
			Provider:  model.ProviderApple,
			EventType: model.EventImported,
			Detail:    &detail,
		}); err != nil {
			log.Warn().Err(err).Msg("import: failed to write sync event")
		}
	}

	return result
}

func parseRowDate(row ImportRow) (time.Time, error) {
	raw, ok := row["date"]
	if !ok {
		return time.Time{}, fmt.Errorf("Missing date field")
	}
	str, ok := raw.(string)
	if !ok || str == "" {
		return time.Time{}, fmt.Errorf("Missing date field")
	}
	day, err := time.Parse("2006-01-02", str)
	if err != nil {
		return time.Time{}, fmt.Errorf("Invalid date format (want YYYY-MM-DD)")
	}
	return day, nil
}

func parseRowValues(row ImportRow) model.MetricValues {
	v := model.MetricValues{
		Steps:            intField(row, "steps"),
		CaloriesBurned:   intField(row, "caloriesBurned"),
		ActiveMinutes:    intField(row, "activeMinutes"),
		DistanceMeters:   floatField(row, "distanceMeters"),
		RestingHeartRate: intField(row, "restingHeartRate"),
		HRV:              floatField(row, "hrv"),
		SleepHours:       floatField(row, "sleepHours"),
		DeepSleepHours:   floatField(row, "deepSleepHours"),
		LightSleepHours:  floatField(row, "lightSleepHours"),
		RemSleepHours:    floatField(row, "remSleepHours"),
		SpO2:             floatField(row, "spo2"),
		StressScore:      intField(row, "stressScore"),
		BodyBattery:      intField(row, "bodyBattery"),
	}

	if raw, ok := row["sleepQuality"].(string); ok {
		quality := model.SleepQuality(raw)
		switch quality {
		case model.SleepPoor, model.SleepFair, model.SleepGood, model.SleepExcellent:
			v.SleepQuality = &quality
		}
	}

	v.RawData, _ = json.Marshal(row)
	return v
}

// floatField coerces a JSON number or numeric string; anything else is
// treated as absent.
func floatField(row ImportRow, key string) *float64 {
	raw, ok := row[key]
	if !ok || raw == nil {
		return nil
	}
	switch val := raw.(type) {
	case float64:
		return &val
	case string:
		if val == "" {
			return nil
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

func intField(row ImportRow, key string) *int {
	f := floatField(row, key)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}
