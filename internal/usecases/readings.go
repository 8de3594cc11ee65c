package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/entities"
)

// LiveReading returns the latest live sample for the API, or nil when none exists
func (uc *EvaporationUseCase) LiveReading(ctx context.Context) (*entities.LiveReading, error) {
	live, err := uc.heights.GetLiveHeight(ctx)
	if err != nil || live == nil {
		return nil, err
	}
	return &entities.LiveReading{
		Distance:  live.DistanceMM,
		UpdatedAt: live.Timestamp.UnixMilli(),
	}, nil
}

// RecordHeight ingests a device reading: it becomes the live sample and is added to
// the history bucket of its calendar day. A zero at means "now".
func (uc *EvaporationUseCase) RecordHeight(ctx context.Context, distance float64, at time.Time) error {
	if at.IsZero() {
		at = uc.now()
	}
	local := at.In(uc.settings.Location)

	if err := uc.heights.SaveLiveHeight(ctx, entities.HeightSample{Timestamp: local, DistanceMM: distance}); err != nil {
		return err
	}

	entry := entities.HistoryEntry{
		TimeKey:    local.Format(entities.TimeKeyLayout),
		DistanceMM: distance,
	}
	return uc.heights.AppendHistory(ctx, local.Format(entities.DateKeyLayout), entry)
}

// RecentRolling returns the newest limit 10-minute results, oldest first
func (uc *EvaporationUseCase) RecentRolling(ctx context.Context, limit int) ([]entities.RollingRecord, error) {
	return uc.results.GetRecentRolling(ctx, limit)
}

// DailyResults returns every stored daily result, oldest first
func (uc *EvaporationUseCase) DailyResults(ctx context.Context) ([]entities.DailyRecord, error) {
	return uc.results.GetDailyResults(ctx)
}

// DailyResult returns one day's result or nil
func (uc *EvaporationUseCase) DailyResult(ctx context.Context, date string) (*entities.DailyRecord, error) {
	return uc.results.GetDailyResult(ctx, date)
}

// AvailableRainLogs lists the days the logger has published files for
func (uc *EvaporationUseCase) AvailableRainLogs(ctx context.Context) ([]time.Time, error) {
	return uc.rainLogs.ListAvailableDates(ctx, uc.settings.Location)
}

// FormatDailyReport formats a daily result for chat display
func (uc *EvaporationUseCase) FormatDailyReport(rec entities.DailyRecord) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Evaporation report %s (station %s)\n\n", rec.Date, strings.ToUpper(uc.settings.StationCode)))
	result.WriteString(fmt.Sprintf("💧 Evaporation: %.2f mm\n", rec.EvapMM))
	result.WriteString(fmt.Sprintf("📏 Height 07:00 yesterday: %.2f mm\n", rec.H7Yesterday))
	result.WriteString(fmt.Sprintf("📏 Height 07:00 today: %.2f mm\n", rec.H7Today))
	result.WriteString(fmt.Sprintf("🌧️ Rain (24h): %.2f mm\n", rec.Rain24h))
	if rec.CreatedAt > 0 {
		created := time.UnixMilli(rec.CreatedAt).In(uc.settings.Location)
		result.WriteString(fmt.Sprintf("🕒 Computed: %s", created.Format("2006-01-02 15:04:05 MST")))
	}
	return result.String()
}

// FormatRollingReport formats recent 10-minute results for chat display
func (uc *EvaporationUseCase) FormatRollingReport(records []entities.RollingRecord) string {
	if len(records) == 0 {
		return "No 10-minute evaporation results yet."
	}

	var result strings.Builder
	result.WriteString("Recent 10-minute evaporation:\n\n")
	for _, rec := range records {
		at := time.UnixMilli(rec.Timestamp).In(uc.settings.Location)
		result.WriteString(fmt.Sprintf("%s  %.2f mm (rain %.2f mm)\n", at.Format("2006-01-02 15:04"), rec.EvapMM, rec.Rain10Min))
	}
	return result.String()
}
