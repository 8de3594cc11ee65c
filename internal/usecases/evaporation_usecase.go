// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/config"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/entities"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/rainlog"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrMissingData marks a cycle that was skipped because an input was unavailable
var ErrMissingData = errors.New("missing data")

// RainLogSource retrieves daily rain gauge logs
type RainLogSource interface {
	FetchRainLog(ctx context.Context, date time.Time) (string, error)
	ListAvailableDates(ctx context.Context, loc *time.Location) ([]time.Time, error)
}

// Notifier is told about every saved daily result
type Notifier interface {
	NotifyDaily(ctx context.Context, record entities.DailyRecord) error
}

// Settings are the station-specific parameters of the computation
type Settings struct {
	StationCode        string
	StationMatch       rainlog.MatchPolicy
	Location           *time.Location
	RollingWindow      time.Duration
	DailyAnchorHour    int
	SearchAdjacentDays bool
}

// SettingsFromConfig derives computation settings from the loaded configuration
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		StationCode:        cfg.StationCode,
		StationMatch:       rainlog.ParsePolicy(cfg.StationMatch),
		Location:           loc,
		RollingWindow:      cfg.Rolling.Window,
		DailyAnchorHour:    cfg.Daily.AnchorHour,
		SearchAdjacentDays: cfg.HistorySearch == config.HistorySearchAdjacentDays,
	}, nil
}

// Option customises an EvaporationUseCase
type Option func(*EvaporationUseCase)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(uc *EvaporationUseCase) {
		uc.now = now
	}
}

// EvaporationUseCase combines height deltas with rainfall into evaporation estimates
type EvaporationUseCase struct {
	heights  repository.HeightStore
	results  repository.EvaporationRepository
	rainLogs RainLogSource
	notifier Notifier
	settings Settings
	parser   *rainlog.Parser
	now      func() time.Time
	logger   *zap.SugaredLogger
}

// NewEvaporationUseCase creates a new evaporation use case
func NewEvaporationUseCase(heights repository.HeightStore, results repository.EvaporationRepository, rainLogs RainLogSource, settings Settings, logger *zap.SugaredLogger, opts ...Option) *EvaporationUseCase {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.RollingWindow <= 0 {
		settings.RollingWindow = 10 * time.Minute
	}

	uc := &EvaporationUseCase{
		heights:  heights,
		results:  results,
		rainLogs: rainLogs,
		settings: settings,
		parser:   rainlog.NewParser(settings.StationCode, settings.StationMatch, settings.Location),
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// SetNotifier sends saved daily results to n. Call it before the use case is shared
// with the scheduler or the HTTP API.
func (uc *EvaporationUseCase) SetNotifier(n Notifier) {
	uc.notifier = n
}

// Location is the time zone used for calendar days and the daily anchor
func (uc *EvaporationUseCase) Location() *time.Location {
	return uc.settings.Location
}

// ComputeRolling estimates evaporation over [now-window, now) and stores it keyed by now
func (uc *EvaporationUseCase) ComputeRolling(ctx context.Context, now time.Time) (*entities.EvapResult, error) {
	end := now.In(uc.settings.Location)
	start := end.Add(-uc.settings.RollingWindow)

	live, err := uc.heights.GetLiveHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read live height: %w", err)
	}
	if live == nil {
		return nil, fmt.Errorf("%w: no live height", ErrMissingData)
	}

	prev, err := uc.closestHistoricalHeight(ctx, start)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, fmt.Errorf("%w: no history near %s", ErrMissingData, start.Format(time.RFC3339))
	}

	rain, err := uc.rainBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	result := entities.NewEvapResult(start, end, prev.DistanceMM, live.DistanceMM, rain)
	record := entities.RollingRecord{
		Timestamp: now.UnixMilli(),
		EvapMM:    result.EvapMM,
		HPrev:     result.HeightPrev,
		HNow:      result.HeightNow,
		Rain10Min: result.RainSum,
	}
	if err := uc.results.SaveRollingResult(ctx, record); err != nil {
		return nil, err
	}

	return &result, nil
}

// DailyWindowEnd returns the latest anchor-hour instant (07:00 by default) at or before ref
func (uc *EvaporationUseCase) DailyWindowEnd(ref time.Time) time.Time {
	local := ref.In(uc.settings.Location)
	y, m, d := local.Date()
	anchor := time.Date(y, m, d, uc.settings.DailyAnchorHour, 0, 0, 0, uc.settings.Location)
	if local.Before(anchor) {
		anchor = time.Date(y, m, d-1, uc.settings.DailyAnchorHour, 0, 0, 0, uc.settings.Location)
	}
	return anchor
}

// ComputeDaily estimates evaporation over the 24 hours ending at the latest anchor
// at or before ref and stores it keyed by that anchor's date, replacing any earlier run
func (uc *EvaporationUseCase) ComputeDaily(ctx context.Context, ref time.Time) (*entities.EvapResult, error) {
	end := uc.DailyWindowEnd(ref)
	start := end.Add(-24 * time.Hour)

	hEnd, err := uc.closestHistoricalHeight(ctx, end)
	if err != nil {
		return nil, err
	}
	hStart, err := uc.closestHistoricalHeight(ctx, start)
	if err != nil {
		return nil, err
	}
	if hEnd == nil || hStart == nil {
		return nil, fmt.Errorf("%w: missing daily height for %s", ErrMissingData, end.Format(entities.DailyKeyLayout))
	}

	rain, err := uc.rainBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	result := entities.NewEvapResult(start, end, hStart.DistanceMM, hEnd.DistanceMM, rain)
	record := entities.DailyRecord{
		Date:        end.Format(entities.DailyKeyLayout),
		EvapMM:      result.EvapMM,
		H7Yesterday: result.HeightPrev,
		H7Today:     result.HeightNow,
		Rain24h:     result.RainSum,
		CreatedAt:   uc.now().UnixMilli(),
	}
	if err := uc.results.SaveDailyResult(ctx, record); err != nil {
		return nil, err
	}

	if uc.notifier != nil {
		if err := uc.notifier.NotifyDaily(ctx, record); err != nil {
			uc.logger.Warnw("daily notification failed", "date", record.Date, "error", err)
		}
	}

	return &result, nil
}

// RunRolling is the scheduler and API entry point for the 10-minute computation.
// It never fails: skips are logged as warnings and errors as errors.
func (uc *EvaporationUseCase) RunRolling(ctx context.Context) {
	logger := uc.logger.With("cycle", "rolling", "run_id", uuid.NewString())
	defer uc.recoverCycle(logger)

	result, err := uc.ComputeRolling(ctx, uc.now())
	uc.report(logger, result, err)
}

// RunDaily is the scheduler entry point for the daily computation
func (uc *EvaporationUseCase) RunDaily(ctx context.Context) {
	uc.RunDailyAt(ctx, uc.now())
}

// RunDailyAt runs the daily computation for the anchor at or before ref
func (uc *EvaporationUseCase) RunDailyAt(ctx context.Context, ref time.Time) {
	logger := uc.logger.With("cycle", "daily", "run_id", uuid.NewString())
	defer uc.recoverCycle(logger)

	result, err := uc.ComputeDaily(ctx, ref)
	uc.report(logger, result, err)
}

func (uc *EvaporationUseCase) report(logger *zap.SugaredLogger, result *entities.EvapResult, err error) {
	switch {
	case errors.Is(err, ErrMissingData):
		logger.Warnw("computation skipped", "reason", err)
	case err != nil:
		logger.Errorw("computation failed", "error", err)
	default:
		logger.Infow("saved evaporation",
			"window_start", result.WindowStart.Format(time.RFC3339),
			"window_end", result.WindowEnd.Format(time.RFC3339),
			"evap_mm", result.EvapMM,
			"h_prev", result.HeightPrev,
			"h_now", result.HeightNow,
			"rain_mm", result.RainSum)
	}
}

func (uc *EvaporationUseCase) recoverCycle(logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		logger.Errorw("computation panicked", "panic", r)
	}
}

// rainBetween fetches the logs of every calendar day touched by [start, end) and sums
// the station's rain inside the window. Days whose log cannot be fetched are left out;
// if none can be fetched the cycle is skipped.
func (uc *EvaporationUseCase) rainBetween(ctx context.Context, start, end time.Time) (float64, error) {
	days := calendarDays(start, end, uc.settings.Location)
	texts := make([]*string, len(days))

	var g errgroup.Group
	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			text, err := uc.rainLogs.FetchRainLog(ctx, day)
			if err != nil {
				uc.logger.Warnw("rain log unavailable", "date", day.Format(entities.DateKeyLayout), "error", err)
				return nil
			}
			texts[i] = &text
			return nil
		})
	}
	// goroutines record failures in texts and always return nil
	_ = g.Wait()

	var present []string
	for _, text := range texts {
		if text != nil {
			present = append(present, *text)
		}
	}
	if len(present) == 0 {
		return 0, fmt.Errorf("%w: no rain log for %s", ErrMissingData, days[0].Format(entities.DateKeyLayout))
	}

	events := uc.parser.Parse(strings.Join(present, "\n"))
	uc.logger.Debugw("parsed rain events", "events", len(events), "logs", len(present))
	return rainlog.SumWithin(events, start, end), nil
}

// calendarDays lists the midnights of each distinct day containing start or end
func calendarDays(start, end time.Time, loc *time.Location) []time.Time {
	first := startOfDay(start, loc)
	last := startOfDay(end, loc)
	if first.Equal(last) {
		return []time.Time{first}
	}
	return []time.Time{first, last}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
