package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/config"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/entities"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/rainlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var wib = time.FixedZone("WIB", 7*3600)

func at(day, h, m, s int) time.Time {
	return time.Date(2024, time.March, day, h, m, s, 0, wib)
}

func testSettings() Settings {
	return Settings{
		StationCode:        "stg1079",
		StationMatch:       rainlog.MatchUpperTarget,
		Location:           wib,
		RollingWindow:      10 * time.Minute,
		DailyAnchorHour:    7,
		SearchAdjacentDays: true,
	}
}

func newTestUseCase(store *memoryStore, logs *fakeRainLogs, opts ...Option) *EvaporationUseCase {
	return NewEvaporationUseCase(store, store, logs, testSettings(), zap.NewNop().Sugar(), opts...)
}

func TestComputeRolling(t *testing.T) {
	store := newMemoryStore()
	store.live = &entities.HeightSample{Timestamp: at(15, 7, 0, 0), DistanceMM: 118.0}
	store.history["15-03-2024"] = []entities.HistoryEntry{
		{TimeKey: "06:40:00", DistanceMM: 125.0},
		{TimeKey: "06:50:10", DistanceMM: 120.0},
		{TimeKey: "07:00:00", DistanceMM: 118.0},
	}
	logs := &fakeRainLogs{logs: map[string]string{
		"15-03-2024": "STG1079;15032024064959;5.0\n" +
			"STG1079;15032024065200;1.0\n" +
			"STG1079;15032024065500;0.5\n" +
			"STG1079;15032024070000;3.0\n",
	}}
	uc := newTestUseCase(store, logs)

	now := at(15, 7, 0, 0)
	result, err := uc.ComputeRolling(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, at(15, 6, 50, 0), result.WindowStart)
	assert.Equal(t, now, result.WindowEnd)
	assert.InDelta(t, 120.0, result.HeightPrev, 1e-9)
	assert.InDelta(t, 118.0, result.HeightNow, 1e-9)
	assert.InDelta(t, 1.5, result.RainSum, 1e-9)
	assert.InDelta(t, 3.5, result.EvapMM, 1e-9)

	rec, ok := store.rolling[now.UnixMilli()]
	require.True(t, ok, "rolling record should be keyed by now in milliseconds")
	assert.Equal(t, entities.RollingRecord{Timestamp: now.UnixMilli(), EvapMM: 3.5, HPrev: 120, HNow: 118, Rain10Min: 1.5}, rec)

	// Window inside one day: the log is fetched once, so rain is not counted twice
	assert.Equal(t, []string{"15-03-2024"}, logs.fetchedKeys())
}

func TestComputeRollingMissingLiveHeight(t *testing.T) {
	store := newMemoryStore()
	store.history["15-03-2024"] = []entities.HistoryEntry{{TimeKey: "06:50:00", DistanceMM: 120.0}}
	logs := &fakeRainLogs{logs: map[string]string{"15-03-2024": ""}}
	uc := newTestUseCase(store, logs)

	_, err := uc.ComputeRolling(context.Background(), at(15, 7, 0, 0))
	require.ErrorIs(t, err, ErrMissingData)
	assert.Empty(t, store.rolling)

	// The next cycle succeeds on its own once a live reading exists
	store.live = &entities.HeightSample{Timestamp: at(15, 7, 9, 0), DistanceMM: 119.0}
	result, err := uc.ComputeRolling(context.Background(), at(15, 7, 10, 0))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.EvapMM, 1e-9)
	assert.Len(t, store.rolling, 1)
}

func TestComputeRollingMissingHistory(t *testing.T) {
	store := newMemoryStore()
	store.live = &entities.HeightSample{DistanceMM: 118.0}
	uc := newTestUseCase(store, &fakeRainLogs{logs: map[string]string{"15-03-2024": ""}})

	_, err := uc.ComputeRolling(context.Background(), at(15, 7, 0, 0))
	require.ErrorIs(t, err, ErrMissingData)
	assert.Empty(t, store.rolling)
}

func TestComputeRollingAcrossMidnightWithPartialRainData(t *testing.T) {
	store := newMemoryStore()
	store.live = &entities.HeightSample{DistanceMM: 100.0}
	store.history["15-03-2024"] = []entities.HistoryEntry{{TimeKey: "23:55:00", DistanceMM: 101.0}}
	logs := &fakeRainLogs{logs: map[string]string{
		// yesterday's log is unavailable, today's is used on its own
		"16-03-2024": "STG1079;16032024000100;0.25\nSTG1079;15032024235800;7.0\n",
	}}
	uc := newTestUseCase(store, logs)

	result, err := uc.ComputeRolling(context.Background(), at(16, 0, 5, 0))
	require.NoError(t, err)

	assert.Equal(t, []string{"15-03-2024", "16-03-2024"}, logs.fetchedKeys())
	assert.InDelta(t, 7.25, result.RainSum, 1e-9)
	assert.InDelta(t, 8.25, result.EvapMM, 1e-9)
}

func TestComputeRollingNoRainLogs(t *testing.T) {
	store := newMemoryStore()
	store.live = &entities.HeightSample{DistanceMM: 100.0}
	store.history["15-03-2024"] = []entities.HistoryEntry{{TimeKey: "06:50:00", DistanceMM: 101.0}}
	uc := newTestUseCase(store, &fakeRainLogs{})

	_, err := uc.ComputeRolling(context.Background(), at(15, 7, 0, 0))
	require.ErrorIs(t, err, ErrMissingData)
	assert.Empty(t, store.rolling)
}

func TestComputeRollingStoreError(t *testing.T) {
	store := newMemoryStore()
	store.failRead = errors.New("database is locked")
	uc := newTestUseCase(store, &fakeRainLogs{})

	_, err := uc.ComputeRolling(context.Background(), at(15, 7, 0, 0))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingData)
}

func dailyFixture() (*memoryStore, *fakeRainLogs) {
	store := newMemoryStore()
	store.history["14-03-2024"] = []entities.HistoryEntry{
		{TimeKey: "06:30:00", DistanceMM: 130.0},
		{TimeKey: "07:01:00", DistanceMM: 120.0},
	}
	store.history["15-03-2024"] = []entities.HistoryEntry{
		{TimeKey: "06:58:00", DistanceMM: 118.0},
		{TimeKey: "07:30:00", DistanceMM: 117.0},
	}
	logs := &fakeRainLogs{logs: map[string]string{
		"14-03-2024": "STG1079;14032024065959;9.0\nSTG1079;14032024120000;1.0\n",
		"15-03-2024": "STG1079;15032024020000;0.5\nSTG1079;15032024070000;4.0\n",
	}}
	return store, logs
}

func TestComputeDaily(t *testing.T) {
	store, logs := dailyFixture()
	uc := newTestUseCase(store, logs, WithClock(func() time.Time { return at(15, 8, 0, 0) }))

	result, err := uc.ComputeDaily(context.Background(), at(15, 8, 30, 0))
	require.NoError(t, err)

	assert.Equal(t, at(14, 7, 0, 0), result.WindowStart)
	assert.Equal(t, at(15, 7, 0, 0), result.WindowEnd)
	assert.InDelta(t, 120.0, result.HeightPrev, 1e-9)
	assert.InDelta(t, 118.0, result.HeightNow, 1e-9)
	assert.InDelta(t, 1.5, result.RainSum, 1e-9)
	assert.InDelta(t, 3.5, result.EvapMM, 1e-9)

	rec, ok := store.daily["2024-03-15"]
	require.True(t, ok)
	assert.Equal(t, "2024-03-15", rec.Date)
	assert.InDelta(t, 3.5, rec.EvapMM, 1e-9)
	assert.Equal(t, at(15, 8, 0, 0).UnixMilli(), rec.CreatedAt)
	assert.Equal(t, []string{"14-03-2024", "15-03-2024"}, logs.fetchedKeys())
}

func TestComputeDailyIsIdempotent(t *testing.T) {
	store, logs := dailyFixture()
	uc := newTestUseCase(store, logs)

	first, err := uc.ComputeDaily(context.Background(), at(15, 7, 0, 0))
	require.NoError(t, err)
	firstRecord := store.daily["2024-03-15"]

	second, err := uc.ComputeDaily(context.Background(), at(15, 23, 0, 0))
	require.NoError(t, err)

	assert.Len(t, store.daily, 1)
	assert.Equal(t, first.EvapMM, second.EvapMM)
	assert.Equal(t, firstRecord.EvapMM, store.daily["2024-03-15"].EvapMM)
}

func TestComputeDailyMissingHeight(t *testing.T) {
	store, logs := dailyFixture()
	delete(store.history, "14-03-2024")
	uc := newTestUseCase(store, logs)
	uc.settings.SearchAdjacentDays = false

	_, err := uc.ComputeDaily(context.Background(), at(15, 7, 0, 0))
	require.ErrorIs(t, err, ErrMissingData)
	assert.Empty(t, store.daily)
}

func TestComputeDailyNotifies(t *testing.T) {
	store, logs := dailyFixture()
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	uc := newTestUseCase(store, logs)
	uc.SetNotifier(notifier)

	_, err := uc.ComputeDaily(context.Background(), at(15, 7, 0, 0))
	require.NoError(t, err, "notification failures must not fail the computation")
	require.Len(t, notifier.records, 1)
	assert.Equal(t, "2024-03-15", notifier.records[0].Date)
}

func TestDailyWindowEnd(t *testing.T) {
	uc := newTestUseCase(newMemoryStore(), &fakeRainLogs{})

	tests := []struct {
		name     string
		ref      time.Time
		expected time.Time
	}{
		{"after anchor", at(15, 8, 0, 0), at(15, 7, 0, 0)},
		{"exactly at anchor", at(15, 7, 0, 0), at(15, 7, 0, 0)},
		{"before anchor uses yesterday", at(15, 6, 59, 59), at(14, 7, 0, 0)},
		{"reference in another zone", time.Date(2024, time.March, 15, 0, 30, 0, 0, time.UTC), at(15, 7, 0, 0)},
		{"month boundary", time.Date(2024, time.March, 1, 3, 0, 0, 0, wib), time.Date(2024, time.February, 29, 7, 0, 0, 0, wib)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.expected.Equal(uc.DailyWindowEnd(tt.ref)), "expected %v, got %v", tt.expected, uc.DailyWindowEnd(tt.ref))
		})
	}
}

func TestRunCyclesNeverFail(t *testing.T) {
	store := newMemoryStore()
	store.failRead = errors.New("connection reset")
	uc := newTestUseCase(store, &fakeRainLogs{}, WithClock(func() time.Time { return at(15, 7, 0, 0) }))

	assert.NotPanics(t, func() {
		uc.RunRolling(context.Background())
		uc.RunDaily(context.Background())
	})
	assert.Zero(t, store.saves)

	panicking := NewEvaporationUseCase(nil, store, &fakeRainLogs{}, testSettings(), zap.NewNop().Sugar())
	assert.NotPanics(t, func() {
		panicking.RunRolling(context.Background())
	})
}

func TestRunRollingSaves(t *testing.T) {
	store := newMemoryStore()
	store.live = &entities.HeightSample{DistanceMM: 118.0}
	store.history["15-03-2024"] = []entities.HistoryEntry{{TimeKey: "06:50:00", DistanceMM: 120.0}}
	logs := &fakeRainLogs{logs: map[string]string{"15-03-2024": "STG1079;15032024065500;1.5\n"}}
	now := at(15, 7, 0, 0)
	uc := newTestUseCase(store, logs, WithClock(func() time.Time { return now }))

	uc.RunRolling(context.Background())

	require.Contains(t, store.rolling, now.UnixMilli())
	assert.InDelta(t, 3.5, store.rolling[now.UnixMilli()].EvapMM, 1e-9)
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{
		StationCode:   "stg1079",
		Timezone:      "UTC",
		StationMatch:  config.StationMatchCaseInsensitive,
		HistorySearch: config.HistorySearchSameDay,
	}
	cfg.Rolling.Window = 5 * time.Minute
	cfg.Daily.AnchorHour = 6

	settings, err := SettingsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, rainlog.MatchCaseInsensitive, settings.StationMatch)
	assert.False(t, settings.SearchAdjacentDays)
	assert.Equal(t, time.UTC, settings.Location)
	assert.Equal(t, 5*time.Minute, settings.RollingWindow)
	assert.Equal(t, 6, settings.DailyAnchorHour)

	cfg.Timezone = "Nowhere/Special"
	_, err = SettingsFromConfig(cfg)
	assert.Error(t, err)
}

func TestFormatDailyReport(t *testing.T) {
	uc := newTestUseCase(newMemoryStore(), &fakeRainLogs{})
	report := uc.FormatDailyReport(entities.DailyRecord{Date: "2024-03-15", EvapMM: 3.5, H7Yesterday: 120, H7Today: 118, Rain24h: 1.5})

	assert.True(t, strings.Contains(report, "2024-03-15"))
	assert.Contains(t, report, "STG1079")
	assert.Contains(t, report, "3.50 mm")
	assert.NotContains(t, report, "Computed")
}
