package usecases

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/entities"
)

// closestHistoricalHeight finds the stored sample nearest to target. The target's own
// day bucket is always searched; with SearchAdjacentDays the previous and next day are
// searched too, so a target close to midnight can match a sample across the boundary.
// Ties go to the earlier sample. Returns nil when no bucket has a usable sample.
func (uc *EvaporationUseCase) closestHistoricalHeight(ctx context.Context, target time.Time) (*entities.HeightSample, error) {
	day := startOfDay(target, uc.settings.Location)
	days := []time.Time{day}
	if uc.settings.SearchAdjacentDays {
		y, m, d := day.Date()
		days = []time.Time{
			time.Date(y, m, d-1, 0, 0, 0, 0, uc.settings.Location),
			day,
			time.Date(y, m, d+1, 0, 0, 0, 0, uc.settings.Location),
		}
	}

	var (
		best     *entities.HeightSample
		bestDiff time.Duration
	)
	for _, bucketDay := range days {
		dateKey := bucketDay.Format(entities.DateKeyLayout)
		entries, err := uc.heights.GetHistoryBucket(ctx, dateKey)
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			ts, ok := timeOfDay(bucketDay, entry.TimeKey)
			if !ok {
				uc.logger.Debugw("skipping history entry with bad time key", "date", dateKey, "time", entry.TimeKey)
				continue
			}
			diff := absDuration(ts.Sub(target))
			if best == nil || diff < bestDiff || (diff == bestDiff && ts.Before(best.Timestamp)) {
				best = &entities.HeightSample{Timestamp: ts, DistanceMM: entry.DistanceMM}
				bestDiff = diff
			}
		}
	}

	return best, nil
}

// timeOfDay places an "HH:MM[:SS]" key on day; missing minute or second parts count as zero
func timeOfDay(day time.Time, key string) (time.Time, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false
	}
	parts := strings.Split(key, ":")
	if len(parts) > 3 {
		return time.Time{}, false
	}

	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for i, part := range parts {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > limits[i] {
			return time.Time{}, false
		}
		values[i] = n
	}

	y, m, d := day.Date()
	return time.Date(y, m, d, values[0], values[1], values[2], 0, day.Location()), true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
