package usecases

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/entities"
)

// memoryStore is an in-memory HeightStore and EvaporationRepository
type memoryStore struct {
	mu       sync.Mutex
	live     *entities.HeightSample
	history  map[string][]entities.HistoryEntry
	rolling  map[int64]entities.RollingRecord
	daily    map[string]entities.DailyRecord
	failRead error
	saves    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		history: make(map[string][]entities.HistoryEntry),
		rolling: make(map[int64]entities.RollingRecord),
		daily:   make(map[string]entities.DailyRecord),
	}
}

func (s *memoryStore) GetLiveHeight(_ context.Context) (*entities.HeightSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRead != nil {
		return nil, s.failRead
	}
	if s.live == nil {
		return nil, nil
	}
	live := *s.live
	return &live, nil
}

func (s *memoryStore) SaveLiveHeight(_ context.Context, sample entities.HeightSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = &sample
	return nil
}

func (s *memoryStore) GetHistoryBucket(_ context.Context, dateKey string) ([]entities.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRead != nil {
		return nil, s.failRead
	}
	return append([]entities.HistoryEntry(nil), s.history[dateKey]...), nil
}

func (s *memoryStore) AppendHistory(_ context.Context, dateKey string, entry entities.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[dateKey] = append(s.history[dateKey], entry)
	return nil
}

func (s *memoryStore) SaveRollingResult(_ context.Context, rec entities.RollingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolling[rec.Timestamp] = rec
	s.saves++
	return nil
}

func (s *memoryStore) SaveDailyResult(_ context.Context, rec entities.DailyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily[rec.Date] = rec
	s.saves++
	return nil
}

func (s *memoryStore) GetRecentRolling(_ context.Context, limit int) ([]entities.RollingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.RollingRecord
	for _, rec := range s.rolling {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memoryStore) GetDailyResults(_ context.Context) ([]entities.DailyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.DailyRecord
	for _, rec := range s.daily {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *memoryStore) GetDailyResult(_ context.Context, date string) (*entities.DailyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.daily[date]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// fakeRainLogs serves log text per DD-MM-YYYY key; missing keys fail like a 404
type fakeRainLogs struct {
	mu      sync.Mutex
	logs    map[string]string
	fetched []string
}

func (f *fakeRainLogs) FetchRainLog(_ context.Context, date time.Time) (string, error) {
	key := date.Format(entities.DateKeyLayout)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, key)
	text, ok := f.logs[key]
	if !ok {
		return "", errors.New("404 not found")
	}
	return text, nil
}

func (f *fakeRainLogs) ListAvailableDates(_ context.Context, loc *time.Location) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var dates []time.Time
	for key := range f.logs {
		d, err := time.ParseInLocation(entities.DateKeyLayout, key, loc)
		if err == nil {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (f *fakeRainLogs) fetchedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := append([]string(nil), f.fetched...)
	sort.Strings(keys)
	return keys
}

type recordingNotifier struct {
	records []entities.DailyRecord
	err     error
}

func (n *recordingNotifier) NotifyDaily(_ context.Context, rec entities.DailyRecord) error {
	n.records = append(n.records, rec)
	return n.err
}
