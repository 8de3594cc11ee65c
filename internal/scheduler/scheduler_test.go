package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/log"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type countingJobs struct {
	rolling chan struct{}
	daily   chan struct{}
}

func (j *countingJobs) RunRolling(context.Context) { signal(j.rolling) }
func (j *countingJobs) RunDaily(context.Context)   { signal(j.daily) }

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func TestNewRejectsBadSpecs(t *testing.T) {
	logger := log.NewCronLogger(zap.NewNop().Sugar())
	jobs := &countingJobs{}

	if _, err := New(context.Background(), jobs, "every ten minutes", "0 7 * * *", time.UTC, logger); err == nil {
		t.Error("Expected error for invalid rolling spec")
	}
	if _, err := New(context.Background(), jobs, "*/10 * * * *", "7am", time.UTC, logger); err == nil {
		t.Error("Expected error for invalid daily spec")
	}
}

func TestNextActivationsUseLocation(t *testing.T) {
	wib := time.FixedZone("WIB", 7*3600)
	s, err := New(context.Background(), &countingJobs{}, "*/10 * * * *", "0 7 * * *", wib, cron.DiscardLogger)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}
	s.Start()
	defer s.Stop()

	// Entries are only populated with Next once the scheduler is running
	var next []time.Time
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		next = s.Next()
		if len(next) == 2 && !next[0].IsZero() && !next[1].IsZero() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(next) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(next))
	}

	for _, n := range next {
		local := n.In(wib)
		if local.Minute()%10 != 0 || local.Second() != 0 {
			t.Errorf("Unexpected activation time %v", local)
		}
	}

	found := false
	for _, n := range next {
		if n.In(wib).Hour() == 7 && n.In(wib).Minute() == 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a 07:00 WIB activation among %v", next)
	}
}

func TestRollingJobRuns(t *testing.T) {
	jobs := &countingJobs{rolling: make(chan struct{}, 1), daily: make(chan struct{}, 1)}
	s, err := New(context.Background(), jobs, "@every 1s", "@every 1h", time.UTC, cron.DiscardLogger)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}
	s.Start()
	defer s.Stop()

	select {
	case <-jobs.rolling:
	case <-time.After(3 * time.Second):
		t.Fatal("Rolling job never ran")
	}
}
