// Package scheduler runs the evaporation computations on their cron schedules
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Jobs is what the scheduler triggers
type Jobs interface {
	RunRolling(ctx context.Context)
	RunDaily(ctx context.Context)
}

// Scheduler wraps a cron instance configured in the station's time zone
type Scheduler struct {
	cron *cron.Cron
}

// New registers the rolling and daily jobs. Overlapping runs are allowed: every run
// writes only its own key, so a late run simply overwrites.
func New(ctx context.Context, jobs Jobs, rollingSpec, dailySpec string, loc *time.Location, logger cron.Logger) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)

	if _, err := c.AddFunc(rollingSpec, func() { jobs.RunRolling(ctx) }); err != nil {
		return nil, fmt.Errorf("failed to schedule rolling computation %q: %w", rollingSpec, err)
	}
	if _, err := c.AddFunc(dailySpec, func() { jobs.RunDaily(ctx) }); err != nil {
		return nil, fmt.Errorf("failed to schedule daily computation %q: %w", dailySpec, err)
	}

	return &Scheduler{cron: c}, nil
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and returns a context that is done once running jobs finish
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next reports the next activation of each job, rolling first
func (s *Scheduler) Next() []time.Time {
	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		next = append(next, e.Next)
	}
	return next
}
