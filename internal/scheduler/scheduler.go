package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"soldi/internal/log"
)

// Job is a named task fired on the schedule its Next function yields.
type Job struct {
	Name string
	// Next returns the first firing strictly after the given time.
	Next func(after time.Time) time.Time
	Run  func(ctx context.Context) error
}

// Scheduler runs each job in its own goroutine, sleeping until the
// job's next firing. A failing run is logged and the job keeps its
// schedule; only context cancellation stops a job.
type Scheduler struct {
	jobs   []Job
	logger *log.Logger
}

func New(logger *log.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Run blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		job := job
		g.Go(func() error {
			return s.runJob(ctx, job)
		})
	}
	return g.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	for {
		next := job.Next(time.Now())
		s.logger.InfoContext(ctx, "job scheduled",
			"job", job.Name,
			"next_run", next.Format(time.RFC3339),
		)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		started := time.Now()
		if err := job.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.ErrorContext(ctx, "job run failed",
				"job", job.Name,
				log.FieldError, err,
				"duration_ms", time.Since(started).Milliseconds(),
			)
			continue
		}
		s.logger.InfoContext(ctx, "job run complete",
			"job", job.Name,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
}

// NextMidnight returns the next UTC midnight after t.
func NextMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// NextSixHourly returns the next 00/06/12/18 UTC boundary after t.
func NextSixHourly(t time.Time) time.Time {
	t = t.UTC()
	boundary := time.Date(t.Year(), t.Month(), t.Day(), (t.Hour()/6)*6, 0, 0, 0, time.UTC)
	return boundary.Add(6 * time.Hour)
}

// NextFirstOfMonth returns 00:30 UTC on the first of the month after
// t's. The half-hour offset keeps it clear of the midnight recurrence
// run.
func NextFirstOfMonth(t time.Time) time.Time {
	t = t.UTC()
	first := time.Date(t.Year(), t.Month(), 1, 0, 30, 0, 0, time.UTC)
	if t.Before(first) {
		return first
	}
	return first.AddDate(0, 1, 0)
}
