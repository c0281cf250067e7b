// Package scheduler runs periodic re-triggers of each batch workflow,
// supplementing the manual trigger API with the cron cadence the original
// platform always pairs billing background jobs with.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventforge/batchjobs/internal/orchestrator"
)

// Entry pairs a job type with its recurrence interval and the request body
// to replay on each tick.
type Entry struct {
	JobType  orchestrator.JobType
	Interval time.Duration
	Request  orchestrator.TriggerRequest
}

// Scheduler fires each Entry's trigger request on its own interval via the
// Orchestrator, the same path a manual HTTP trigger would take.
type Scheduler struct {
	orch    *orchestrator.Orchestrator
	entries []Entry
	logger  *slog.Logger
	stop    chan struct{}
}

// New builds a Scheduler. It does not start any goroutines until Start is
// called.
func New(orch *orchestrator.Orchestrator, logger *slog.Logger, entries []Entry) *Scheduler {
	return &Scheduler{
		orch:    orch,
		entries: entries,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// Start launches one goroutine per entry, each on its own ticker. Start is
// idempotent-unsafe: call it once.
func (s *Scheduler) Start(ctx context.Context) {
	for _, e := range s.entries {
		go s.runLoop(ctx, e)
	}
}

// Stop halts all scheduled loops.
func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) runLoop(ctx context.Context, e Entry) {
	s.logger.Info("scheduler entry started", "job_type", string(e.JobType), "interval", e.Interval.String())
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.fire(ctx, e)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, e Entry) {
	resp, err := s.orch.Trigger(ctx, e.Request, "scheduler")
	if err != nil {
		s.logger.Error("scheduled trigger failed", "job_type", string(e.JobType), "error", err)
		return
	}
	s.logger.Info("scheduled trigger accepted", "job_type", string(e.JobType), "job_execution_id", resp.JobExecutionID)
}
