package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eventforge/batchjobs/internal/joberrors"
	"github.com/eventforge/batchjobs/internal/ledger"
	"github.com/eventforge/batchjobs/internal/logger"
	"github.com/eventforge/batchjobs/internal/metrics"
)

// job is one unit of dispatched work: a validated request plus the ledger
// row id already created for it.
type job struct {
	jobExecutionID string
	req            TriggerRequest
}

// Orchestrator accepts trigger requests, opens ledger rows, and dispatches
// work to a bounded worker pool. The same (jobType, tenantId) may be
// in flight concurrently; workflows are required to be idempotent under
// that assumption.
type Orchestrator struct {
	ledger      *ledger.Ledger
	workflows   map[JobType]Workflow
	jobDeadline time.Duration

	queue chan job
	done  chan struct{}
}

// New builds an Orchestrator with a worker pool of poolSize goroutines.
func New(lg *ledger.Ledger, workflows map[JobType]Workflow, poolSize int, jobDeadline time.Duration) *Orchestrator {
	o := &Orchestrator{
		ledger:      lg,
		workflows:   workflows,
		jobDeadline: jobDeadline,
		queue:       make(chan job, poolSize*4),
		done:        make(chan struct{}),
	}
	for i := 0; i < poolSize; i++ {
		go o.worker()
	}
	return o
}

// Shutdown stops accepting new work. In-flight jobs already dequeued finish
// on their own; callers coordinate via the context passed to Trigger.
func (o *Orchestrator) Shutdown() {
	close(o.done)
}

// Trigger validates req, opens a ledger row, enqueues the work, and returns
// immediately. Processing happens asynchronously on the worker pool.
func (o *Orchestrator) Trigger(ctx context.Context, req TriggerRequest, triggeredBy string) (TriggerResponse, error) {
	if err := validate(req); err != nil {
		return TriggerResponse{}, err
	}

	paramsJSON, _ := json.Marshal(req)
	jobName := fmt.Sprintf("%s-%s", req.JobType, uuid.New().String()[:8])

	id, err := o.ledger.Create(ctx, jobName, string(req.JobType), req.TenantID, triggeredBy, string(paramsJSON))
	if err != nil {
		return TriggerResponse{}, joberrors.NewConfigurationError("failed to open ledger row: " + err.Error())
	}

	metrics.JobsTriggered.WithLabelValues(string(req.JobType)).Inc()

	select {
	case o.queue <- job{jobExecutionID: id, req: req}:
	default:
		// Queue saturated: still accepted per contract (ledger row exists),
		// so block until a worker frees a slot rather than drop silently.
		o.queue <- job{jobExecutionID: id, req: req}
	}

	return TriggerResponse{
		Success:        true,
		Message:        "accepted",
		JobExecutionID: id,
	}, nil
}

func (o *Orchestrator) worker() {
	for {
		select {
		case <-o.done:
			return
		case j := <-o.queue:
			o.run(j)
		}
	}
}

func (o *Orchestrator) run(j job) {
	ctx := context.Background()
	if o.jobDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.jobDeadline)
		defer cancel()
	}
	ctx = logger.WithContext(ctx, slog.Default().With(
		"job_execution_id", j.jobExecutionID,
		"job_type", string(j.req.JobType),
	))

	wf, ok := o.workflows[j.req.JobType]
	if !ok {
		o.complete(ctx, j.jobExecutionID, ledger.StatusFailed, 0, 0, 0, 0, "no workflow registered for job type "+string(j.req.JobType))
		return
	}

	start := time.Now()
	processed, success, failed, skipped, err := wf.Run(ctx, j.req)
	duration := time.Since(start)

	status := ledger.StatusCompleted
	errMsg := ""
	if err != nil {
		if kind, ok := joberrors.KindOf(err); ok && kind == joberrors.KindCancelled {
			errMsg = "cancelled"
		} else {
			errMsg = err.Error()
		}
		status = ledger.StatusFailed
	}

	metrics.JobsCompleted.WithLabelValues(string(j.req.JobType), string(status)).Inc()
	metrics.JobDuration.WithLabelValues(string(j.req.JobType)).Observe(duration.Seconds())

	o.complete(ctx, j.jobExecutionID, status, processed, success, failed, skipped, errMsg)
}

func (o *Orchestrator) complete(ctx context.Context, id string, status ledger.Status, processed, success, failed, skipped int, errMsg string) {
	if err := o.ledger.Complete(ctx, id, status, processed, success, failed, skipped, errMsg); err != nil {
		logger.FromContext(ctx).Error("failed to complete ledger row", "error", err, "job_execution_id", id)
	}
}

// validate performs per-jobType request validation, returning a
// ValidationError (400-equivalent) before any work starts.
func validate(req TriggerRequest) error {
	switch req.JobType {
	case JobEmailBatch, JobContactFormEmail, JobPromotionTestEmail:
		if req.TenantID == "" {
			return joberrors.NewValidationError("tenantId is required")
		}
		if req.TemplateID == "" {
			return joberrors.NewValidationError("templateId is required")
		}
	case JobSubscriptionRenewal, JobFeesTaxBackfill, JobManualPaymentSummary:
		// tenantId optional; "ALL" scope when absent.
	default:
		return joberrors.NewValidationError("unknown job type: " + string(req.JobType))
	}
	return nil
}
