// Package orchestrator implements the Job Orchestrator: the trigger API
// that accepts job requests, opens a ledger row, and dispatches to a
// bounded worker pool running one of the three workflow engines.
package orchestrator

import (
	"context"
	"time"
)

// JobType enumerates the trigger-able job types, including the
// supplemented MANUAL_PAYMENT_SUMMARY, CONTACT_FORM_EMAIL, and
// PROMOTION_TEST_EMAIL variants routed through the same Email Dispatcher.
type JobType string

const (
	JobSubscriptionRenewal  JobType = "SUBSCRIPTION_RENEWAL"
	JobEmailBatch           JobType = "EMAIL_BATCH"
	JobFeesTaxBackfill      JobType = "FEES_TAX_BACKFILL"
	JobContactFormEmail     JobType = "CONTACT_FORM_EMAIL"
	JobPromotionTestEmail   JobType = "PROMOTION_TEST_EMAIL"
	JobManualPaymentSummary JobType = "MANUAL_PAYMENT_SUMMARY"
)

// TriggerRequest is the parsed, validated body of one trigger call.
type TriggerRequest struct {
	JobType JobType

	// Subscription renewal
	TenantID             string
	BatchSize            int
	MaxSubscriptions     int
	StripeSubscriptionID string

	// Email batch
	TemplateID      string
	MaxEmails       int
	RecipientEmails []string
	UserID          string
	RecipientType   string
	IsTestEmail     bool

	// Fees/tax backfill
	EventID             string
	StartDate           *time.Time
	EndDate             *time.Time
	ForceUpdate         bool
	UseDefaultDateRange bool
}

// TriggerResponse is the common response shape.
type TriggerResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	JobExecutionID string `json:"jobExecutionId,omitempty"`
	ProcessedCount *int   `json:"processedCount,omitempty"`
	SuccessCount   *int   `json:"successCount,omitempty"`
	FailedCount    *int   `json:"failedCount,omitempty"`
	DurationMs     *int64 `json:"durationMs,omitempty"`
}

// Workflow is implemented by each of the three workflow engines plus the
// email-routing variants, so the orchestrator can dispatch generically.
// processed must equal success + failed + skipped: skipped counts items a
// workflow intentionally left untouched (e.g. an already-reconciled row on
// a rerun), as distinct from success or failed.
type Workflow interface {
	Run(ctx context.Context, req TriggerRequest) (processed, success, failed, skipped int, err error)
}
