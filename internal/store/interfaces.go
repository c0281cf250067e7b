package store

import (
	"context"
	"time"
)

// SubscriptionStore selects reconciliation candidates and persists their
// updated status/period columns.
type SubscriptionStore interface {
	SelectRenewalCandidates(ctx context.Context, tenantID string, renewalThreshold, extendedThreshold time.Time) ([]Subscription, error)
	GetSubscriptionByStripeID(ctx context.Context, tenantID, stripeSubscriptionID string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, s Subscription) error
	MarkReconciliationFailed(ctx context.Context, id, errMsg string) error
	AppendReconciliationLog(ctx context.Context, subscriptionID, tenantID, before, after string) error
}

// TransactionStore selects fee/tax backfill candidates and persists updated
// fee/tax/net columns.
type TransactionStore interface {
	// SelectFeeTaxCandidates pages with a keyset cursor: afterID is the id of
	// the last row returned by the previous page, or "" for the first page.
	SelectFeeTaxCandidates(ctx context.Context, tenantID, eventID string, start, end time.Time, forceUpdate bool, batchSize int, afterID string) ([]Transaction, error)
	ReloadTransaction(ctx context.Context, id string) (*Transaction, error)
	UpdateTransactionFeesTax(ctx context.Context, id string, fee, tax, net float64, taxIsNull bool) error
	AggregateFeesTax(ctx context.Context, tenantID string, start, end time.Time) (gross, fees, tax, net float64, count int, err error)
}

// TemplateStore resolves email templates.
type TemplateStore interface {
	GetTemplate(ctx context.Context, templateID, tenantID string) (*EmailTemplate, error)
}

// TenantSettingsStore resolves per-tenant fallback assets.
type TenantSettingsStore interface {
	GetTenantSettings(ctx context.Context, tenantID string) (*TenantSettings, error)
}

// RecipientStore resolves recipient sets for the email dispatcher.
type RecipientStore interface {
	EventAttendeeEmails(ctx context.Context, tenantID, eventID string) ([]string, error)
	SubscribedMemberEmails(ctx context.Context, tenantID string) ([]string, error)
}

// SentLogStore appends per-send audit rows.
type SentLogStore interface {
	AppendSentLog(ctx context.Context, row SentLogRow) error
}

// SentLogRow is one PromotionEmailSentLog write.
type SentLogRow struct {
	TenantID       string
	TemplateID     string // may be empty; preserved nullably
	EventID        string
	RecipientEmail string
	Subject        string
	IsTestEmail    bool
	Status         SentLogStatus
	ErrorMessage   string
	SentByID       string
}

// ManualPaymentSummaryStore persists MANUAL_PAYMENT_SUMMARY aggregation rows.
type ManualPaymentSummaryStore interface {
	AppendManualPaymentSummary(ctx context.Context, tenantID string, periodStart, periodEnd time.Time, totalGross, totalFees, totalTax, totalNet float64, transactionCount int) error
}
