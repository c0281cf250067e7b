// Package store provides the database/sql + lib/pq access layer over the
// subset of the surrounding application's schema the batch jobs core reads
// and writes, matching the column set named by the data model.
package store

import "time"

// Subscription mirrors the MembershipSubscription columns the core touches.
type Subscription struct {
	ID                   string
	TenantID             string
	UserProfileID        string
	PlanID               string
	Status               string
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
	StripeSubscriptionID string
	LastReconciliationAt *time.Time
	ReconciliationStatus string
	ReconciliationError  string
}

// Transaction mirrors the EventTicketTransaction columns the core touches.
type Transaction struct {
	ID                      string
	TenantID                string
	Status                  string
	PurchaseDate            time.Time
	StripePaymentIntentID   string
	StripeCheckoutSessionID string
	FinalAmount             float64
	StripeFeeAmount         *float64
	StripeAmountTax         *float64
	NetPayoutAmount         *float64
}

// EmailTemplate mirrors PromotionEmailTemplate.
type EmailTemplate struct {
	ID             string
	TenantID       string
	EventID        string
	Subject        string
	FromEmail      string
	BodyHTML       string
	HeaderImageURL string
	FooterHTML     string
	FooterImageURL string
	PromotionCode  string
	DiscountCodeID string
}

// TenantSettings mirrors the fields of TenantSettings the core reads.
type TenantSettings struct {
	TenantID            string
	EmailHeaderImageURL string
	EmailFooterHTMLURL  string
	LogoImageURL        string
}

// SentLogStatus is the terminal status of one PromotionEmailSentLog row.
type SentLogStatus string

const (
	SentStatusSent    SentLogStatus = "SENT"
	SentStatusFailed  SentLogStatus = "FAILED"
	SentStatusBounced SentLogStatus = "BOUNCED"
)
